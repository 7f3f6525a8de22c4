package parking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickOccupiesAvailableSlot(t *testing.T) {
	state := mixedState(t)
	rng := &scriptedRand{ints: []int{0}}

	next, tr := Tick(state, rng, DefaultReleaseProbability, fixedNow)

	assert.True(t, tr.Changed)
	assert.Equal(t, Transition{SlotID: "S1", Number: "A01", From: StatusAvailable, To: StatusOccupied, Changed: true}, tr)
	slot, _ := next.Slot("S1")
	assert.Equal(t, StatusOccupied, slot.Status)
	require.NotNil(t, slot.OccupiedSince)
	assert.Equal(t, fixedNow, *slot.OccupiedSince)

	before, _ := state.Slot("S1")
	assert.Equal(t, StatusAvailable, before.Status, "input state must not change")
}

func TestTickReleasesOccupiedSlotWithProbability(t *testing.T) {
	state := mixedState(t)

	next, tr := Tick(state, &scriptedRand{ints: []int{1}, floats: []float64{0.1}}, 0.3, fixedNow)
	assert.True(t, tr.Changed)
	slot, _ := next.Slot("S2")
	assert.Equal(t, StatusAvailable, slot.Status)

	next, tr = Tick(state, &scriptedRand{ints: []int{1}, floats: []float64{0.8}}, 0.3, fixedNow)
	assert.False(t, tr.Changed)
	slot, _ = next.Slot("S2")
	assert.Equal(t, StatusOccupied, slot.Status)
}

func TestTickLeavesAssignedAndReservedAlone(t *testing.T) {
	state := mixedState(t)

	for _, i := range []int{2, 3} {
		next, tr := Tick(state, &scriptedRand{ints: []int{i}}, 1, fixedNow)
		assert.False(t, tr.Changed)
		assert.Equal(t, state.Slots(), next.Slots())
	}
}

func TestTickOnEmptyState(t *testing.T) {
	state := testState(t)
	next, tr := Tick(state, NewRand(1), DefaultReleaseProbability, fixedNow)

	assert.False(t, tr.Changed)
	assert.Equal(t, 0, next.Len())
}

func TestTickChangesAtMostOneSlot(t *testing.T) {
	layout := DefaultLayout()
	state := Generate(DefaultLot(layout), layout, NewRand(3))
	state, _, err := SetStatus(state, "slot-5", StatusReserved, fixedNow)
	require.NoError(t, err)
	state, _, err = SetStatus(state, "slot-9", StatusAvailable, fixedNow)
	require.NoError(t, err)
	state, _, _, err = Assign(state, AssignRequest{SlotID: "slot-9", Assignee: "u"}, fixedNow)
	require.NoError(t, err)
	rng := NewRand(11)

	for i := 0; i < 1000; i++ {
		next, tr := Tick(state, rng, DefaultReleaseProbability, fixedNow)

		before, after := state.Slots(), next.Slots()
		changed := 0
		for j := range before {
			if before[j].Status == after[j].Status {
				continue
			}
			changed++
			pair := []SlotStatus{before[j].Status, after[j].Status}
			assert.ElementsMatch(t, []SlotStatus{StatusAvailable, StatusOccupied}, pair)
			assert.Equal(t, before[j].ID, tr.SlotID)
		}
		require.LessOrEqual(t, changed, 1)
		assert.Equal(t, changed == 1, tr.Changed)

		reserved, _ := next.Slot("slot-5")
		assert.Equal(t, StatusReserved, reserved.Status)
		assigned, _ := next.Slot("slot-9")
		assert.Equal(t, StatusAssigned, assigned.Status)

		state = next
	}
}

func TestAssignAvailableSlot(t *testing.T) {
	state := testState(t, slotAt("S1", "A01", 3, 4, StatusAvailable))

	next, slot, route, err := Assign(state, AssignRequest{
		SlotID:    "S1",
		SessionID: "U1",
		Assignee:  "U1",
		From:      Position{X: 1, Y: 7},
		RouteID:   "route-1",
	}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, StatusAssigned, slot.Status)
	assert.Equal(t, "U1", slot.AssignedTo)
	require.NotNil(t, slot.AssignedAt)
	assert.Equal(t, fixedNow, *slot.AssignedAt)

	stored, _ := next.Slot("S1")
	assert.Equal(t, slot, stored)

	require.Len(t, route.Waypoints, 4)
	assert.Equal(t, Position{X: 3, Y: 4}, route.Destination().Position)
	assert.Equal(t, "U1", route.SessionID)
	assert.Equal(t, "route-1", route.ID)
}

func TestAssignRefusesNonAvailableSlots(t *testing.T) {
	state := mixedState(t)

	for _, id := range []string{"S2", "S3", "S4"} {
		next, _, _, err := Assign(state, AssignRequest{SlotID: id, Assignee: "U1"}, fixedNow)
		assert.ErrorIs(t, err, ErrSlotUnavailable, id)
		assert.Equal(t, state.Slots(), next.Slots(), id)
	}
}

func TestAssignUnknownSlot(t *testing.T) {
	state := mixedState(t)

	next, _, _, err := Assign(state, AssignRequest{SlotID: "nope"}, fixedNow)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, state.Slots(), next.Slots())
}

func TestResetClearsEverything(t *testing.T) {
	state := mixedState(t)
	state, _, _, err := Assign(state, AssignRequest{SlotID: "S1", Assignee: "U1"}, fixedNow)
	require.NoError(t, err)

	once := Reset(state)
	for _, slot := range once.Slots() {
		assert.Equal(t, StatusAvailable, slot.Status)
		assert.Empty(t, slot.AssignedTo)
		assert.Nil(t, slot.AssignedAt)
		assert.Nil(t, slot.OccupiedSince)
	}

	twice := Reset(once)
	assert.Equal(t, once.Slots(), twice.Slots())
}

func TestSetStatus(t *testing.T) {
	state := mixedState(t)

	next, slot, err := SetStatus(state, "S1", StatusReserved, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, slot.Status)
	stored, _ := next.Slot("S1")
	assert.Equal(t, StatusReserved, stored.Status)

	next, slot, err = SetStatus(next, "S1", StatusOccupied, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, slot.OccupiedSince)

	_, _, err = SetStatus(next, "S1", SlotStatus("towed"), fixedNow)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, _, err = SetStatus(next, "missing", StatusAvailable, fixedNow)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestSetStatusClearsAssignment(t *testing.T) {
	state := testState(t, slotAt("S1", "A01", 0, 0, StatusAvailable))
	state, _, _, err := Assign(state, AssignRequest{SlotID: "S1", Assignee: "U1"}, fixedNow)
	require.NoError(t, err)

	_, slot, err := SetStatus(state, "S1", StatusAssigned, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "U1", slot.AssignedTo)

	_, slot, err = SetStatus(state, "S1", StatusReserved, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, slot.AssignedTo)
	assert.Nil(t, slot.AssignedAt)
}

func TestAssignNearest(t *testing.T) {
	state := testState(t,
		slotAt("S1", "A01", 0, 0, StatusAvailable),
		slotAt("S2", "A02", 1, 6, StatusOccupied),
		slotAt("S3", "A03", 3, 7, StatusAvailable),
	)

	next, slot, route, err := AssignNearest(state, AssignRequest{SlotID: "S1", Assignee: "U1", From: Position{X: 1, Y: 7}}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "S3", slot.ID)
	assert.Equal(t, Position{X: 3, Y: 7}, route.Destination().Position)

	next, slot, _, err = AssignNearest(next, AssignRequest{Assignee: "U2", From: Position{X: 1, Y: 7}}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "S1", slot.ID)

	_, _, _, err = AssignNearest(next, AssignRequest{Assignee: "U3"}, fixedNow)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestUnassign(t *testing.T) {
	state := mixedState(t)
	state, _, _, err := Assign(state, AssignRequest{SlotID: "S1", Assignee: "U1"}, fixedNow)
	require.NoError(t, err)

	_, _, ok := Unassign(state, "S1", "U2")
	assert.False(t, ok, "held by someone else")
	_, _, ok = Unassign(state, "S2", "U1")
	assert.False(t, ok, "not assigned")
	_, _, ok = Unassign(state, "missing", "U1")
	assert.False(t, ok)

	next, slot, ok := Unassign(state, "S1", "U1")
	require.True(t, ok)
	assert.Equal(t, StatusAvailable, slot.Status)
	assert.Empty(t, slot.AssignedTo)
	assert.Nil(t, slot.AssignedAt)
	stored, _ := next.Slot("S1")
	assert.Equal(t, slot, stored)
}
