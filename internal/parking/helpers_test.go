package parking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// scriptedRand replays fixed draws so a test can pick the slot a tick
// lands on and whether an occupied slot is released.
type scriptedRand struct {
	ints   []int
	floats []float64
}

func (r *scriptedRand) IntN(n int) int {
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRand) Float64() float64 {
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func slotAt(id, number string, x, y int, status SlotStatus) Slot {
	return Slot{
		ID:       id,
		LotID:    "lot-1",
		Number:   number,
		Status:   status,
		Position: Position{X: x, Y: y},
		Floor:    1,
		Type:     TypeRegular,
	}
}

func testState(t *testing.T, slots ...Slot) State {
	t.Helper()
	state, err := NewState(slots)
	require.NoError(t, err)
	return state
}

func mixedState(t *testing.T) State {
	return testState(t,
		slotAt("S1", "A01", 0, 0, StatusAvailable),
		slotAt("S2", "A02", 1, 0, StatusOccupied),
		slotAt("S3", "A03", 3, 0, StatusAssigned),
		slotAt("S4", "A04", 4, 0, StatusReserved),
	)
}
