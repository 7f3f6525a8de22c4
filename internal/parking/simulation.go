package parking

import (
	"fmt"
	"time"
)

// DefaultReleaseProbability is the chance that a tick landing on an
// occupied slot frees it.
const DefaultReleaseProbability = 0.3

// Transition describes what a tick did to the slot it picked.
type Transition struct {
	SlotID  string     `json:"slot_id"`
	Number  string     `json:"number"`
	From    SlotStatus `json:"from"`
	To      SlotStatus `json:"to"`
	Changed bool       `json:"changed"`
}

// Tick picks one slot uniformly at random. An available slot becomes
// occupied; an occupied slot becomes available with probability
// releaseProbability. Assigned and reserved slots are left alone.
func Tick(s State, rng Rand, releaseProbability float64, now time.Time) (State, Transition) {
	if s.Len() == 0 {
		return s, Transition{}
	}

	i := rng.IntN(s.Len())
	slot := s.slots[i]
	t := Transition{SlotID: slot.ID, Number: slot.Number, From: slot.Status, To: slot.Status}

	switch slot.Status {
	case StatusAvailable:
		slot.occupy(now)
	case StatusOccupied:
		if rng.Float64() >= releaseProbability {
			return s, t
		}
		slot.release()
	default:
		return s, t
	}

	t.To = slot.Status
	t.Changed = true
	return s.with(i, slot), t
}

type AssignRequest struct {
	SlotID    string
	SessionID string
	Assignee  string
	From      Position
	RouteID   string
}

// Assign marks an available slot as assigned and builds the route to it.
// Any other status fails with ErrSlotUnavailable and s is returned as is.
func Assign(s State, req AssignRequest, now time.Time) (State, Slot, Route, error) {
	i, ok := s.index[req.SlotID]
	if !ok {
		return s, Slot{}, Route{}, fmt.Errorf("%w: %s", ErrSlotNotFound, req.SlotID)
	}

	slot := s.slots[i]
	if !slot.IsAvailable() {
		return s, slot, Route{}, fmt.Errorf("%w: %s is %s", ErrSlotUnavailable, slot.Number, slot.Status)
	}

	slot.assign(req.Assignee, now)
	route := BuildRoute(req.RouteID, req.SessionID, req.From, slot)
	return s.with(i, slot), slot, route, nil
}

// AssignNearest assigns the available slot closest to req.From. req.SlotID
// is ignored.
func AssignNearest(s State, req AssignRequest, now time.Time) (State, Slot, Route, error) {
	slot, ok := NearestAvailable(s, req.From)
	if !ok {
		return s, Slot{}, Route{}, fmt.Errorf("%w: no slot available", ErrSlotUnavailable)
	}
	req.SlotID = slot.ID
	return Assign(s, req, now)
}

// Unassign frees a slot only while it is still assigned to assignee.
func Unassign(s State, slotID, assignee string) (State, Slot, bool) {
	i, ok := s.index[slotID]
	if !ok {
		return s, Slot{}, false
	}
	slot := s.slots[i]
	if slot.Status != StatusAssigned || slot.AssignedTo != assignee {
		return s, slot, false
	}
	slot.release()
	return s.with(i, slot), slot, true
}

// Reset returns a state where every slot is available and carries no
// assignment metadata.
func Reset(s State) State {
	slots := make([]Slot, len(s.slots))
	for i, slot := range s.slots {
		slot.release()
		slots[i] = slot
	}
	return State{slots: slots, index: s.index}
}

// SetStatus is the administrative override: any slot may be put in any
// status. Assignment metadata survives only when the status is assigned.
func SetStatus(s State, slotID string, status SlotStatus, now time.Time) (State, Slot, error) {
	if _, err := ParseSlotStatus(string(status)); err != nil {
		return s, Slot{}, err
	}

	i, ok := s.index[slotID]
	if !ok {
		return s, Slot{}, fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}

	slot := s.slots[i]
	switch status {
	case StatusAvailable:
		slot.release()
	case StatusOccupied:
		if slot.Status != StatusOccupied {
			slot.occupy(now)
		}
	case StatusAssigned:
		slot.Status = StatusAssigned
		slot.OccupiedSince = nil
	default:
		slot.Status = status
		slot.OccupiedSince = nil
		slot.clearAssignment()
	}
	return s.with(i, slot), slot, nil
}
