package parking

import "sort"

// NearestAvailable scans for the available slot closest to from in a
// straight line. Ties go to the earlier slot in registry order.
func NearestAvailable(s State, from Position) (Slot, bool) {
	best := -1
	bestDist := 0
	for i, slot := range s.slots {
		if !slot.IsAvailable() {
			continue
		}
		dx := slot.Position.X - from.X
		dy := slot.Position.Y - from.Y
		dist := dx*dx + dy*dy
		if best == -1 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best == -1 {
		return Slot{}, false
	}
	return s.slots[best], true
}

// ByStatus lists slots in one status, ordered by number.
func ByStatus(s State, status SlotStatus) []Slot {
	var out []Slot
	for _, slot := range s.slots {
		if slot.Status == status {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Number < out[j].Number
	})
	return out
}

// AssignedTo finds the slot currently assigned to a user.
func AssignedTo(s State, assignee string) (Slot, bool) {
	for _, slot := range s.slots {
		if slot.Status == StatusAssigned && slot.AssignedTo == assignee {
			return slot, true
		}
	}
	return Slot{}, false
}
