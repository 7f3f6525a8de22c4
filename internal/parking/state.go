package parking

import (
	"fmt"
	"math"
)

// State is an immutable snapshot of every slot in a lot. Update
// functions return a new State and leave the receiver untouched.
type State struct {
	slots []Slot
	index map[string]int
}

// NewState builds a registry from explicit slot records.
func NewState(slots []Slot) (State, error) {
	index := make(map[string]int, len(slots))
	type cell struct {
		floor int
		pos   Position
	}
	taken := make(map[cell]string, len(slots))

	for i, slot := range slots {
		if _, ok := index[slot.ID]; ok {
			return State{}, fmt.Errorf("%w: id %s", ErrDuplicateSlot, slot.ID)
		}
		c := cell{floor: slot.Floor, pos: slot.Position}
		if other, ok := taken[c]; ok {
			return State{}, fmt.Errorf("%w: %s and %s share position (%d,%d) on floor %d",
				ErrDuplicateSlot, other, slot.ID, slot.Position.X, slot.Position.Y, slot.Floor)
		}
		index[slot.ID] = i
		taken[c] = slot.ID
	}

	copied := make([]Slot, len(slots))
	copy(copied, slots)
	return State{slots: copied, index: index}, nil
}

var (
	initialStatuses = []SlotStatus{StatusAvailable, StatusOccupied, StatusAvailable, StatusAvailable}
	specialTypes    = []SlotType{TypeRegular, TypeRegular, TypeElectric, TypeDisabled}
)

// Generate fills every non-lane cell of the layout with a slot of random
// initial status. Roughly one slot in ten draws a special type.
func Generate(lot Lot, layout Layout, rng Rand) State {
	slots := make([]Slot, 0, layout.SlotCount())
	number := 1

	for y := 0; y < layout.Rows; y++ {
		for x := 0; x < layout.Columns; x++ {
			pos := Position{X: x, Y: y}
			if layout.IsLane(pos) {
				continue
			}

			slotType := TypeRegular
			status := initialStatuses[rng.IntN(len(initialStatuses))]
			if rng.Float64() > 0.9 {
				slotType = specialTypes[rng.IntN(len(specialTypes))]
			}

			slots = append(slots, Slot{
				ID:       fmt.Sprintf("slot-%d", number),
				LotID:    lot.ID,
				Number:   fmt.Sprintf("A%02d", number),
				Status:   status,
				Position: pos,
				Floor:    layout.Floor,
				Type:     slotType,
			})
			number++
		}
	}

	state, _ := NewState(slots)
	return state
}

func (s State) Len() int {
	return len(s.slots)
}

func (s State) Slot(id string) (Slot, bool) {
	i, ok := s.index[id]
	if !ok {
		return Slot{}, false
	}
	return s.slots[i], true
}

// Slots returns a copy in registry order.
func (s State) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// with returns a copy of s where slot i is replaced. The index map is
// shared; it never changes after NewState.
func (s State) with(i int, slot Slot) State {
	slots := make([]Slot, len(s.slots))
	copy(slots, s.slots)
	slots[i] = slot
	return State{slots: slots, index: s.index}
}

type Stats struct {
	Total         int `json:"total"`
	Available     int `json:"available"`
	Occupied      int `json:"occupied"`
	Assigned      int `json:"assigned"`
	Reserved      int `json:"reserved"`
	OccupancyRate int `json:"occupancy_rate"`
}

func (s State) Stats() Stats {
	stats := Stats{Total: len(s.slots)}
	for _, slot := range s.slots {
		switch slot.Status {
		case StatusAvailable:
			stats.Available++
		case StatusOccupied:
			stats.Occupied++
		case StatusAssigned:
			stats.Assigned++
		case StatusReserved:
			stats.Reserved++
		}
	}
	if stats.Total > 0 {
		stats.OccupancyRate = int(math.Round(float64(stats.Total-stats.Available) / float64(stats.Total) * 100))
	}
	return stats
}
