package parking

import (
	"fmt"
	"time"
)

type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusOccupied  SlotStatus = "occupied"
	StatusAssigned  SlotStatus = "assigned"
	StatusReserved  SlotStatus = "reserved"
)

var slotStatuses = []SlotStatus{StatusAvailable, StatusOccupied, StatusAssigned, StatusReserved}

func ParseSlotStatus(s string) (SlotStatus, error) {
	for _, status := range slotStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type SlotType string

const (
	TypeRegular  SlotType = "regular"
	TypeDisabled SlotType = "disabled"
	TypeElectric SlotType = "electric"
	TypeCompact  SlotType = "compact"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Offset(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

type Slot struct {
	ID            string     `json:"id"`
	LotID         string     `json:"lot_id"`
	Number        string     `json:"number"`
	Status        SlotStatus `json:"status"`
	Position      Position   `json:"position"`
	Floor         int        `json:"floor"`
	Type          SlotType   `json:"type"`
	AssignedTo    string     `json:"assigned_to,omitempty"`
	AssignedAt    *time.Time `json:"assigned_at,omitempty"`
	OccupiedSince *time.Time `json:"occupied_since,omitempty"`
}

func (s Slot) IsAvailable() bool {
	return s.Status == StatusAvailable
}

func (s *Slot) assign(assignee string, at time.Time) {
	s.Status = StatusAssigned
	s.AssignedTo = assignee
	s.AssignedAt = &at
	s.OccupiedSince = nil
}

func (s *Slot) occupy(at time.Time) {
	s.Status = StatusOccupied
	s.OccupiedSince = &at
	s.clearAssignment()
}

func (s *Slot) release() {
	s.Status = StatusAvailable
	s.OccupiedSince = nil
	s.clearAssignment()
}

func (s *Slot) clearAssignment() {
	s.AssignedTo = ""
	s.AssignedAt = nil
}
