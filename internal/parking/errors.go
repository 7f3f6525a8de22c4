package parking

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotUnavailable is returned when an assignment targets a slot
	// that is not available. Nothing is mutated.
	ErrSlotUnavailable = errors.New("slot is not available")
	// ErrSlotNotFound also matches ErrSlotUnavailable.
	ErrSlotNotFound = fmt.Errorf("%w: slot not found", ErrSlotUnavailable)

	ErrDuplicateSlot     = errors.New("duplicate slot")
	ErrInvalidStatus     = errors.New("invalid slot status")
	ErrSessionNotFound   = errors.New("session not found")
	ErrMissingToken      = errors.New("entry token is required")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNoRoute           = errors.New("session has no route")
)
