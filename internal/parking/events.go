package parking

import (
	"context"
	"fmt"
	"time"
)

type EventKind string

const (
	EventSlotOccupied      EventKind = "slot_occupied"
	EventSlotReleased      EventKind = "slot_released"
	EventSlotAssigned      EventKind = "slot_assigned"
	EventSlotUpdated       EventKind = "slot_updated"
	EventSimulationStarted EventKind = "simulation_started"
	EventSimulationStopped EventKind = "simulation_stopped"
	EventSimulationReset   EventKind = "simulation_reset"
	EventSessionEntered    EventKind = "session_entered"
	EventSessionExited     EventKind = "session_exited"
)

type Event struct {
	Kind      EventKind  `json:"kind"`
	Message   string     `json:"message"`
	SlotID    string     `json:"slot_id,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	From      SlotStatus `json:"from,omitempty"`
	To        SlotStatus `json:"to,omitempty"`
	At        time.Time  `json:"at"`
}

// Notifier receives every state change. Implementations must not call
// back into the Simulator synchronously.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type NotifierFunc func(ctx context.Context, event Event)

func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

// Notifiers fans one event out to several notifiers in order.
type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, event Event) {
	for _, notifier := range n {
		notifier.Notify(ctx, event)
	}
}

func transitionEvent(t Transition, at time.Time) Event {
	e := Event{SlotID: t.SlotID, From: t.From, To: t.To, At: at}
	if t.To == StatusOccupied {
		e.Kind = EventSlotOccupied
		e.Message = fmt.Sprintf("Slot %s occupied", t.Number)
	} else {
		e.Kind = EventSlotReleased
		e.Message = fmt.Sprintf("Slot %s became available", t.Number)
	}
	return e
}
