package parking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const DefaultTickInterval = 3 * time.Second

// Simulator owns the live slot State. Every update goes through its
// mutex; notifications are sent after the lock is released.
type Simulator struct {
	mu                 sync.Mutex
	state              State
	rng                Rand
	interval           time.Duration
	releaseProbability float64
	notifier           Notifier
	now                func() time.Time

	running bool
	stop    chan struct{}
	done    chan struct{}
}

type SimulatorOption func(*Simulator)

func WithInterval(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithReleaseProbability(p float64) SimulatorOption {
	return func(s *Simulator) {
		if p >= 0 && p <= 1 {
			s.releaseProbability = p
		}
	}
}

func WithNotifier(n Notifier) SimulatorOption {
	return func(s *Simulator) {
		s.notifier = n
	}
}

func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		s.now = now
	}
}

func NewSimulator(state State, rng Rand, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		state:              state,
		rng:                rng,
		interval:           DefaultTickInterval,
		releaseProbability: DefaultReleaseProbability,
		notifier:           Notifiers{},
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking on the configured interval. It returns false if
// the simulator was already running. The ticker outlives ctx
// cancellation; only Stop ends it.
func (s *Simulator) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(context.WithoutCancel(ctx), s.stop, s.done)
	s.mu.Unlock()

	s.notifier.Notify(ctx, Event{Kind: EventSimulationStarted, Message: "Simulation started", At: s.now()})
	return true
}

func (s *Simulator) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop suspends ticking and waits for the ticker goroutine to exit. Slot
// state is kept. It returns false if the simulator was not running.
func (s *Simulator) Stop(ctx context.Context) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	close(stop)
	<-done

	s.notifier.Notify(ctx, Event{Kind: EventSimulationStopped, Message: "Simulation stopped", At: s.now()})
	return true
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) Interval() time.Duration {
	return s.interval
}

// Tick runs one simulation step immediately.
func (s *Simulator) Tick(ctx context.Context) Transition {
	s.mu.Lock()
	now := s.now()
	next, t := Tick(s.state, s.rng, s.releaseProbability, now)
	s.state = next
	s.mu.Unlock()

	if t.Changed {
		s.notifier.Notify(ctx, transitionEvent(t, now))
	}
	return t
}

func (s *Simulator) Reset(ctx context.Context) {
	s.mu.Lock()
	s.state = Reset(s.state)
	s.mu.Unlock()

	s.notifier.Notify(ctx, Event{Kind: EventSimulationReset, Message: "All slots reset to available", At: s.now()})
}

func (s *Simulator) Assign(ctx context.Context, req AssignRequest) (Slot, Route, error) {
	return s.assign(ctx, req, Assign)
}

// AssignNearest picks and assigns the closest available slot under one
// lock, so a concurrent tick cannot take it in between.
func (s *Simulator) AssignNearest(ctx context.Context, req AssignRequest) (Slot, Route, error) {
	return s.assign(ctx, req, AssignNearest)
}

type assignFunc func(State, AssignRequest, time.Time) (State, Slot, Route, error)

func (s *Simulator) assign(ctx context.Context, req AssignRequest, fn assignFunc) (Slot, Route, error) {
	s.mu.Lock()
	now := s.now()
	next, slot, route, err := fn(s.state, req, now)
	s.state = next
	s.mu.Unlock()

	if err != nil {
		return slot, Route{}, err
	}

	s.notifier.Notify(ctx, Event{
		Kind:      EventSlotAssigned,
		Message:   fmt.Sprintf("Slot %s assigned", slot.Number),
		SlotID:    slot.ID,
		SessionID: req.SessionID,
		From:      StatusAvailable,
		To:        StatusAssigned,
		At:        now,
	})
	return slot, route, nil
}

// Unassign returns a slot to available if it is still held by assignee.
func (s *Simulator) Unassign(ctx context.Context, slotID, assignee string) bool {
	s.mu.Lock()
	now := s.now()
	next, slot, ok := Unassign(s.state, slotID, assignee)
	s.state = next
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.notifier.Notify(ctx, Event{
		Kind:    EventSlotUpdated,
		Message: fmt.Sprintf("Slot %s became available", slot.Number),
		SlotID:  slot.ID,
		From:    StatusAssigned,
		To:      StatusAvailable,
		At:      now,
	})
	return true
}

func (s *Simulator) SetStatus(ctx context.Context, slotID string, status SlotStatus) (Slot, error) {
	s.mu.Lock()
	now := s.now()
	previous, _ := s.state.Slot(slotID)
	next, slot, err := SetStatus(s.state, slotID, status, now)
	s.state = next
	s.mu.Unlock()

	if err != nil {
		return Slot{}, err
	}

	s.notifier.Notify(ctx, Event{
		Kind:    EventSlotUpdated,
		Message: "Slot status updated",
		SlotID:  slot.ID,
		From:    previous.Status,
		To:      slot.Status,
		At:      now,
	})
	return slot, nil
}

// Snapshot returns the current State. It is safe to keep; later updates
// produce new values.
func (s *Simulator) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
