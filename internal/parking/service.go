package parking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is the application state: one lot, the simulator owning its
// slots, and every visitor session.
type Service struct {
	lot       Lot
	simulator *Simulator
	sessions  *Sessions
	start     Position
	notifier  Notifier
	now       func() time.Time

	// serialises the session check and the slot update in AssignSlot
	assignMu sync.Mutex
}

func NewService(lot Lot, simulator *Simulator, start Position, notifier Notifier) *Service {
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &Service{
		lot:       lot,
		simulator: simulator,
		sessions:  NewSessions(),
		start:     start,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (s *Service) Lot() Lot {
	return s.lot
}

func (s *Service) Slots() []Slot {
	return s.simulator.Snapshot().Slots()
}

func (s *Service) Slot(id string) (Slot, error) {
	slot, ok := s.simulator.Snapshot().Slot(id)
	if !ok {
		return Slot{}, fmt.Errorf("%w: %s", ErrSlotNotFound, id)
	}
	return slot, nil
}

func (s *Service) Stats() Stats {
	return s.simulator.Snapshot().Stats()
}

func (s *Service) SetSlotStatus(ctx context.Context, slotID string, status SlotStatus) (Slot, error) {
	return s.simulator.SetStatus(ctx, slotID, status)
}

type SimulationStatus struct {
	Running  bool   `json:"running"`
	Interval string `json:"interval"`
}

func (s *Service) Simulation() SimulationStatus {
	return SimulationStatus{
		Running:  s.simulator.Running(),
		Interval: s.simulator.Interval().String(),
	}
}

func (s *Service) StartSimulation(ctx context.Context) bool {
	return s.simulator.Start(ctx)
}

func (s *Service) StopSimulation(ctx context.Context) bool {
	return s.simulator.Stop(ctx)
}

func (s *Service) Tick(ctx context.Context) Transition {
	return s.simulator.Tick(ctx)
}

func (s *Service) Reset(ctx context.Context) {
	s.simulator.Reset(ctx)
}

// Enter opens a session for an entry token. The token is not checked
// beyond being present.
func (s *Service) Enter(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrMissingToken
	}

	session := Session{
		ID:        uuid.NewString(),
		UserID:    "user-" + uuid.NewString()[:8],
		LotID:     s.lot.ID,
		EntryTime: s.now(),
		Status:    SessionEntered,
		Token:     token,
		Position:  s.start,
	}
	s.sessions.add(session)

	s.notifier.Notify(ctx, Event{
		Kind:      EventSessionEntered,
		Message:   fmt.Sprintf("Welcome to %s!", s.lot.Name),
		SessionID: session.ID,
		At:        session.EntryTime,
	})
	return session, nil
}

func (s *Service) Session(id string) (Session, error) {
	return s.sessions.Get(id)
}

func (s *Service) Sessions() []Session {
	return s.sessions.List()
}

func (s *Service) ActiveSessions() int {
	return s.sessions.Active()
}

// AssignSlot reserves slotID for the session and stores the route from
// the session's current position as its navigation.
func (s *Service) AssignSlot(ctx context.Context, sessionID, slotID string) (Slot, Route, error) {
	return s.assign(ctx, sessionID, func(ctx context.Context, req AssignRequest) (Slot, Route, error) {
		req.SlotID = slotID
		return s.simulator.Assign(ctx, req)
	})
}

// AssignNearest reserves the available slot closest to the session.
func (s *Service) AssignNearest(ctx context.Context, sessionID string) (Slot, Route, error) {
	return s.assign(ctx, sessionID, s.simulator.AssignNearest)
}

func (s *Service) assign(ctx context.Context, sessionID string, pick func(context.Context, AssignRequest) (Slot, Route, error)) (Slot, Route, error) {
	s.assignMu.Lock()
	defer s.assignMu.Unlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return Slot{}, Route{}, err
	}
	if !session.canAssign() {
		return Slot{}, Route{}, fmt.Errorf("%w: session is %s", ErrInvalidTransition, session.Status)
	}

	slot, route, err := pick(ctx, AssignRequest{
		SessionID: session.ID,
		Assignee:  session.UserID,
		From:      session.Position,
		RouteID:   "route-" + uuid.NewString(),
	})
	if err != nil {
		return slot, Route{}, err
	}

	// The session may have exited while the slot was being taken.
	if _, err := s.sessions.assign(sessionID, slot.ID, route); err != nil {
		s.simulator.Unassign(ctx, slot.ID, session.UserID)
		return Slot{}, Route{}, err
	}
	return slot, route, nil
}

// NearestSlot finds the available slot closest to the session's
// current position without reserving it.
func (s *Service) NearestSlot(sessionID string) (Slot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return Slot{}, err
	}
	slot, ok := NearestAvailable(s.simulator.Snapshot(), session.Position)
	if !ok {
		return Slot{}, fmt.Errorf("%w: no slot available", ErrSlotUnavailable)
	}
	return slot, nil
}

func (s *Service) SlotsByStatus(status SlotStatus) []Slot {
	return ByStatus(s.simulator.Snapshot(), status)
}

// SessionSlot returns the slot currently assigned to the session's user.
func (s *Service) SessionSlot(sessionID string) (Slot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return Slot{}, err
	}
	slot, ok := AssignedTo(s.simulator.Snapshot(), session.UserID)
	if !ok {
		return Slot{}, fmt.Errorf("%w: no slot assigned to session", ErrSlotNotFound)
	}
	return slot, nil
}

// Advance moves a session one step along its lifecycle. Exiting goes
// through Exit so the exit time is stamped.
func (s *Service) Advance(ctx context.Context, sessionID string, to SessionStatus) (Session, error) {
	if to == SessionExited {
		return s.Exit(ctx, sessionID)
	}
	return s.sessions.update(sessionID, func(sess *Session) error {
		if to == SessionAssigned {
			return fmt.Errorf("%w: assign a slot instead", ErrInvalidTransition)
		}
		if !sess.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, sess.Status, to)
		}
		sess.Status = to
		return nil
	})
}

func (s *Service) Move(ctx context.Context, sessionID string, pos Position) (Session, error) {
	return s.sessions.update(sessionID, func(sess *Session) error {
		if sess.Status == SessionExited {
			return fmt.Errorf("%w: session has exited", ErrInvalidTransition)
		}
		sess.Position = pos
		return nil
	})
}

// Exit closes the session and drops its route. The slot it held is not
// touched.
func (s *Service) Exit(ctx context.Context, sessionID string) (Session, error) {
	session, err := s.sessions.update(sessionID, func(sess *Session) error {
		if !sess.Status.CanTransition(SessionExited) {
			return fmt.Errorf("%w: session already exited", ErrInvalidTransition)
		}
		now := s.now()
		sess.Status = SessionExited
		sess.ExitTime = &now
		return nil
	})
	if err != nil {
		return session, err
	}
	s.sessions.dropRoute(sessionID)

	s.notifier.Notify(ctx, Event{
		Kind:      EventSessionExited,
		Message:   "Thank you for visiting",
		SessionID: session.ID,
		At:        *session.ExitTime,
	})
	return session, nil
}

func (s *Service) Navigation(sessionID string) (Navigation, error) {
	return s.sessions.Navigation(sessionID)
}

func (s *Service) StartNavigation(ctx context.Context, sessionID string) (Navigation, error) {
	return s.sessions.updateNavigation(sessionID, func(n *Navigation) {
		n.Active = true
	})
}

// NextStep advances to the following waypoint, stopping at the last.
func (s *Service) NextStep(ctx context.Context, sessionID string) (Navigation, error) {
	return s.sessions.updateNavigation(sessionID, func(n *Navigation) {
		if n.Step < len(n.Route.Waypoints)-1 {
			n.Step++
		}
	})
}

// StopNavigation ends guidance and discards the route.
func (s *Service) StopNavigation(ctx context.Context, sessionID string) (Navigation, error) {
	n, err := s.sessions.updateNavigation(sessionID, func(n *Navigation) {
		n.Active = false
	})
	if err != nil {
		return n, err
	}
	s.sessions.dropRoute(sessionID)
	return n, nil
}

const (
	ViewAdmin = "admin"
	ViewUser  = "user"
)

type EntryView struct {
	View       string            `json:"view"`
	Lot        Lot               `json:"lot"`
	Session    *Session          `json:"session,omitempty"`
	Stats      *Stats            `json:"stats,omitempty"`
	Simulation *SimulationStatus `json:"simulation,omitempty"`
	Slots      []Slot            `json:"slots"`
}

// Entry resolves the query parameters a visitor arrives with. The admin
// flag wins over a token; with neither, the caller must scan a code.
func (s *Service) Entry(ctx context.Context, token string, admin bool) (EntryView, error) {
	if admin {
		state := s.simulator.Snapshot()
		stats := state.Stats()
		simulation := s.Simulation()
		return EntryView{
			View:       ViewAdmin,
			Lot:        s.lot,
			Stats:      &stats,
			Simulation: &simulation,
			Slots:      state.Slots(),
		}, nil
	}

	session, err := s.Enter(ctx, token)
	if err != nil {
		return EntryView{}, err
	}
	return EntryView{
		View:    ViewUser,
		Lot:     s.lot,
		Session: &session,
		Slots:   s.Slots(),
	}, nil
}
