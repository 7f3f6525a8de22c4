package parking

import (
	"fmt"
	"sync"
	"time"
)

type SessionStatus string

const (
	SessionEntered   SessionStatus = "entered"
	SessionAssigned  SessionStatus = "assigned"
	SessionParked    SessionStatus = "parked"
	SessionShopping  SessionStatus = "shopping"
	SessionReturning SessionStatus = "returning"
	SessionExited    SessionStatus = "exited"
)

var sessionLifecycle = []SessionStatus{
	SessionEntered,
	SessionAssigned,
	SessionParked,
	SessionShopping,
	SessionReturning,
	SessionExited,
}

func ParseSessionStatus(s string) (SessionStatus, error) {
	for _, status := range sessionLifecycle {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
}

// CanTransition allows one step forward along the lifecycle, or a jump
// to exited from anywhere before it.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	if s == SessionExited {
		return false
	}
	if to == SessionExited {
		return true
	}
	return lifecycleIndex(to) == lifecycleIndex(s)+1
}

func lifecycleIndex(s SessionStatus) int {
	for i, status := range sessionLifecycle {
		if status == s {
			return i
		}
	}
	return -1
}

type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	LotID     string        `json:"lot_id"`
	SlotID    string        `json:"slot_id,omitempty"`
	EntryTime time.Time     `json:"entry_time"`
	ExitTime  *time.Time    `json:"exit_time,omitempty"`
	Status    SessionStatus `json:"status"`
	Token     string        `json:"token"`
	Position  Position      `json:"position"`
}

func (s Session) canAssign() bool {
	return s.Status == SessionEntered && s.SlotID == ""
}

type Navigation struct {
	Route            Route    `json:"route"`
	Active           bool     `json:"active"`
	Step             int      `json:"step"`
	Current          Waypoint `json:"current"`
	RemainingSeconds int      `json:"remaining_seconds"`
	RemainingMeters  int      `json:"remaining_meters"`
	ProgressPercent  int      `json:"progress_percent"`
}

func newNavigation(route Route) *Navigation {
	n := &Navigation{Route: route}
	n.refresh()
	return n
}

func (n *Navigation) refresh() {
	n.Current = n.Route.Waypoints[n.Step]
	n.RemainingSeconds = n.Route.RemainingSeconds(n.Step)
	n.RemainingMeters = n.Route.RemainingMeters(n.Step)
	n.ProgressPercent = n.Route.Progress(n.Step)
}

// Sessions keeps every session for the life of the process, plus the
// navigation state of those that hold a route.
type Sessions struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	order      []string
	navigation map[string]*Navigation
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions:   make(map[string]*Session),
		navigation: make(map[string]*Navigation),
	}
}

func (s *Sessions) add(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &session
	s.order = append(s.order, session.ID)
}

func (s *Sessions) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return *session, nil
}

// List returns sessions in entry order.
func (s *Sessions) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.sessions[id])
	}
	return out
}

// Active counts sessions that have not exited.
func (s *Sessions) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, session := range s.sessions {
		if session.Status != SessionExited {
			count++
		}
	}
	return count
}

// update applies fn to a copy and stores it only if fn succeeds.
func (s *Sessions) update(id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	next := *current
	if err := fn(&next); err != nil {
		return *current, err
	}
	s.sessions[id] = &next
	return next, nil
}

// assign records the slot and route on a session that can still take
// one. The check and both writes happen under one lock so an exit cannot
// interleave.
func (s *Sessions) assign(id, slotID string, route Route) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if !current.canAssign() {
		return *current, fmt.Errorf("%w: session is %s", ErrInvalidTransition, current.Status)
	}
	next := *current
	next.SlotID = slotID
	next.Status = SessionAssigned
	s.sessions[id] = &next
	s.navigation[id] = newNavigation(route)
	return next, nil
}

func (s *Sessions) dropRoute(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.navigation, id)
}

func (s *Sessions) Navigation(id string) (Navigation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[id]; !ok {
		return Navigation{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	n, ok := s.navigation[id]
	if !ok {
		return Navigation{}, ErrNoRoute
	}
	return *n, nil
}

func (s *Sessions) updateNavigation(id string, fn func(*Navigation)) (Navigation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return Navigation{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	n, ok := s.navigation[id]
	if !ok {
		return Navigation{}, ErrNoRoute
	}
	fn(n)
	n.refresh()
	return *n, nil
}
