package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"smartpark/internal/logging"
	"smartpark/internal/telemetry"
)

type InstrumentedService struct {
	*Service
	telemetry *telemetry.Provider

	// Metrics
	assignments       metric.Int64Counter
	transitions       metric.Int64Counter
	sessionsEntered   metric.Int64Counter
	activeSessions    metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	slotsByStatus     metric.Int64ObservableGauge
}

func NewInstrumentedService(service *Service, tp *telemetry.Provider) (*InstrumentedService, error) {
	meter := tp.Meter()

	assignments, err := meter.Int64Counter("slot_assignments_total",
		metric.WithDescription("Slot assignment attempts"),
		metric.WithUnit("{assignment}"))
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("simulation_transitions_total",
		metric.WithDescription("Slot status changes made by the occupancy simulator"),
		metric.WithUnit("{transition}"))
	if err != nil {
		return nil, err
	}

	sessionsEntered, err := meter.Int64Counter("sessions_total",
		metric.WithDescription("Sessions opened from entry tokens"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter("sessions_active",
		metric.WithDescription("Sessions that have not exited"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of parking operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	slotsByStatus, err := meter.Int64ObservableGauge("slots_by_status",
		metric.WithDescription("Current number of slots in each status"),
		metric.WithUnit("{slot}"))
	if err != nil {
		return nil, err
	}

	is := &InstrumentedService{
		Service:           service,
		telemetry:         tp,
		assignments:       assignments,
		transitions:       transitions,
		sessionsEntered:   sessionsEntered,
		activeSessions:    activeSessions,
		operationDuration: operationDuration,
		slotsByStatus:     slotsByStatus,
	}

	_, err = meter.RegisterCallback(is.observeSlots, slotsByStatus)
	if err != nil {
		return nil, err
	}

	return is, nil
}

func (is *InstrumentedService) observeSlots(_ context.Context, o metric.Observer) error {
	stats := is.Service.Stats()
	counts := map[SlotStatus]int{
		StatusAvailable: stats.Available,
		StatusOccupied:  stats.Occupied,
		StatusAssigned:  stats.Assigned,
		StatusReserved:  stats.Reserved,
	}
	for status, count := range counts {
		o.ObserveInt64(is.slotsByStatus, int64(count), metric.WithAttributes(
			attribute.String("status", string(status)),
		))
	}
	return nil
}

// TransitionRecorder counts simulator transitions, including those made
// by the background ticker. Register it as a simulator notifier.
func (is *InstrumentedService) TransitionRecorder() Notifier {
	return NotifierFunc(func(ctx context.Context, event Event) {
		if event.Kind != EventSlotOccupied && event.Kind != EventSlotReleased {
			return
		}
		is.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(event.From)),
			attribute.String("to", string(event.To)),
		))
		logging.Debug(ctx, event.Message, "slot_id", event.SlotID)
	})
}

func (is *InstrumentedService) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	is.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (is *InstrumentedService) Enter(ctx context.Context, token string) (Session, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.enter")
	defer span.End()

	start := time.Now()
	session, err := is.Service.Enter(ctx, token)
	is.record(ctx, "enter", start, err)

	if err != nil {
		failSpan(span, err)
		logging.Warn(ctx, "entry refused", "error", err)
		return session, err
	}

	span.SetAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("session.user_id", session.UserID),
	)
	is.sessionsEntered.Add(ctx, 1)
	is.activeSessions.Add(ctx, 1)
	logging.Info(ctx, "session entered", "session_id", session.ID, "lot_id", session.LotID)
	return session, nil
}

func (is *InstrumentedService) Entry(ctx context.Context, token string, admin bool) (EntryView, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.entry",
		trace.WithAttributes(attribute.Bool("entry.admin", admin)))
	defer span.End()

	if admin {
		return is.Service.Entry(ctx, token, true)
	}

	session, err := is.Enter(ctx, token)
	if err != nil {
		failSpan(span, err)
		return EntryView{}, err
	}
	return EntryView{
		View:    ViewUser,
		Lot:     is.Lot(),
		Session: &session,
		Slots:   is.Slots(),
	}, nil
}

func (is *InstrumentedService) AssignSlot(ctx context.Context, sessionID, slotID string) (Slot, Route, error) {
	return is.assign(ctx, "assign_slot", sessionID, slotID, func(ctx context.Context) (Slot, Route, error) {
		return is.Service.AssignSlot(ctx, sessionID, slotID)
	})
}

func (is *InstrumentedService) AssignNearest(ctx context.Context, sessionID string) (Slot, Route, error) {
	return is.assign(ctx, "assign_nearest", sessionID, "", func(ctx context.Context) (Slot, Route, error) {
		return is.Service.AssignNearest(ctx, sessionID)
	})
}

func (is *InstrumentedService) assign(ctx context.Context, operation, sessionID, slotID string, fn func(context.Context) (Slot, Route, error)) (Slot, Route, error) {
	attrs := []attribute.KeyValue{attribute.String("session.id", sessionID)}
	if slotID != "" {
		attrs = append(attrs, attribute.String("slot.id", slotID))
	}
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	span.AddEvent("checking_slot_availability")

	slot, route, err := fn(ctx)
	is.record(ctx, operation, start, err)

	if err != nil {
		failSpan(span, err)
		is.assignments.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", "failed"),
			attribute.String("reason", assignFailureReason(err)),
		))
		logging.Warn(ctx, "slot assignment refused", "session_id", sessionID, "slot_id", slotID, "error", err)
		return slot, route, err
	}

	span.SetAttributes(
		attribute.String("slot.id", slot.ID),
		attribute.String("slot.number", slot.Number),
		attribute.Int("route.waypoints", len(route.Waypoints)),
	)
	span.AddEvent("slot_assigned", trace.WithAttributes(
		attribute.String("slot.number", slot.Number),
	))
	is.assignments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", "success"),
		attribute.String("slot_type", string(slot.Type)),
	))
	logging.Info(ctx, "slot assigned", "session_id", sessionID, "slot", slot.Number)
	return slot, route, nil
}

func assignFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrSlotNotFound):
		return "not_found"
	case errors.Is(err, ErrSlotUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	default:
		return "invalid_session"
	}
}

func (is *InstrumentedService) Exit(ctx context.Context, sessionID string) (Session, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.exit",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	start := time.Now()
	session, err := is.Service.Exit(ctx, sessionID)
	is.record(ctx, "exit", start, err)

	if err != nil {
		failSpan(span, err)
		return session, err
	}

	is.activeSessions.Add(ctx, -1)
	logging.Info(ctx, "session exited", "session_id", sessionID)
	return session, nil
}

func (is *InstrumentedService) Advance(ctx context.Context, sessionID string, to SessionStatus) (Session, error) {
	if to == SessionExited {
		return is.Exit(ctx, sessionID)
	}

	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.advance_session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.to", string(to)),
		))
	defer span.End()

	session, err := is.Service.Advance(ctx, sessionID, to)
	if err != nil {
		failSpan(span, err)
	}
	return session, err
}

func (is *InstrumentedService) SetSlotStatus(ctx context.Context, slotID string, status SlotStatus) (Slot, error) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "parking.set_slot_status",
		trace.WithAttributes(
			attribute.String("slot.id", slotID),
			attribute.String("slot.status", string(status)),
		))
	defer span.End()

	start := time.Now()
	slot, err := is.Service.SetSlotStatus(ctx, slotID, status)
	is.record(ctx, "set_slot_status", start, err)

	if err != nil {
		failSpan(span, err)
		return slot, err
	}
	logging.Info(ctx, "slot status updated", "slot", slot.Number, "status", slot.Status)
	return slot, nil
}

func (is *InstrumentedService) Tick(ctx context.Context) Transition {
	ctx, span := is.telemetry.Tracer().Start(ctx, "simulation.tick")
	defer span.End()

	t := is.Service.Tick(ctx)
	span.SetAttributes(
		attribute.String("slot.id", t.SlotID),
		attribute.Bool("transition.changed", t.Changed),
	)
	return t
}

func (is *InstrumentedService) Reset(ctx context.Context) {
	ctx, span := is.telemetry.Tracer().Start(ctx, "simulation.reset")
	defer span.End()

	start := time.Now()
	is.Service.Reset(ctx)
	is.record(ctx, "reset", start, nil)
	logging.Info(ctx, "all slots reset to available")
}

func (is *InstrumentedService) StartSimulation(ctx context.Context) bool {
	ctx, span := is.telemetry.Tracer().Start(ctx, "simulation.start")
	defer span.End()

	started := is.Service.StartSimulation(ctx)
	span.SetAttributes(attribute.Bool("simulation.started", started))
	if started {
		logging.Info(ctx, "simulation started", "interval", is.Simulation().Interval)
	}
	return started
}

func (is *InstrumentedService) StopSimulation(ctx context.Context) bool {
	ctx, span := is.telemetry.Tracer().Start(ctx, "simulation.stop")
	defer span.End()

	stopped := is.Service.StopSimulation(ctx)
	span.SetAttributes(attribute.Bool("simulation.stopped", stopped))
	if stopped {
		logging.Info(ctx, "simulation stopped")
	}
	return stopped
}
