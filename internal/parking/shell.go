package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Shell is the line-oriented console for the simulation.
type Shell struct {
	service *InstrumentedService
	scanner *bufio.Scanner
	out     io.Writer
}

func NewShell(service *InstrumentedService, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		service: service,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

func (s *Shell) Run(ctx context.Context) {
	tracer := s.service.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for s.scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	command := parts[0]
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	switch command {
	case "status":
		s.handleStatus()
	case "stats":
		s.handleStats()
	case "slot":
		s.handleSlot(parts)
	case "enter":
		s.handleEnter(ctx, parts)
	case "assign":
		s.handleAssign(ctx, parts)
	case "nearest":
		s.handleNearest(parts)
	case "route":
		s.handleRoute(parts)
	case "exit":
		s.handleExit(ctx, parts)
	case "set_status":
		s.handleSetStatus(ctx, parts)
	case "simulate":
		s.handleSimulate(ctx, parts)
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command")
		s.printf("Unknown command: %s\n", command)
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) handleStatus() {
	s.printf("Slot\tPosition\tType\tStatus\n")
	for _, slot := range s.service.Slots() {
		s.printf("%s\t(%d,%d)\t\t%s\t%s\n", slot.Number, slot.Position.X, slot.Position.Y, slot.Type, slot.Status)
	}
}

func (s *Shell) handleStats() {
	stats := s.service.Stats()
	s.printf("Total: %d Available: %d Occupied: %d Assigned: %d Reserved: %d Occupancy: %d%%\n",
		stats.Total, stats.Available, stats.Occupied, stats.Assigned, stats.Reserved, stats.OccupancyRate)
}

func (s *Shell) handleSlot(parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: slot <slot_id>\n")
		return
	}
	slot, err := s.service.Slot(parts[1])
	if err != nil {
		s.printf("Not found\n")
		return
	}
	s.printf("%s %s floor %d (%d,%d) %s\n", slot.ID, slot.Number, slot.Floor, slot.Position.X, slot.Position.Y, slot.Status)
}

func (s *Shell) handleEnter(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: enter <token>\n")
		return
	}
	session, err := s.service.Enter(ctx, parts[1])
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Session %s entered at (%d,%d)\n", session.ID, session.Position.X, session.Position.Y)
}

// handleAssign takes the nearest available slot when no slot is given.
func (s *Shell) handleAssign(ctx context.Context, parts []string) {
	var (
		slot  Slot
		route Route
		err   error
	)
	switch len(parts) {
	case 2:
		slot, route, err = s.service.AssignNearest(ctx, parts[1])
	case 3:
		slot, route, err = s.service.AssignSlot(ctx, parts[1], parts[2])
	default:
		s.printf("Usage: assign <session_id> [slot_id]\n")
		return
	}
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			s.printf("This slot is not available\n")
			return
		}
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Slot %s assigned to you!\n", slot.Number)
	s.printRoute(route)
}

func (s *Shell) handleNearest(parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: nearest <session_id>\n")
		return
	}
	slot, err := s.service.NearestSlot(parts[1])
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Nearest available slot: %s (%d,%d)\n", slot.Number, slot.Position.X, slot.Position.Y)
}

func (s *Shell) handleRoute(parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: route <session_id>\n")
		return
	}
	nav, err := s.service.Navigation(parts[1])
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printRoute(nav.Route)
}

func (s *Shell) printRoute(route Route) {
	for i, wp := range route.Waypoints {
		s.printf("%d. %s (%d,%d) [%s]\n", i+1, wp.Instruction, wp.Position.X, wp.Position.Y, wp.Direction)
	}
	s.printf("Estimated %ds, %dm\n", route.EstimatedSeconds, route.DistanceMeters)
}

func (s *Shell) handleExit(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: exit <session_id>\n")
		return
	}
	if _, err := s.service.Exit(ctx, parts[1]); err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Session %s exited\n", parts[1])
}

func (s *Shell) handleSetStatus(ctx context.Context, parts []string) {
	if len(parts) != 3 {
		s.printf("Usage: set_status <slot_id> <status>\n")
		return
	}
	status, err := ParseSlotStatus(parts[2])
	if err != nil {
		s.printf("Invalid status\n")
		return
	}
	slot, err := s.service.SetSlotStatus(ctx, parts[1], status)
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Slot %s is %s\n", slot.Number, slot.Status)
}

func (s *Shell) handleSimulate(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: simulate start|stop|tick|reset\n")
		return
	}

	switch parts[1] {
	case "start":
		if s.service.StartSimulation(ctx) {
			s.printf("Simulation started\n")
		} else {
			s.printf("Simulation already running\n")
		}
	case "stop":
		if s.service.StopSimulation(ctx) {
			s.printf("Simulation stopped\n")
		} else {
			s.printf("Simulation not running\n")
		}
	case "tick":
		t := s.service.Tick(ctx)
		if t.Changed {
			s.printf("Slot %s: %s -> %s\n", t.Number, t.From, t.To)
		} else {
			s.printf("No change\n")
		}
	case "reset":
		s.service.Reset(ctx)
		s.printf("All slots reset to available\n")
	default:
		s.printf("Usage: simulate start|stop|tick|reset\n")
	}
}
