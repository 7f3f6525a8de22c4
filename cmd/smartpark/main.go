package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartpark/internal/config"
	"smartpark/internal/logging"
	"smartpark/internal/parking"
	"smartpark/internal/server"
	"smartpark/internal/telemetry"
)

type app struct {
	cfg     *config.Config
	service *parking.InstrumentedService
	hub     *server.Hub
}

func main() {
	cfg := config.Load()

	mode := flag.String("mode", cfg.Mode, "Mode to run: cli, server, or both")
	port := flag.String("port", cfg.Port, "Port for HTTP server")
	flag.Parse()
	cfg.Mode, cfg.Port = *mode, *port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryProvider := initTelemetry(ctx, cfg)
	logging.Init(cfg.OTel.ServiceName, cfg.Environment, cfg.LogLevel)

	a, err := newApp(cfg, telemetryProvider)
	if err != nil {
		log.Fatalf("Failed to initialize parking service: %v", err)
	}
	go a.hub.Run(ctx)

	if cfg.Simulation.AutoStart {
		a.service.StartSimulation(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch cfg.Mode {
	case "cli":
		a.runCLI(ctx, cancel, sigChan)
	case "server":
		a.runServer(ctx, cancel, sigChan)
	case "both":
		a.runBoth(ctx, cancel, sigChan)
	default:
		log.Fatalf("Invalid mode: %s. Must be cli, server, or both", cfg.Mode)
	}

	a.service.StopSimulation(context.Background())
	shutdownTelemetry(telemetryProvider)
}

func initTelemetry(ctx context.Context, cfg *config.Config) *telemetry.Provider {
	if !cfg.OTel.Enabled {
		return telemetry.NewNoop()
	}
	p, err := telemetry.Init(ctx, cfg.OTel.ServiceName, cfg.OTel.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Printf("Failed to initialize telemetry, continuing without export: %v", err)
		return telemetry.NewNoop()
	}
	return p
}

// newApp generates the lot and wires the simulator's notifications to
// the websocket hub and the transition counter.
func newApp(cfg *config.Config, tp *telemetry.Provider) (*app, error) {
	layout := parking.DefaultLayout()
	lot := parking.DefaultLot(layout)
	state := parking.Generate(lot, layout, parking.NewRand(cfg.Simulation.Seed))

	hub := server.NewHub()

	// The recorder needs the instrumented service, which needs the
	// simulator, so it is bound after construction.
	var record parking.Notifier = parking.Notifiers{}
	simulator := parking.NewSimulator(state, parking.NewRand(cfg.Simulation.Seed+1),
		parking.WithInterval(cfg.Simulation.Interval),
		parking.WithReleaseProbability(cfg.Simulation.ReleaseProbability),
		parking.WithNotifier(parking.Notifiers{
			hub,
			parking.NotifierFunc(func(ctx context.Context, e parking.Event) { record.Notify(ctx, e) }),
		}),
	)

	start := parking.Position{X: cfg.StartX, Y: cfg.StartY}
	service, err := parking.NewInstrumentedService(parking.NewService(lot, simulator, start, hub), tp)
	if err != nil {
		return nil, err
	}
	record = service.TransitionRecorder()

	logging.Info(context.Background(), "lot generated",
		"lot", lot.Name, "slots", lot.TotalSlots, "seed", cfg.Simulation.Seed)
	return &app{cfg: cfg, service: service, hub: hub}, nil
}

func (a *app) runCLI(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Info(ctx, "shutting down")
		cancel()
	}()

	shell := parking.NewShell(a.service, os.Stdin, os.Stdout)
	shell.Run(ctx)
}

func (a *app) newServer() *server.Server {
	return server.NewServer(a.cfg.Port, a.service, a.hub, a.cfg.OTel.ServiceName)
}

func (a *app) runServer(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv := a.newServer()

	go func() {
		<-sigChan
		logging.Info(ctx, "received shutdown signal")
		shutdownServer(srv)
		cancel()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(ctx, "server error", "error", err)
	}
}

func (a *app) runBoth(ctx context.Context, cancel context.CancelFunc, sigChan chan os.Signal) {
	srv := a.newServer()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan bool, 1)
	go func() {
		shell := parking.NewShell(a.service, os.Stdin, os.Stdout)
		shell.Run(ctx)
		cliDone <- true
	}()

	go func() {
		<-sigChan
		logging.Info(ctx, "received shutdown signal")
		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "server error", "error", err)
		}
	case <-cliDone:
		logging.Info(ctx, "CLI exited")
	case <-ctx.Done():
		logging.Info(ctx, "context cancelled")
	}

	shutdownServer(srv)
}

func shutdownServer(srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "server shutdown error", "error", err)
	}
}

func shutdownTelemetry(telemetryProvider *telemetry.Provider) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down telemetry: %v", err)
	}
}
