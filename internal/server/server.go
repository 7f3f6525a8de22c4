package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartpark/internal/logging"
	"smartpark/internal/parking"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
}

func NewServer(port string, service *parking.InstrumentedService, hub *Hub, serviceName string) *Server {
	handler := NewHandler(service, serviceName)

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      NewRouter(handler, hub),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: handler,
	}
}

// NewRouter builds the HTTP surface over a handler and an event hub.
func NewRouter(handler *Handler, hub *Hub) http.Handler {
	metrics := newHTTPMetrics()
	registry := newRegistry(handler.service, metrics)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(TracingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/entry", handler.Entry)
		r.Get("/lot", handler.GetLot)
		r.Get("/stats", handler.GetStats)
		r.Get("/events", hub.ServeHTTP)

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", handler.ListSlots)
			r.Get("/{slotID}", handler.GetSlot)
			r.Put("/{slotID}/status", handler.SetSlotStatus)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", handler.ListSessions)
			r.Post("/", handler.Enter)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", handler.GetSession)
				r.Get("/slot", handler.GetSessionSlot)
				r.Post("/assign", handler.AssignSlot)
				r.Post("/status", handler.AdvanceSession)
				r.Post("/move", handler.MoveSession)
				r.Post("/exit", handler.ExitSession)
				r.Get("/navigation", handler.GetNavigation)
				r.Post("/navigation/start", handler.StartNavigation)
				r.Post("/navigation/next", handler.NextStep)
				r.Post("/navigation/stop", handler.StopNavigation)
			})
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Get("/", handler.GetSimulation)
			r.Post("/start", handler.StartSimulation)
			r.Post("/stop", handler.StopSimulation)
			r.Post("/tick", handler.Tick)
			r.Post("/reset", handler.Reset)
		})
	})

	return r
}

func (s *Server) Start() error {
	logging.Info(context.Background(), "starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
