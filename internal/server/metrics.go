package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"smartpark/internal/parking"
)

// lotCollector reads the live lot on every scrape instead of keeping
// gauges in sync with each update.
type lotCollector struct {
	service *parking.InstrumentedService

	slots      *prometheus.Desc
	occupancy  *prometheus.Desc
	sessions   *prometheus.Desc
	simulating *prometheus.Desc
}

func newLotCollector(service *parking.InstrumentedService) *lotCollector {
	lot := prometheus.Labels{"lot_id": service.Lot().ID}
	return &lotCollector{
		service: service,
		slots: prometheus.NewDesc("smartpark_slots",
			"Number of slots in each status.", []string{"status"}, lot),
		occupancy: prometheus.NewDesc("smartpark_occupancy_rate_percent",
			"Share of slots that are not available.", nil, lot),
		sessions: prometheus.NewDesc("smartpark_sessions_active",
			"Sessions that have not exited.", nil, lot),
		simulating: prometheus.NewDesc("smartpark_simulation_running",
			"1 while the occupancy simulator is ticking.", nil, lot),
	}
}

func (c *lotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.slots
	ch <- c.occupancy
	ch <- c.sessions
	ch <- c.simulating
}

func (c *lotCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.service.Stats()
	for status, count := range map[parking.SlotStatus]int{
		parking.StatusAvailable: stats.Available,
		parking.StatusOccupied:  stats.Occupied,
		parking.StatusAssigned:  stats.Assigned,
		parking.StatusReserved:  stats.Reserved,
	} {
		ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(count), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.occupancy, prometheus.GaugeValue, float64(stats.OccupancyRate))
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(c.service.ActiveSessions()))

	running := 0.0
	if c.service.Simulation().Running {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.simulating, prometheus.GaugeValue, running)
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics() *httpMetrics {
	return &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpark_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartpark_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Middleware labels requests with the chi route pattern so path
// parameters do not explode cardinality.
func (m *httpMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// newRegistry builds a registry per server so tests can run several
// servers in one process.
func newRegistry(service *parking.InstrumentedService, m *httpMetrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newLotCollector(service),
		m.requests,
		m.duration,
	)
	return reg
}
