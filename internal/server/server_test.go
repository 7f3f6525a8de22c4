package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpark/internal/parking"
	"smartpark/internal/telemetry"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *Meta           `json:"meta"`
}

type testServer struct {
	*httptest.Server
	service *parking.InstrumentedService
	hub     *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	slot := func(id, number string, x, y int, status parking.SlotStatus) parking.Slot {
		return parking.Slot{
			ID: id, LotID: "lot-1", Number: number, Status: status,
			Position: parking.Position{X: x, Y: y}, Floor: 1, Type: parking.TypeRegular,
		}
	}
	state, err := parking.NewState([]parking.Slot{
		slot("S1", "A01", 3, 4, parking.StatusAvailable),
		slot("S2", "A02", 1, 6, parking.StatusOccupied),
		slot("S3", "A03", 0, 0, parking.StatusAvailable),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	sim := parking.NewSimulator(state, parking.NewRand(1),
		parking.WithNotifier(hub), parking.WithInterval(time.Hour))
	svc := parking.NewService(parking.DefaultLot(parking.DefaultLayout()), sim, parking.Position{X: 1, Y: 7}, hub)
	is, err := parking.NewInstrumentedService(svc, telemetry.NewNoop())
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(NewHandler(is, "smartpark-test"), hub))
	t.Cleanup(func() {
		is.StopSimulation(context.Background())
		srv.Close()
		cancel()
	})
	return &testServer{Server: srv, service: is, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *testServer) enter(t *testing.T) parking.Session {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/sessions", `{"token":"qr-1"}`)
	require.Equal(t, http.StatusOK, code)
	return decodeData[parking.Session](t, env)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "smartpark-test", health.Service)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/lot", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
	require.NotNil(t, env.Meta)
	assert.Equal(t, "req-42", env.Meta.RequestID)
}

func TestEntry(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(t, http.MethodGet, "/api/entry?admin=true", "")
	require.Equal(t, http.StatusOK, code)
	admin := decodeData[parking.EntryView](t, env)
	assert.Equal(t, parking.ViewAdmin, admin.View)
	require.NotNil(t, admin.Stats)
	assert.Equal(t, 3, admin.Stats.Total)

	code, env = srv.do(t, http.MethodGet, "/api/entry?token=qr-9", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Welcome to SmartPark Central!", env.Message)
	user := decodeData[parking.EntryView](t, env)
	assert.Equal(t, parking.ViewUser, user.View)
	require.NotNil(t, user.Session)
	assert.Equal(t, "qr-9", user.Session.Token)

	code, env = srv.do(t, http.MethodGet, "/api/entry", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestSlots(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(t, http.MethodGet, "/api/slots", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]parking.Slot](t, env), 3)

	code, env = srv.do(t, http.MethodGet, "/api/slots?status=occupied", "")
	require.Equal(t, http.StatusOK, code)
	occupied := decodeData[[]parking.Slot](t, env)
	require.Len(t, occupied, 1)
	assert.Equal(t, "S2", occupied[0].ID)

	code, env = srv.do(t, http.MethodGet, "/api/slots?status=reserved", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))

	code, _ = srv.do(t, http.MethodGet, "/api/slots?status=towed", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = srv.do(t, http.MethodGet, "/api/slots/S1?x=0&y=0", "")
	require.Equal(t, http.StatusOK, code)
	slot := decodeData[SlotResponse](t, env)
	assert.Equal(t, "A01", slot.Number)
	require.NotNil(t, slot.Walk)
	assert.Equal(t, 50, slot.Walk.DistanceMeters)

	code, env = srv.do(t, http.MethodGet, "/api/slots/S1?x=3&y=4", "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, decodeData[SlotResponse](t, env).Walk)

	code, _ = srv.do(t, http.MethodGet, "/api/slots/S1?x=a&y=0", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = srv.do(t, http.MethodGet, "/api/slots/S9", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSetSlotStatus(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(t, http.MethodPut, "/api/slots/S1/status", `{"status":"reserved"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, parking.StatusReserved, decodeData[parking.Slot](t, env).Status)

	code, _ = srv.do(t, http.MethodPut, "/api/slots/S1/status", `{"status":"towed"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = srv.do(t, http.MethodPut, "/api/slots/S9/status", `{"status":"available"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = srv.do(t, http.MethodPut, "/api/slots/S1/status", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAssignSlot(t *testing.T) {
	srv := newTestServer(t)
	session := srv.enter(t)
	base := "/api/sessions/" + session.ID

	code, env := srv.do(t, http.MethodPost, base+"/assign", `{"slot_id":"S2"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = srv.do(t, http.MethodPost, base+"/assign", `{"slot_id":"S1"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Slot A01 assigned to you!", env.Message)
	assigned := decodeData[AssignResponse](t, env)
	assert.Equal(t, parking.StatusAssigned, assigned.Slot.Status)
	require.Len(t, assigned.Route.Waypoints, 4)
	assert.Equal(t, parking.Position{X: 3, Y: 4}, assigned.Route.Waypoints[3].Position)

	code, _ = srv.do(t, http.MethodPost, base+"/assign", `{"slot_id":"S3"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, env = srv.do(t, http.MethodGet, base+"/slot", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "S1", decodeData[parking.Slot](t, env).ID)

	code, _ = srv.do(t, http.MethodPost, "/api/sessions/nobody/assign", `{"slot_id":"S3"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAssignNearestWithoutBody(t *testing.T) {
	srv := newTestServer(t)
	session := srv.enter(t)

	code, env := srv.do(t, http.MethodPost, "/api/sessions/"+session.ID+"/assign", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "S1", decodeData[AssignResponse](t, env).Slot.ID)
}

func TestSessionJourney(t *testing.T) {
	srv := newTestServer(t)
	session := srv.enter(t)
	base := "/api/sessions/" + session.ID

	code, _ := srv.do(t, http.MethodGet, base+"/navigation", "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = srv.do(t, http.MethodPost, base+"/move", `{"x":0,"y":1}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = srv.do(t, http.MethodPost, base+"/move", `{"x":0}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := srv.do(t, http.MethodPost, base+"/assign", `{}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "S3", decodeData[AssignResponse](t, env).Slot.ID)

	code, env = srv.do(t, http.MethodPost, base+"/navigation/start", "")
	require.Equal(t, http.StatusOK, code)
	nav := decodeData[parking.Navigation](t, env)
	assert.True(t, nav.Active)
	assert.Equal(t, parking.Position{X: 0, Y: 1}, nav.Current.Position)

	code, env = srv.do(t, http.MethodPost, base+"/navigation/next", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Continue straight", env.Message)
	assert.Equal(t, 90, decodeData[parking.Navigation](t, env).RemainingSeconds)

	code, _ = srv.do(t, http.MethodPost, base+"/navigation/stop", "")
	require.Equal(t, http.StatusOK, code)

	for _, status := range []string{"parked", "shopping", "returning"} {
		code, env = srv.do(t, http.MethodPost, base+"/status", `{"status":"`+status+`"}`)
		require.Equal(t, http.StatusOK, code, status)
		assert.Equal(t, parking.SessionStatus(status), decodeData[parking.Session](t, env).Status)
	}

	code, _ = srv.do(t, http.MethodPost, base+"/status", `{"status":"parked"}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = srv.do(t, http.MethodPost, base+"/status", `{"status":"flying"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = srv.do(t, http.MethodPost, base+"/exit", "")
	require.Equal(t, http.StatusOK, code)
	exited := decodeData[parking.Session](t, env)
	assert.Equal(t, parking.SessionExited, exited.Status)
	assert.NotNil(t, exited.ExitTime)

	code, _ = srv.do(t, http.MethodPost, base+"/exit", "")
	assert.Equal(t, http.StatusConflict, code)

	code, env = srv.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]parking.Session](t, env), 1)
}

func TestSimulationControl(t *testing.T) {
	srv := newTestServer(t)

	code, env := srv.do(t, http.MethodPost, "/api/simulation/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Simulation started", env.Message)
	assert.True(t, decodeData[parking.SimulationStatus](t, env).Running)

	_, env = srv.do(t, http.MethodPost, "/api/simulation/start", "")
	assert.Equal(t, "Simulation already running", env.Message)

	_, env = srv.do(t, http.MethodPost, "/api/simulation/stop", "")
	assert.Equal(t, "Simulation stopped", env.Message)

	code, env = srv.do(t, http.MethodGet, "/api/simulation", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[parking.SimulationStatus](t, env).Running)

	code, env = srv.do(t, http.MethodPost, "/api/simulation/tick", "")
	require.Equal(t, http.StatusOK, code)
	tick := decodeData[TickResponse](t, env)
	assert.Equal(t, 3, tick.Stats.Total)

	code, env = srv.do(t, http.MethodPost, "/api/simulation/reset", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, decodeData[parking.Stats](t, env).Available)

	code, env = srv.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, decodeData[parking.Stats](t, env).OccupancyRate)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/api/lot", "")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `smartpark_slots{lot_id="lot-1",status="available"} 2`)
	assert.Contains(t, text, `smartpark_simulation_running{lot_id="lot-1"} 0`)
	assert.Contains(t, text, `smartpark_http_requests_total{code="200",method="GET",route="/api/lot"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/slots", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	code, _ := srv.do(t, http.MethodPost, "/api/simulation/reset", "")
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event parking.Event
	require.NoError(t, json.Unmarshal(message, &event))
	assert.Equal(t, parking.EventSimulationReset, event.Kind)
	assert.Equal(t, "All slots reset to available", event.Message)
}

func TestHubNotifyNeverBlocks(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Notify(context.Background(), parking.Event{Kind: parking.EventSlotOccupied})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked without a running hub")
	}
	assert.Len(t, hub.broadcast, broadcastBuffer)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(parking.ErrSlotNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(parking.ErrSlotUnavailable))
	assert.Equal(t, http.StatusBadRequest, statusFor(parking.ErrMissingToken))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env envelope
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&env))
	assert.Equal(t, "Internal server error", env.Error)
}
