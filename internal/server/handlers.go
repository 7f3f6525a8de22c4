package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"smartpark/internal/parking"
)

type Handler struct {
	service     *parking.InstrumentedService
	serviceName string
}

func NewHandler(service *parking.InstrumentedService, serviceName string) *Handler {
	return &Handler{service: service, serviceName: serviceName}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

// Entry mirrors the landing page: ?admin=true opens the dashboard view,
// ?token=... opens a visitor session.
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, _ := strconv.ParseBool(r.URL.Query().Get("admin"))

	view, err := h.service.Entry(ctx, r.URL.Query().Get("token"), admin)
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}

	message := "Welcome to " + view.Lot.Name + "!"
	if view.View == parking.ViewAdmin {
		message = "Admin dashboard"
	}
	WriteSuccess(ctx, w, message, view)
}

func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Lot retrieved successfully", h.service.Lot())
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Stats retrieved successfully", h.service.Stats())
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("status")
	if raw == "" {
		WriteSuccess(ctx, w, "Slots retrieved successfully", h.service.Slots())
		return
	}

	status, err := parking.ParseSlotStatus(raw)
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	slots := h.service.SlotsByStatus(status)
	if slots == nil {
		slots = []parking.Slot{}
	}
	WriteSuccess(ctx, w, "Slots retrieved successfully", slots)
}

// GetSlot adds a walking estimate when the caller passes its position
// as ?x=&y=.
func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slot, err := h.service.Slot(chi.URLParam(r, "slotID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}

	resp := SlotResponse{Slot: slot}
	q := r.URL.Query()
	if q.Has("x") && q.Has("y") {
		x, errX := strconv.Atoi(q.Get("x"))
		y, errY := strconv.Atoi(q.Get("y"))
		if errX != nil || errY != nil {
			WriteError(ctx, w, http.StatusBadRequest, "x and y must be integers")
			return
		}
		if walk, ok := parking.EstimateWalk(parking.Position{X: x, Y: y}, slot); ok {
			resp.Walk = &walk
		}
	}

	WriteSuccess(ctx, w, "Slot retrieved successfully", resp)
}

func (h *Handler) SetSlotStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := parking.ParseSlotStatus(req.Status)
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}

	slot, err := h.service.SetSlotStatus(ctx, chi.URLParam(r, "slotID"), status)
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Slot status updated", slot)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Sessions retrieved successfully", h.service.Sessions())
}

func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EnterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.service.Enter(ctx, req.Token)
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Welcome to "+h.service.Lot().Name+"!", session)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Session retrieved successfully", session)
}

func (h *Handler) GetSessionSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slot, err := h.service.SessionSlot(chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Slot retrieved successfully", slot)
}

func (h *Handler) AssignSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	var req AssignRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	var (
		slot  parking.Slot
		route parking.Route
		err   error
	)
	if req.SlotID == "" {
		slot, route, err = h.service.AssignNearest(ctx, sessionID)
	} else {
		slot, route, err = h.service.AssignSlot(ctx, sessionID, req.SlotID)
	}
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}

	WriteSuccess(ctx, w, "Slot "+slot.Number+" assigned to you!", AssignResponse{Slot: slot, Route: route})
}

func (h *Handler) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := parking.ParseSessionStatus(req.Status)
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.service.Advance(ctx, chi.URLParam(r, "sessionID"), status)
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Session updated", session)
}

func (h *Handler) MoveSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.X == nil || req.Y == nil {
		WriteError(ctx, w, http.StatusBadRequest, "x and y are required")
		return
	}

	session, err := h.service.Move(ctx, chi.URLParam(r, "sessionID"), parking.Position{X: *req.X, Y: *req.Y})
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Position updated", session)
}

func (h *Handler) ExitSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.service.Exit(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Thank you for visiting", session)
}

func (h *Handler) GetNavigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nav, err := h.service.Navigation(chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Navigation retrieved successfully", nav)
}

func (h *Handler) StartNavigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nav, err := h.service.StartNavigation(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Navigation started", nav)
}

func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nav, err := h.service.NextStep(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, nav.Current.Instruction, nav)
}

func (h *Handler) StopNavigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nav, err := h.service.StopNavigation(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		WriteServiceError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Navigation stopped", nav)
}

func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Simulation status", h.service.Simulation())
}

func (h *Handler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	message := "Simulation started"
	if !h.service.StartSimulation(ctx) {
		message = "Simulation already running"
	}
	WriteSuccess(ctx, w, message, h.service.Simulation())
}

func (h *Handler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	message := "Simulation stopped"
	if !h.service.StopSimulation(ctx) {
		message = "Simulation not running"
	}
	WriteSuccess(ctx, w, message, h.service.Simulation())
}

func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t := h.service.Tick(ctx)
	WriteSuccess(ctx, w, "Tick completed", TickResponse{Transition: t, Stats: h.service.Stats()})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	h.service.Reset(ctx)
	WriteSuccess(ctx, w, "All slots reset to available", h.service.Stats())
}
