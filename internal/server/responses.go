package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"smartpark/internal/logging"
	"smartpark/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type EnterRequest struct {
	Token string `json:"token"`
}

// AssignRequest with an empty SlotID asks for the nearest available slot.
type AssignRequest struct {
	SlotID string `json:"slot_id"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type MoveRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type AssignResponse struct {
	Slot  parking.Slot  `json:"slot"`
	Route parking.Route `json:"route"`
}

type SlotResponse struct {
	parking.Slot
	Walk *parking.WalkEstimate `json:"walk,omitempty"`
}

type TickResponse struct {
	Transition parking.Transition `json:"transition"`
	Stats      parking.Stats      `json:"stats"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}

// statusFor maps domain errors onto HTTP status codes. ErrSlotNotFound
// must be checked before ErrSlotUnavailable, which it wraps.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parking.ErrSlotNotFound), errors.Is(err, parking.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, parking.ErrSlotUnavailable),
		errors.Is(err, parking.ErrInvalidTransition),
		errors.Is(err, parking.ErrNoRoute):
		return http.StatusConflict
	case errors.Is(err, parking.ErrInvalidStatus), errors.Is(err, parking.ErrMissingToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func WriteServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(ctx, "request failed", "error", err)
		WriteError(ctx, w, status, "Internal server error")
		return
	}
	WriteError(ctx, w, status, err.Error())
}
