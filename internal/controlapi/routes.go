// Package controlapi serves the loopback HTTP API used by scripts and
// external front ends to drive a running daemon.
package controlapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gamergamma/internal/dispatch"
	"gamergamma/internal/history"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/preset"
	"gamergamma/internal/procutil"
	"gamergamma/internal/sessionlog"
)

const (
	maxBodyBytes       = 64 * 1024
	defaultListLimit   = 50
	maxListLimit       = 1000
	probeRequestBudget = 15 * time.Second
)

// Status is the daemon summary returned by GET /api/status.
type Status struct {
	Version      string                         `json:"version"`
	Document     string                         `json:"document"`
	Tools        map[string]procutil.ToolStatus `json:"tools"`
	Availability dispatch.Availability          `json:"availability"`
	Messages     []string                       `json:"messages"`
	HotkeyState  string                         `json:"hotkey_state"`
	Bindings     map[string]string              `json:"bindings"`
}

// Service is the daemon surface the API exposes.
type Service interface {
	Status() Status
	Document() preset.Document
	UpdatePreset(ctx context.Context, id string, p preset.Preset) (preset.Document, error)
	ApplyPreset(ctx context.Context, id, source string) (dispatch.ApplyRequest, error)
	Monitors(ctx context.Context) []inventory.Monitor
	Limits(display int) preset.Limits
	CaptureBaseline(ctx context.Context, display int) (preset.MonitorBaseline, bool, error)
	Restore(ctx context.Context, display int, source string) error
	History(ctx context.Context, limit int) ([]history.Entry, error)
	RecentLog(limit int) []sessionlog.Entry
}

type handler struct {
	svc Service
}

// RegisterRoutes builds the API router. events, if non-nil, is mounted at
// /api/events as the websocket endpoint.
func RegisterRoutes(svc Service, events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	h := &handler{svc: svc}

	r.Get("/api/status", h.getStatus)

	r.Get("/api/presets", h.getPresets)
	r.Put("/api/presets/{id}", h.putPreset)
	r.Post("/api/presets/{id}/apply", h.applyPreset)

	r.Get("/api/monitors", h.listMonitors)
	r.Get("/api/monitors/{display}/limits", h.getLimits)
	r.Post("/api/monitors/{display}/baseline", h.captureBaseline)
	r.Post("/api/monitors/{display}/restore", h.restore)

	r.Get("/api/history", h.getHistory)
	r.Get("/api/log", h.getLog)

	if events != nil {
		r.Get("/api/events", events.ServeHTTP)
	}
	return r
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handler) getPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Document())
}

func (h *handler) putPreset(w http.ResponseWriter, r *http.Request) {
	var p preset.Preset
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.UpdatePreset(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *handler) applyPreset(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.ApplyPreset(r.Context(), chi.URLParam(r, "id"), "api")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (h *handler) listMonitors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeRequestBudget)
	defer cancel()
	monitors := h.svc.Monitors(ctx)
	if monitors == nil {
		monitors = []inventory.Monitor{}
	}
	writeJSON(w, http.StatusOK, monitors)
}

func (h *handler) getLimits(w http.ResponseWriter, r *http.Request) {
	display, ok := displayParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Limits(display))
}

func (h *handler) captureBaseline(w http.ResponseWriter, r *http.Request) {
	display, ok := displayParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), probeRequestBudget)
	defer cancel()
	b, stored, err := h.svc.CaptureBaseline(ctx, display)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": stored, "baseline": b})
}

func (h *handler) restore(w http.ResponseWriter, r *http.Request) {
	display, ok := displayParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Restore(r.Context(), display, "api"); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) getLog(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	entries := h.svc.RecentLog(limit)
	if entries == nil {
		entries = []sessionlog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func displayParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	display, err := strconv.Atoi(chi.URLParam(r, "display"))
	if err != nil || display < 1 {
		writeError(w, http.StatusBadRequest, "display must be a positive integer")
		return 0, false
	}
	return display, true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxListLimit), true
}

// writeServiceError maps sentinel errors to status codes. Anything else is a
// rejected request.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, preset.ErrUnknownPreset):
		status = http.StatusNotFound
	case errors.Is(err, preset.ErrOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, hotkeys.ErrInvalidBinding):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, preset.ErrPersistence):
		status = http.StatusInternalServerError
	case errors.Is(err, procutil.ErrToolUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("[DEBUG-API] response encode failed", "error", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("[DEBUG-API] request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "requestID", middleware.GetReqID(r.Context()))
	})
}
