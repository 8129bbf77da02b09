package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/txnwatch/internal/admission"
	"github.com/gyaneshwarpardhi/txnwatch/internal/config"
	"github.com/gyaneshwarpardhi/txnwatch/internal/engine"
	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
	"github.com/gyaneshwarpardhi/txnwatch/internal/metrics"
	"github.com/gyaneshwarpardhi/txnwatch/internal/store"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	store  *store.Store
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, st *store.Store, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, store: st, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.submitEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.submitBatch)
	h.mux.HandleFunc("POST /v1/users", h.createUser)
	h.mux.HandleFunc("GET /v1/users/{id}", h.getUser)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/events — synchronous submission: admit, evaluate, respond.
func (h *Handler) submitEvent(w http.ResponseWriter, r *http.Request) {
	var cand event.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	outcome, err := h.eng.SubmitSync(r.Context(), cand)
	if err != nil {
		h.writeSubmitError(w, r, cand, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, cand event.Candidate, err error) {
	var invalid *admission.InvalidPayloadError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, invalidPayloadResponse{
			Error:   "invalid payload",
			Details: map[string]string{invalid.Field: invalid.Reason},
			UserID:  cand.UserID,
		})
		return
	}
	var dup *admission.DuplicateTimestampError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, duplicateTimestampResponse{
			Error:                "duplicate timestamp",
			ConflictingTimestamp: dup.Timestamp,
			UserID:               dup.UserID,
		})
		return
	}
	switch {
	case errors.Is(err, engine.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, engine.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		slog.Error("submission failed", "err", err, "user_id", cand.UserID, "t", cand.Timestamp)
		writeError(w, http.StatusInternalServerError, "failed to process event")
	}
}

// POST /v1/events/batch — async batch submission (up to 100 candidates).
// Rejections inside the batch are counted in metrics, not reported per item.
func (h *Handler) submitBatch(w http.ResponseWriter, r *http.Request) {
	var cands []event.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cands); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(cands) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(cands) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(cands), maxBatchSize))
		return
	}

	jobID := uuid.New().String()
	queued := 0
	for _, cand := range cands {
		if h.eng.SubmitAsync(cand) {
			queued++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(cands),
		"queued":   queued,
		"rejected": len(cands) - queued,
	})
}

// POST /v1/users — seeding surface for the out-of-band user collaborator.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	u, err := h.store.CreateUser(r.Context(), req.Name, req.Email)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("create user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// GET /v1/users/{id}
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	u, err := h.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("get user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 when the queue is past the configured watermark or the
// store is unreachable.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > h.loader.Config().Readiness.QueueHighWatermark {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "store unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
