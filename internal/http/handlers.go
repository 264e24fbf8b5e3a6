package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"transcript-insights-service/internal/models"
	"transcript-insights-service/internal/service/pipeline"
	"transcript-insights-service/internal/service/scheduler"
)

const (
	maxBodyBytes   = 1 << 20
	detailNotFound = "Item not found or processing"
)

type handlers struct {
	svc Pipeline
}

type ingestResponse struct {
	Message string        `json:"message"`
	JobID   string        `json:"job_id"`
	Status  models.Status `json:"status"`
}

type rescoreResponse struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id"`
	Status         models.Status `json:"status"`
}

// resultResponse is the public view of a record; the tenant id is not echoed.
type resultResponse struct {
	ConversationID string        `json:"conversation_id"`
	SentimentScore float64       `json:"sentiment_score"`
	Summary        string        `json:"summary"`
	Tags           []string      `json:"tags"`
	Status         models.Status `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var payload models.TranscriptPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "request body must be a JSON object with conversation_id and text"})
		return
	}

	ack, err := h.svc.Ingest(r.Context(), tenantID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{
		Message: "Ingest started",
		JobID:   ack.JobID,
		Status:  ack.Status,
	})
}

func (h *handlers) getResult(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.GetResult(r.Context(), tenantID, chi.URLParam(r, "conversation_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, resultResponse{
		ConversationID: rec.ConversationID,
		SentimentScore: rec.SentimentScore,
		Summary:        rec.Summary,
		Tags:           tags,
		Status:         rec.Status,
	})
}

func (h *handlers) rescore(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	ack, err := h.svc.Rescore(r.Context(), tenantID, chi.URLParam(r, "conversation_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, rescoreResponse{
		Message:        "Rescore started",
		ConversationID: ack.ConversationID,
		Status:         ack.Status,
	})
}

func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.Header.Get(TenantHeader)
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: TenantHeader + " header is required"})
		return "", false
	}
	return tenantID, true
}

// writeError maps pipeline errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: detailNotFound})
	case errors.Is(err, pipeline.ErrInvalidTenant):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: TenantHeader + " header is required"})
	case errors.Is(err, pipeline.ErrInvalidPayload):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
	case errors.Is(err, scheduler.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "service is shutting down"})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
