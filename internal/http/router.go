package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"transcript-insights-service/internal/models"
	"transcript-insights-service/internal/observability/metrics"
)

// TenantHeader carries the caller's tenant id.
const TenantHeader = "X-Tenant-ID"

// Pipeline is the set of core operations served over HTTP.
type Pipeline interface {
	Ingest(ctx context.Context, tenantID string, payload models.TranscriptPayload) (models.Acknowledgment, error)
	Rescore(ctx context.Context, tenantID, conversationID string) (models.Acknowledgment, error)
	GetResult(ctx context.Context, tenantID, conversationID string) (models.Record, error)
	Ready() bool
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(svc Pipeline, m *metrics.Metrics) http.Handler {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	h := &handlers{svc: svc}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(recordMetrics(m))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Post("/ingest", h.ingest)
	r.Get("/results/{conversation_id}", h.getResult)
	r.Post("/rescore/{conversation_id}", h.rescore)

	return r
}
