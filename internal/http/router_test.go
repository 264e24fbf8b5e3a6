package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"transcript-insights-service/internal/observability/metrics"
	"transcript-insights-service/internal/service/pipeline"
	"transcript-insights-service/internal/service/scheduler"
	"transcript-insights-service/internal/store"
)

type testServer struct {
	handler   http.Handler
	clock     *clockwork.FakeClock
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	fc := clockwork.NewFakeClock()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sched := scheduler.New(scheduler.Config{}, scheduler.WithClock(fc), scheduler.WithMetrics(m))
	svc, err := pipeline.NewService(pipeline.Deps{
		Store:     store.New(),
		Scheduler: sched,
		Metrics:   m,
		Clock:     fc,
	})
	require.NoError(t, err)

	return &testServer{handler: NewRouter(svc, m), clock: fc, scheduler: sched, metrics: m}
}

func (s *testServer) do(method, path, tenant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) advance(d time.Duration) {
	s.clock.Advance(d)
	s.scheduler.Wait()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIngest_Accepted(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/ingest", "tenant-a", `{"conversation_id":"c1","text":"hello"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, map[string]any{
		"message": "Ingest started",
		"job_id":  "c1",
		"status":  "QUEUED",
	}, decode(t, rec))
	s.advance(3 * time.Second)
}

func TestIngest_RequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		tenant string
		body   string
		code   int
	}{
		{"missing tenant", "", `{"conversation_id":"c1","text":"hello"}`, http.StatusBadRequest},
		{"malformed json", "tenant-a", `{"conversation_id":`, http.StatusUnprocessableEntity},
		{"missing text", "tenant-a", `{"conversation_id":"c1"}`, http.StatusUnprocessableEntity},
		{"blank text", "tenant-a", `{"conversation_id":"c1","text":"   "}`, http.StatusUnprocessableEntity},
		{"too long", "tenant-a", `{"conversation_id":"c1","text":"` + strings.Repeat("a", 5001) + `"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(http.MethodPost, "/ingest", tt.tenant, tt.body)

			require.Equal(t, tt.code, rec.Code)
			require.NotEmpty(t, decode(t, rec)["detail"])
			require.Equal(t, uint64(0), s.scheduler.Stats().Scheduled)
		})
	}
}

func TestGetResult_NotFoundWhileProcessing(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/ingest", "tenant-a", `{"conversation_id":"c1","text":"hello"}`)
	rec := s.do(http.MethodGet, "/results/c1", "tenant-a", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, map[string]any{"detail": "Item not found or processing"}, decode(t, rec))
	s.advance(3 * time.Second)
}

func TestGetResult_CompletedRecord(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/ingest", "tenant-a", `{"conversation_id":"c2","text":"I need money advice"}`)
	s.advance(3 * time.Second)

	rec := s.do(http.MethodGet, "/results/c2", "tenant-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "c2", body["conversation_id"])
	require.Equal(t, "COMPLETED", body["status"])
	require.Equal(t, "Processed text length 19.", body["summary"])
	require.Equal(t, []any{"finance", "risk"}, body["tags"])
	require.InDelta(t, 0.8, body["sentiment_score"], 0.1+1e-9)
	require.NotContains(t, body, "tenant_id")
}

func TestGetResult_OtherTenantIsNotFound(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/ingest", "A", `{"conversation_id":"c1","text":"hello"}`)
	s.advance(3 * time.Second)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/results/c1", "A", "").Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/results/c1", "B", "").Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/rescore/c1", "B", "").Code)
}

func TestRescore(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/rescore/unknown", "tenant-a", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Item not found or processing", decode(t, rec)["detail"])

	s.do(http.MethodPost, "/ingest", "tenant-a", `{"conversation_id":"c1","text":"hello"}`)
	s.advance(3 * time.Second)

	rec = s.do(http.MethodPost, "/rescore/c1", "tenant-a", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, map[string]any{
		"message":         "Rescore started",
		"conversation_id": "c1",
		"status":          "QUEUED",
	}, decode(t, rec))
	s.advance(2 * time.Second)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	live := s.do(http.MethodGet, "/v1/liveness", "", "")
	require.Equal(t, http.StatusOK, live.Code)
	require.Equal(t, "ok", live.Body.String())

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/readiness", "", "").Code)

	require.NoError(t, s.scheduler.Shutdown(context.Background()))
	require.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/v1/readiness", "", "").Code)

	rec := s.do(http.MethodPost, "/ingest", "tenant-a", `{"conversation_id":"c1","text":"hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics_UseRoutePattern(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodGet, "/results/a", "tenant-a", "")
	s.do(http.MethodGet, "/results/b", "tenant-a", "")

	require.Equal(t, 2.0, testutil.ToFloat64(
		s.metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/results/{conversation_id}", "404"),
	))
}
