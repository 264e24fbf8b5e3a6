package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"transcript-insights-service/internal/observability/metrics"
)

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Readiness(t *testing.T) {
	ready := true
	s := NewServerWithGatherer(":0", func() bool { return ready }, prometheus.NewRegistry())

	require.Equal(t, http.StatusOK, serve(s.Handler(), "/healthz").Code)
	require.Equal(t, http.StatusOK, serve(s.Handler(), "/readyz").Code)

	ready = false
	rec := serve(s.Handler(), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "not ready", rec.Body.String())

	// Liveness is independent of readiness.
	require.Equal(t, http.StatusOK, serve(s.Handler(), "/healthz").Code)
}

func TestServer_NilReadyFuncIsReady(t *testing.T) {
	s := NewServerWithGatherer(":0", nil, prometheus.NewRegistry())
	require.Equal(t, http.StatusOK, serve(s.Handler(), "/readyz").Code)
}

func TestServer_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordIngest("accepted")

	s := NewServerWithGatherer(":0", nil, reg)
	rec := serve(s.Handler(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "transcript_insights_ingest_requests_total"))
}

func TestUnaryServerInterceptor_RecordsCode(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	intercept := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.GRPCCalls.WithLabelValues(info.FullMethod, codes.OK.String())))
	require.Equal(t, 1.0, testutil.ToFloat64(m.GRPCCalls.WithLabelValues(info.FullMethod, codes.NotFound.String())))
}

func TestStreamServerInterceptor_RecordsCode(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	intercept := StreamServerInterceptor(m)
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}

	err := intercept(nil, nil, info, func(interface{}, grpc.ServerStream) error {
		return status.Error(codes.Canceled, "client gone")
	})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.GRPCCalls.WithLabelValues(info.FullMethod, codes.Canceled.String())))
}
