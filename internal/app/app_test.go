package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transcript-insights-service/internal/config"
	"transcript-insights-service/internal/models"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Service.HTTPPort = "0"
	cfg.Service.GRPCPort = "0"
	cfg.Service.MetricsPort = "0"
	cfg.Service.ShutdownTimeout = 2 * time.Second
	cfg.Pipeline.IngestLatency = 10 * time.Millisecond
	cfg.Pipeline.RescoreLatency = 10 * time.Millisecond
	cfg.Kafka.Principal = cfg.Service.Principal
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Scheduler)
	require.NotNil(t, a.Pipeline)
	require.NotNil(t, a.Publisher)
	require.False(t, a.Publisher.Enabled())
	require.False(t, a.Ready(), "not ready before Run")
	require.Equal(t, 10*time.Millisecond, a.Pipeline.Limits().IngestLatency)
}

func TestRun_ServesUntilCancelledAndDrainsTasks(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, a.Ready, 2*time.Second, 10*time.Millisecond)

	_, err = a.Pipeline.Ingest(context.Background(), "tenant-a", models.TranscriptPayload{ConversationID: "c1", Text: "hello"})
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	require.False(t, a.Ready())
	// The queued ingest finished during shutdown.
	rec, err := a.Pipeline.GetResult(context.Background(), "tenant-a", "c1")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, rec.Status)
}
