// Command eventviewer consumes record events from Kafka and streams them to
// browsers over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"transcript-insights-service/internal/models"
	"transcript-insights-service/internal/observability/logging"
)

type viewerOptions struct {
	port          string
	brokers       string
	groupID       string
	topicScored   string
	topicRescored string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &viewerOptions{}

	cmd := &cobra.Command{
		Use:          "eventviewer",
		Short:        "Stream scored and rescored transcript events to the browser",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.port, "port", "8081", "HTTP server port")
	cmd.Flags().StringVar(&opts.brokers, "brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	cmd.Flags().StringVar(&opts.groupID, "group", "transcript-event-viewer", "Kafka consumer group")
	cmd.Flags().StringVar(&opts.topicScored, "topic-scored", models.EventTypeScored, "scored events topic")
	cmd.Flags().StringVar(&opts.topicRescored, "topic-rescored", models.EventTypeRescored, "rescored events topic")
	return cmd
}

func run(ctx context.Context, opts *viewerOptions) error {
	logging.Init(logging.Config{Level: "info", Format: "console"})
	logger := logging.WithComponent("eventviewer")

	hub := newHub()

	logger.Info().
		Str("addr", "http://localhost:"+opts.port).
		Str("brokers", opts.brokers).
		Strs("topics", []string{opts.topicScored, opts.topicRescored}).
		Msg("Event viewer starting")

	g, gctx := errgroup.WithContext(ctx)

	// Handlers share gctx with hub.run.
	server := &http.Server{
		Addr:              ":" + opts.port,
		Handler:           newMux(gctx, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		hub.run(gctx)
		return nil
	})
	g.Go(func() error {
		return consumeKafka(gctx, hub, opts)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newMux(ctx context.Context, hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexPage))
	})
	mux.HandleFunc("/ws", wsHandler(ctx, hub))
	return mux
}

func consumeKafka(ctx context.Context, hub *Hub, opts *viewerOptions) error {
	logger := logging.WithComponent("eventviewer")

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(opts.brokers, ","),
		GroupID:     opts.groupID,
		GroupTopics: []string{opts.topicScored, opts.topicRescored},
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		event, err := decodeEvent(msg.Value)
		if err != nil {
			logger.Warn().Err(err).Str("topic", msg.Topic).Msg("Skipping undecodable event")
			continue
		}

		logger.Info().
			Str("eventType", event.EventType).
			Str("tenantId", event.TenantID).
			Str("conversationId", event.ConversationID).
			Float64("sentimentScore", event.SentimentScore).
			Msg("Received event")
		hub.Publish(ctx, event)
	}
}

func decodeEvent(data []byte) (models.RecordEvent, error) {
	var event models.RecordEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.RecordEvent{}, errors.Wrap(err, "decode record event")
	}
	if event.EventType == "" || event.ConversationID == "" {
		return models.RecordEvent{}, errors.New("record event is missing eventType or conversationId")
	}
	return event, nil
}
