// Package events publishes record events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"transcript-insights-service/internal/models"
	"transcript-insights-service/internal/observability/metrics"
)

// Publisher publishes scored and rescored record events to separate Kafka topics.
type Publisher struct {
	writerScored   *kafka.Writer
	writerRescored *kafka.Writer
	principal      string
	topicScored    string
	topicRescored  string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicScored   string
	TopicRescored string
	Principal     string
	Enabled       bool
}

// New creates a Kafka event publisher. Without brokers, or when disabled, it only logs.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicScored:   cfg.TopicScored,
			topicRescored: cfg.TopicRescored,
			enabled:       false,
			metrics:       m,
		}
	}

	// Longer dial timeout for DNS resolution inside clusters.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicScored", cfg.TopicScored).
		Str("topicRescored", cfg.TopicRescored).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerScored:   newWriter(cfg.Brokers, cfg.TopicScored, transport),
		writerRescored: newWriter(cfg.Brokers, cfg.TopicRescored, transport),
		principal:      cfg.Principal,
		topicScored:    cfg.TopicScored,
		topicRescored:  cfg.TopicRescored,
		enabled:        true,
		metrics:        m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Key returns the message key for a record. Keys are tenant scoped so one
// conversation's events land on one partition.
func Key(tenantID, conversationID string) string {
	return tenantID + "/" + conversationID
}

// PublishScored publishes an event for a record written by an ingest task.
func (p *Publisher) PublishScored(ctx context.Context, event models.RecordEvent) error {
	return p.publish(ctx, p.writerScored, p.topicScored, models.EventTypeScored, Key(event.TenantID, event.ConversationID), event)
}

// PublishRescored publishes an event for a record rewritten by a rescore task.
func (p *Publisher) PublishRescored(ctx context.Context, event models.RecordEvent) error {
	return p.publish(ctx, p.writerRescored, p.topicRescored, models.EventTypeRescored, Key(event.TenantID, event.ConversationID), event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return errors.Wrap(err, "marshal event")
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return errors.Wrapf(err, "write to %s", topic)
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerScored != nil {
		if e := p.writerScored.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing scored writer")
			err = e
		}
	}
	if p.writerRescored != nil {
		if e := p.writerRescored.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing rescored writer")
			err = e
		}
	}
	return err
}
