// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcript_insights"

// Task kinds used as label values.
const (
	KindIngest  = "ingest"
	KindRescore = "rescore"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Request metrics
	IngestRequests  *prometheus.CounterVec
	RescoreRequests *prometheus.CounterVec
	QueryRequests   *prometheus.CounterVec

	// Deferred task metrics
	TasksScheduled *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksInFlight  prometheus.Gauge
	TaskDuration   *prometheus.HistogramVec

	// Scoring metrics
	SentimentScores prometheus.Histogram
	ReviewRequired  prometheus.Counter

	// Store metrics
	StoreTenants prometheus.Gauge
	StoreRecords prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Transport metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
	GRPCCalls    *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance registered with the default registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Request metrics
		IngestRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_requests_total",
			Help:      "Total number of ingest calls by result",
		}, []string{"result"}),
		RescoreRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rescore_requests_total",
			Help:      "Total number of rescore calls by result",
		}, []string{"result"}),
		QueryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "Total number of result lookups by result",
		}, []string{"result"}),

		// Deferred task metrics
		TasksScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_scheduled_total",
			Help:      "Total number of deferred tasks scheduled",
		}, []string{"kind"}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of deferred tasks finished by outcome",
		}, []string{"kind", "outcome"}),
		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Number of deferred tasks scheduled but not yet finished",
		}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Execution time of deferred task bodies, excluding the simulated latency",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),

		// Scoring metrics
		SentimentScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sentiment_score",
			Help:      "Distribution of stored sentiment scores",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		ReviewRequired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_required_total",
			Help:      "Total number of records flagged for review by a rescore",
		}),

		// Store metrics
		StoreTenants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_tenants",
			Help:      "Number of tenant collections in the result store",
		}),
		StoreRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Number of records across all tenants",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Transport metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GRPCCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),
	}
}

// RecordIngest records the result of an ingest call.
func (m *Metrics) RecordIngest(result string) {
	m.IngestRequests.WithLabelValues(result).Inc()
}

// RecordRescore records the result of a rescore call.
func (m *Metrics) RecordRescore(result string) {
	m.RescoreRequests.WithLabelValues(result).Inc()
}

// RecordQuery records the result of a result lookup.
func (m *Metrics) RecordQuery(result string) {
	m.QueryRequests.WithLabelValues(result).Inc()
}

// RecordTaskScheduled records a deferred task being scheduled.
func (m *Metrics) RecordTaskScheduled(kind string) {
	m.TasksScheduled.WithLabelValues(kind).Inc()
	m.TasksInFlight.Inc()
}

// RecordTaskFinished records a deferred task finishing.
func (m *Metrics) RecordTaskFinished(kind, outcome string, durationSeconds float64) {
	m.TasksInFlight.Dec()
	m.TasksCompleted.WithLabelValues(kind, outcome).Inc()
	m.TaskDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordScore records a stored sentiment score.
func (m *Metrics) RecordScore(score float64) {
	m.SentimentScores.Observe(score)
}

// RecordReviewRequired records a record being flagged for review.
func (m *Metrics) RecordReviewRequired() {
	m.ReviewRequired.Inc()
}

// SetStoreSize records the current store cardinality.
func (m *Metrics) SetStoreSize(tenants, records int) {
	m.StoreTenants.Set(float64(tenants))
	m.StoreRecords.Set(float64(records))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, code string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordGRPCCall records a served gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
