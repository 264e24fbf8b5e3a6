// Package pipeline implements the ingest, rescore and query operations.
//
// Ingest and Rescore validate synchronously, schedule their processing as a
// deferred task and return a QUEUED acknowledgment without waiting for it.
// The deferred tasks are the only writers to the result store.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"transcript-insights-service/internal/models"
	"transcript-insights-service/internal/observability/logging"
	"transcript-insights-service/internal/observability/metrics"
	"transcript-insights-service/internal/schema"
	"transcript-insights-service/internal/service/scheduler"
	"transcript-insights-service/internal/service/scoring"
	"transcript-insights-service/internal/store"
)

// Errors returned synchronously by the pipeline operations.
var (
	ErrInvalidTenant  = errors.New("tenant id is required")
	ErrInvalidPayload = errors.New("invalid transcript payload")
	// ErrNotFound is store.ErrNotFound, so either can be matched.
	ErrNotFound = store.ErrNotFound
)

// Request results used as metric labels.
const (
	resultAccepted      = "accepted"
	resultInvalidTenant = "invalid_tenant"
	resultInvalid       = "invalid_payload"
	resultNotFound      = "not_found"
	resultFound         = "found"
	resultRejected      = "rejected"
)

// Limits defines the timing and scoring parameters of the pipeline.
type Limits struct {
	IngestLatency   time.Duration // Simulated processing time before an ingest result is stored
	RescoreLatency  time.Duration // Simulated processing time before a rescore is applied
	Baseline        float64       // Baseline sentiment for new transcripts
	ReviewThreshold float64       // Rescored records below this are tagged for review
}

// DefaultLimits returns the standard pipeline parameters.
func DefaultLimits() Limits {
	return Limits{
		IngestLatency:   3 * time.Second,
		RescoreLatency:  2 * time.Second,
		Baseline:        scoring.DefaultBaseline,
		ReviewThreshold: 0.5,
	}
}

// EventPublisher receives record events after deferred tasks write to the store.
type EventPublisher interface {
	PublishScored(ctx context.Context, event models.RecordEvent) error
	PublishRescored(ctx context.Context, event models.RecordEvent) error
}

// Deps are the collaborators of a Service. Store and Scheduler are required.
type Deps struct {
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Scorer    scoring.Scorer
	Validator *schema.Validator
	Publisher EventPublisher
	Metrics   *metrics.Metrics
	Clock     clockwork.Clock
}

// Service runs the transcript pipeline.
type Service struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	scorer    scoring.Scorer
	validator *schema.Validator
	publisher EventPublisher
	metrics   *metrics.Metrics
	clock     clockwork.Clock
	limits    Limits
	logger    zerolog.Logger
}

// NewService creates a pipeline service with default limits.
func NewService(deps Deps) (*Service, error) {
	return NewServiceWithLimits(deps, DefaultLimits())
}

// NewServiceWithLimits creates a pipeline service with custom limits.
func NewServiceWithLimits(deps Deps, limits Limits) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if deps.Scheduler == nil {
		return nil, errors.New("pipeline: scheduler is required")
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewEngine()
	}
	if deps.Validator == nil {
		deps.Validator = schema.New(models.MaxTextLength)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	return &Service{
		store:     deps.Store,
		scheduler: deps.Scheduler,
		scorer:    deps.Scorer,
		validator: deps.Validator,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		limits:    limits,
		logger:    logging.WithComponent("pipeline"),
	}, nil
}

// Limits returns the configured limits.
func (s *Service) Limits() Limits {
	return s.limits
}

// Ready reports whether the service still accepts work.
func (s *Service) Ready() bool {
	return s.scheduler.Healthy()
}

// Ingest validates the payload and schedules its scoring. It returns as soon
// as the task is scheduled; the record becomes visible after IngestLatency.
func (s *Service) Ingest(ctx context.Context, tenantID string, payload models.TranscriptPayload) (models.Acknowledgment, error) {
	if !validTenant(tenantID) {
		s.metrics.RecordIngest(resultInvalidTenant)
		return models.Acknowledgment{}, ErrInvalidTenant
	}
	if err := s.validator.ValidateTranscript(payload); err != nil {
		s.metrics.RecordIngest(resultInvalid)
		return models.Acknowledgment{}, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	taskID := uuid.NewString()
	_, err := s.scheduler.Schedule(scheduler.Task{
		ID:    taskID,
		Kind:  metrics.KindIngest,
		Delay: s.limits.IngestLatency,
		Run:   s.ingestTask(tenantID, payload, taskID),
	})
	if err != nil {
		s.metrics.RecordIngest(resultRejected)
		return models.Acknowledgment{}, errors.Wrap(err, "schedule ingest")
	}

	s.metrics.RecordIngest(resultAccepted)
	logger := logging.WithTask(tenantID, payload.ConversationID, taskID, metrics.KindIngest)
	logger.Info().
		Int("textLength", payload.TextLength()).
		Msg("Ingest queued")

	return models.Acknowledgment{
		JobID:  payload.ConversationID,
		Status: models.StatusQueued,
	}, nil
}

func (s *Service) ingestTask(tenantID string, payload models.TranscriptPayload, taskID string) func(context.Context) error {
	return func(ctx context.Context) error {
		score := s.scorer.Score(s.limits.Baseline)
		rec, err := models.NewRecord(
			tenantID,
			payload.ConversationID,
			score,
			s.scorer.Summarize(payload.Text),
			s.scorer.Tag(payload.Text),
			models.StatusCompleted,
		)
		if err != nil {
			return errors.Wrap(err, "build record")
		}

		s.store.Put(tenantID, payload.ConversationID, rec)
		s.metrics.RecordScore(score)
		s.recordStoreSize()

		logger := logging.WithTask(tenantID, payload.ConversationID, taskID, metrics.KindIngest)
		logger.Info().
			Float64("sentimentScore", rec.SentimentScore).
			Strs("tags", rec.Tags).
			Msg("Transcript scored")

		event := models.NewRecordEvent(models.EventTypeScored, taskID, rec, s.clock.Now().UnixMilli())
		s.publish(ctx, event)
		return nil
	}
}

// Rescore schedules a re-evaluation of an existing record. The record must
// exist when the call is made, otherwise ErrNotFound is returned and nothing
// is scheduled.
func (s *Service) Rescore(ctx context.Context, tenantID, conversationID string) (models.Acknowledgment, error) {
	if !validTenant(tenantID) {
		s.metrics.RecordRescore(resultInvalidTenant)
		return models.Acknowledgment{}, ErrInvalidTenant
	}
	if conversationID == "" {
		s.metrics.RecordRescore(resultInvalid)
		return models.Acknowledgment{}, errors.Wrap(ErrInvalidPayload, "conversation id is required")
	}
	if _, err := s.store.Get(tenantID, conversationID); err != nil {
		s.metrics.RecordRescore(resultNotFound)
		return models.Acknowledgment{}, err
	}

	taskID := uuid.NewString()
	_, err := s.scheduler.Schedule(scheduler.Task{
		ID:    taskID,
		Kind:  metrics.KindRescore,
		Delay: s.limits.RescoreLatency,
		Run:   s.rescoreTask(tenantID, conversationID, taskID),
	})
	if err != nil {
		s.metrics.RecordRescore(resultRejected)
		return models.Acknowledgment{}, errors.Wrap(err, "schedule rescore")
	}

	s.metrics.RecordRescore(resultAccepted)
	logger := logging.WithTask(tenantID, conversationID, taskID, metrics.KindRescore)
	logger.Info().Msg("Rescore queued")

	return models.Acknowledgment{
		ConversationID: conversationID,
		Status:         models.StatusQueued,
	}, nil
}

// rescoreTask re-reads the record when it runs, so it applies to whatever was
// stored last. Two rescores of one record race; the later Put wins.
func (s *Service) rescoreTask(tenantID, conversationID, taskID string) func(context.Context) error {
	return func(ctx context.Context) error {
		logger := logging.WithTask(tenantID, conversationID, taskID, metrics.KindRescore)

		rec, err := s.store.Get(tenantID, conversationID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Debug().Msg("Record gone before rescore ran")
				return scheduler.ErrSkipped
			}
			return errors.Wrap(err, "load record")
		}

		previous := rec.SentimentScore
		rec.SentimentScore = s.scorer.Rescore(previous)
		flagged := false
		if rec.SentimentScore < s.limits.ReviewThreshold {
			flagged = rec.AddTag(models.TagReviewRequired)
		}
		rec.Status = models.StatusCompleted

		s.store.Put(tenantID, conversationID, rec)
		s.metrics.RecordScore(rec.SentimentScore)
		if flagged {
			s.metrics.RecordReviewRequired()
		}

		logger.Info().
			Float64("previousScore", previous).
			Float64("sentimentScore", rec.SentimentScore).
			Bool("reviewRequired", rec.HasTag(models.TagReviewRequired)).
			Msg("Transcript rescored")

		event := models.NewRecordEvent(models.EventTypeRescored, taskID, rec, s.clock.Now().UnixMilli())
		event.PreviousScore = &previous
		s.publish(ctx, event)
		return nil
	}
}

// GetResult returns the stored record. It never creates tenant state.
func (s *Service) GetResult(ctx context.Context, tenantID, conversationID string) (models.Record, error) {
	if !validTenant(tenantID) {
		s.metrics.RecordQuery(resultInvalidTenant)
		return models.Record{}, ErrInvalidTenant
	}

	rec, err := s.store.Get(tenantID, conversationID)
	if err != nil {
		s.metrics.RecordQuery(resultNotFound)
		return models.Record{}, err
	}
	s.metrics.RecordQuery(resultFound)
	return rec, nil
}

// publish sends event if a publisher is configured. Failures are logged only.
func (s *Service) publish(ctx context.Context, event models.RecordEvent) {
	if s.publisher == nil {
		return
	}

	var err error
	switch event.EventType {
	case models.EventTypeRescored:
		err = s.publisher.PublishRescored(ctx, event)
	default:
		err = s.publisher.PublishScored(ctx, event)
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("eventType", event.EventType).
			Str("tenantId", event.TenantID).
			Str("conversationId", event.ConversationID).
			Str("taskId", event.TaskID).
			Msg("Failed to publish record event")
	}
}

func (s *Service) recordStoreSize() {
	s.metrics.SetStoreSize(s.store.Stats())
}

func validTenant(tenantID string) bool {
	return strings.TrimSpace(tenantID) != ""
}
