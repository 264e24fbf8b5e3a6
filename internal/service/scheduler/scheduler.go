// Package scheduler runs fire-and-forget deferred tasks.
//
// A scheduled task waits out its delay on a timer, so no goroutine is parked
// on the caller's path, then runs its body with a bounded level of
// concurrency. Callers never receive the task's result; failures are logged
// and counted here.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"transcript-insights-service/internal/observability/logging"
	"transcript-insights-service/internal/observability/metrics"
)

var (
	// ErrClosed is returned by Schedule after Shutdown has been called.
	ErrClosed = errors.New("scheduler is shut down")
	// ErrSkipped may be returned by a task body that found nothing to do.
	// It is counted as "skipped" rather than as a failure.
	ErrSkipped = errors.New("task skipped")
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomePanic   = "panic"
)

// Task is a unit of deferred work.
type Task struct {
	// ID identifies the task in logs. Generated when empty.
	ID string
	// Kind groups tasks for metrics (ingest, rescore).
	Kind string
	// Delay is how long to wait before running Run.
	Delay time.Duration
	// Run is the task body.
	Run func(ctx context.Context) error
}

// Config holds scheduler settings.
type Config struct {
	// MaxConcurrent bounds concurrently executing task bodies. Zero means unbounded.
	MaxConcurrent int
	// TaskTimeout bounds a single task body. Zero means no timeout.
	TaskTimeout time.Duration
}

// Stats exposes scheduler counters.
type Stats struct {
	Scheduled uint64
	InFlight  int64
	Succeeded uint64
	Skipped   uint64
	Failed    uint64
}

// Scheduler runs deferred tasks.
type Scheduler struct {
	clock   clockwork.Clock
	sem     *semaphore.Weighted
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	scheduled atomic.Uint64
	inFlight  atomic.Int64
	succeeded atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for task delays.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a scheduler.
func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   clockwork.NewRealClock(),
		timeout: cfg.TaskTimeout,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("scheduler"),
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers t to run after t.Delay and returns its id immediately.
func (s *Scheduler) Schedule(t Task) (string, error) {
	if t.Run == nil {
		return "", errors.New("scheduler: task has no body")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}

	s.wg.Add(1)
	s.scheduled.Add(1)
	s.inFlight.Add(1)
	s.metrics.RecordTaskScheduled(t.Kind)

	if t.Delay <= 0 {
		go s.run(t)
	} else {
		s.clock.AfterFunc(t.Delay, func() { s.run(t) })
	}

	s.logger.Debug().
		Str("taskId", t.ID).
		Str("taskKind", t.Kind).
		Dur("delay", t.Delay).
		Msg("Task scheduled")
	return t.ID, nil
}

func (s *Scheduler) run(t Task) {
	defer s.wg.Done()
	defer s.inFlight.Add(-1)

	// Tasks are not cancellable once scheduled, so acquiring never gives up.
	if s.sem != nil {
		_ = s.sem.Acquire(context.Background(), 1)
		defer s.sem.Release(1)
	}

	start := s.clock.Now()
	err := s.execute(t)
	duration := s.clock.Since(start)

	outcome := OutcomeOK
	switch {
	case err == nil:
		s.succeeded.Add(1)
	case errors.Is(err, ErrSkipped):
		outcome = OutcomeSkipped
		s.skipped.Add(1)
	default:
		outcome = OutcomeFailed
		if errors.Is(err, errPanic) {
			outcome = OutcomePanic
		}
		s.failed.Add(1)
	}
	s.metrics.RecordTaskFinished(t.Kind, outcome, duration.Seconds())

	event := s.logger.Debug()
	if outcome == OutcomeFailed || outcome == OutcomePanic {
		event = s.logger.Error().Err(err)
	}
	event.
		Str("taskId", t.ID).
		Str("taskKind", t.Kind).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Task finished")
}

var errPanic = errors.New("task panicked")

func (s *Scheduler) execute(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errPanic, fmt.Sprint(r))
		}
	}()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return t.Run(ctx)
}

// Wait blocks until every scheduled task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting tasks and waits for in-flight ones until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler drained")
		return nil
	case <-ctx.Done():
		s.logger.Warn().
			Int64("inFlight", s.inFlight.Load()).
			Msg("Scheduler shutdown deadline reached with tasks in flight")
		return errors.Wrap(ctx.Err(), "scheduler shutdown")
	}
}

// Healthy reports whether the scheduler still accepts tasks.
func (s *Scheduler) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Scheduled: s.scheduled.Load(),
		InFlight:  s.inFlight.Load(),
		Succeeded: s.succeeded.Load(),
		Skipped:   s.skipped.Load(),
		Failed:    s.failed.Load(),
	}
}
