// Package app wires the service components together and runs them.
package app

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"transcript-insights-service/internal/config"
	"transcript-insights-service/internal/events"
	httpapi "transcript-insights-service/internal/http"
	"transcript-insights-service/internal/observability"
	"transcript-insights-service/internal/observability/logging"
	"transcript-insights-service/internal/observability/metrics"
	"transcript-insights-service/internal/schema"
	"transcript-insights-service/internal/service/pipeline"
	"transcript-insights-service/internal/service/scheduler"
	"transcript-insights-service/internal/service/scoring"
	"transcript-insights-service/internal/store"
)

// HealthServiceName is the gRPC health service name reported by the process.
const HealthServiceName = "transcript.insights.Pipeline"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Pipeline  *pipeline.Service
	Publisher *events.Publisher
	Metrics   *metrics.Metrics

	httpServer *http.Server
	opsServer  *observability.Server
	grpcServer *grpc.Server
	health     *health.Server
	ready      atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	a.Store = store.New()
	a.Scheduler = scheduler.New(scheduler.Config{
		MaxConcurrent: cfg.Pipeline.MaxConcurrentTasks,
		TaskTimeout:   cfg.Pipeline.TaskTimeout,
	}, scheduler.WithMetrics(a.Metrics))

	a.Publisher = events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicScored:   cfg.Kafka.TopicScored,
		TopicRescored: cfg.Kafka.TopicRescored,
		Principal:     cfg.Kafka.Principal,
	})

	svc, err := pipeline.NewServiceWithLimits(pipeline.Deps{
		Store:     a.Store,
		Scheduler: a.Scheduler,
		Scorer:    scoring.NewEngine(scoring.WithVariance(cfg.Pipeline.Variance)),
		Validator: schema.New(cfg.Pipeline.MaxTextLength),
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Clock:     clockwork.NewRealClock(),
	}, pipeline.Limits{
		IngestLatency:   cfg.Pipeline.IngestLatency,
		RescoreLatency:  cfg.Pipeline.RescoreLatency,
		Baseline:        cfg.Pipeline.Baseline,
		ReviewThreshold: cfg.Pipeline.ReviewThreshold,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline")
	}
	a.Pipeline = svc

	a.httpServer = &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(svc, a.Metrics),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	a.opsServer = observability.NewServer(":"+cfg.Service.MetricsPort, a.Ready)

	a.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(a.Metrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(a.Metrics)),
	)
	a.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(a.grpcServer, a.health)
	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(a.grpcServer)
	a.setServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	a.Logger.Info().
		Str("method", "New").
		Bool("kafkaEnabled", a.Publisher.Enabled()).
		Dur("ingestLatency", cfg.Pipeline.IngestLatency).
		Dur("rescoreLatency", cfg.Pipeline.RescoreLatency).
		Msg("Transcript insights application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:  a.Cfg.Observability.LogLevel,
		Format: a.Cfg.Observability.LogFormat,
	})

	a.Logger = logging.Logger().With().
		Str("service", a.Cfg.Service.Name).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// Ready reports whether the application is serving traffic.
func (a *Application) Ready() bool {
	return a.ready.Load() && a.Pipeline.Ready()
}

// Run serves HTTP, gRPC and the ops endpoints until ctx is cancelled or a
// server fails, then shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		return errors.Wrap(err, "listen grpc")
	}
	httpLis, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		grpcLis.Close()
		return errors.Wrap(err, "listen http")
	}

	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Str("method", "Run").
		Time("startupTime", a.StartupTime).
		Str("httpAddr", httpLis.Addr().String()).
		Str("grpcAddr", grpcLis.Addr().String()).
		Msg("Transcript insights service starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.httpServer.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		return errors.Wrap(a.opsServer.ListenAndServe(), "ops server")
	})
	g.Go(func() error {
		return errors.Wrap(a.grpcServer.Serve(grpcLis), "grpc server")
	})

	a.ready.Store(true)
	a.setServingStatus(grpc_health_v1.HealthCheckResponse_SERVING)

	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops accepting work, drains deferred tasks and closes every server.
func (a *Application) Shutdown() error {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()
	shutdownLogger.Info().Msg("Transcript insights service shutting down")

	a.ready.Store(false)
	a.setServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.Service.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "http shutdown"))
	}
	// Tasks already scheduled still write their records before exit.
	if err := a.Scheduler.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.grpcServer.GracefulStop()
	if err := a.opsServer.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "ops shutdown"))
	}
	if err := a.Publisher.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close publisher"))
	}

	tenants, records := a.Store.Stats()
	stats := a.Scheduler.Stats()
	shutdownLogger.Info().
		Int("tenants", tenants).
		Int("records", records).
		Uint64("tasksScheduled", stats.Scheduled).
		Uint64("tasksFailed", stats.Failed).
		Msg("Shutdown complete")

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (a *Application) setServingStatus(s grpc_health_v1.HealthCheckResponse_ServingStatus) {
	a.health.SetServingStatus("", s)
	a.health.SetServingStatus(HealthServiceName, s)
}
