package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkov/docvault/internal/config"
	"github.com/avolkov/docvault/internal/core/ports"
	"github.com/avolkov/docvault/internal/core/usecase"
	"github.com/avolkov/docvault/internal/infrastructure/analysis"
	"github.com/avolkov/docvault/internal/infrastructure/blob/httpblob"
	"github.com/avolkov/docvault/internal/infrastructure/connectivity"
	"github.com/avolkov/docvault/internal/infrastructure/identity"
	"github.com/avolkov/docvault/internal/infrastructure/remote/restapi"
	"github.com/avolkov/docvault/internal/infrastructure/resilience"
	"github.com/avolkov/docvault/internal/infrastructure/store/sqlite"
	"github.com/avolkov/docvault/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Store   ports.RecordStore
	Queue   ports.MutationQueuer
	Drainer ports.SyncDrainer

	Availability ports.AvailabilityManager
	Stats        ports.StatsReporter
	Monitor      *connectivity.Monitor
	Metrics      *metrics.SyncMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := sqlite.OpenDB(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	store := sqlite.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerOpenTimeout:  time.Duration(cfg.BreakerOpenTimeoutSecs) * time.Second,
	})

	remote := restapi.NewWithOptions(cfg.RemoteBaseURL, cfg.RemoteAuthToken, restapi.Options{
		Timeout:            time.Duration(cfg.RemoteTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	blobs := httpblob.NewWithOptions(cfg.BlobBaseURL, cfg.RemoteAuthToken, httpblob.Options{
		Timeout:            time.Duration(cfg.BlobTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	analyzer := analysis.NewWithOptions(cfg.AnalysisBaseURL, cfg.RemoteAuthToken, analysis.Options{
		Timeout:            time.Duration(cfg.AnalysisTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})

	who := identity.NewStatic(cfg.UserID)
	syncMetrics := metrics.NewSyncMetrics("syncd")
	lease := usecase.NewLease()

	queue := usecase.NewMutationQueue(store, who)

	// The orchestrator reads link state from the monitor and the monitor
	// drains through the orchestrator, so the link-state side is bound
	// through a closure and the monitor is built second.
	var monitor *connectivity.Monitor
	online := onlineFunc(func() bool { return monitor.Online() })

	orchestrator := usecase.NewSyncOrchestrator(
		store, remote, blobs, analyzer, online, lease, syncMetrics, logger)

	if reclaimed, err := orchestrator.ReclaimStale(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reclaim stale queue items: %w", err)
	} else if reclaimed > 0 {
		logger.Info("stale queue items reclaimed for retry", "count", reclaimed)
	}

	monitor = connectivity.NewMonitor(connectivity.Config{
		Probe:            connectivity.HTTPProbe(remote.Health, cfg.ProbeTimeout()),
		Interval:         cfg.ProbeInterval(),
		DrainMinInterval: cfg.DrainMinInterval(),
		Queue:            queue,
		Drainer:          orchestrator,
		OnResumeRequired: func(_ context.Context, uploadCount int) {
			logger.Info("queued uploads await confirmation", "uploads", uploadCount)
		},
		Logger: logger,
	})

	return &App{
		Config: cfg,

		Store:   store,
		Queue:   queue,
		Drainer: orchestrator,

		Availability: usecase.NewAvailability(store, remote, blobs, logger),
		Stats:        usecase.NewStats(store, syncMetrics),
		Monitor:      monitor,
		Metrics:      syncMetrics,

		closeFn: func() {
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type onlineFunc func() bool

func (f onlineFunc) Online() bool { return f() }
