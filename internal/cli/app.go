package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/arena/internal/config"
	"github.com/aretw0/arena/internal/metrics"
	httpAdapter "github.com/aretw0/arena/pkg/adapters/http"
	"github.com/aretw0/arena/pkg/hub"
	"github.com/aretw0/arena/pkg/orchestrator"
	"github.com/aretw0/arena/pkg/ports"
	"github.com/aretw0/arena/pkg/session"
)

// App is a fully wired arena: session hubs in front of a durable orchestrator.
type App struct {
	Config     config.Config
	Stores     *Stores
	Registry   *hub.Registry
	Executor   *orchestrator.Executor
	Dispatcher *orchestrator.Dispatcher
	Metrics    *metrics.Metrics

	logger *slog.Logger
}

// NewApp wires every component for cfg. gen overrides generator.backend when set.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, gen ports.Generator) (*App, error) {
	stores, err := OpenStores(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		if gen, err = NewGenerator(cfg.Generator); err != nil {
			_ = stores.Close()
			return nil, err
		}
	}

	m := metrics.New()
	registry := hub.NewRegistry(ctx,
		hub.WithTranscriptStore(stores.Transcripts),
		hub.WithContextWindow(cfg.Orchestrator.ContextWindow),
		hub.WithHooks(m.HubHooks()),
		hub.WithLogger(logger),
	)
	m.TrackSessions(func() int { return len(registry.Keys()) })

	lockOpts := []session.Option{
		session.WithLockTTL(cfg.Orchestrator.LockTTL),
		session.WithLogger(logger),
	}
	if stores.Locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(stores.Locker))
	}

	exec := orchestrator.NewExecutor(stores.Runs, registry, gen,
		orchestrator.WithRetry(cfg.Orchestrator.MaxAttempts, cfg.Orchestrator.BackoffBase, cfg.Orchestrator.BackoffMax),
		orchestrator.WithGenerateTimeout(cfg.Generator.Timeout),
		orchestrator.WithPersonas(cfg.Personas),
		orchestrator.WithKeepRuns(cfg.Orchestrator.KeepRuns),
		orchestrator.WithSessionManager(session.NewManager(lockOpts...)),
		orchestrator.WithLifecycleHooks(m.LifecycleHooks(createDebugHooks(logger))),
		orchestrator.WithLogger(logger),
	)
	dispatcher := orchestrator.NewDispatcher(ctx, exec, stores.Runs,
		orchestrator.WithWorkers(cfg.Orchestrator.Workers),
		orchestrator.WithQueueSize(cfg.Orchestrator.QueueSize),
		orchestrator.WithDispatcherLogger(logger),
	)
	registry.SetLauncher(dispatcher)

	return &App{
		Config:     cfg,
		Stores:     stores,
		Registry:   registry,
		Executor:   exec,
		Dispatcher: dispatcher,
		Metrics:    m,
		logger:     logger,
	}, nil
}

// Handler returns the HTTP API of the app.
func (a *App) Handler() (http.Handler, error) {
	return httpAdapter.NewHandler(a.Registry,
		httpAdapter.WithTranscriptStore(a.Stores.Transcripts),
		httpAdapter.WithRunStore(a.Stores.Runs),
		httpAdapter.WithMetricsHandler(a.Metrics.Handler()),
		httpAdapter.WithLogger(a.logger),
	)
}

// Close stops workers, then hubs, then releases the stores.
// Runs interrupted here stay stored and are recovered on the next start.
func (a *App) Close() error {
	a.Dispatcher.Stop()
	a.Registry.Shutdown()
	return a.Stores.Close()
}
