// Package cli wires configuration into engines, stores and servers for the
// command-line entry points.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/internal/config"
	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/file"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/memory"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/openai"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/process"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/redis"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/persistence/middleware"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/delta5-hq/d5-sub001/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// CreateLogger builds the application logger from the log section.
// An explicit level (from a flag) wins over the configured one.
func CreateLogger(cfg config.LogConfig, level string) (*slog.Logger, error) {
	if level == "" {
		level = cfg.Level
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.NewWriter(os.Stderr, lvl, logging.Format(cfg.Format)), nil
}

// CreateEngine builds an engine whose provider commands and /switch are
// served by the configured OpenAI-compatible endpoint. Query types with a
// process entry are served by that local command instead.
func CreateEngine(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*workflow.Engine, *progress.Reporter) {
	reporter := progress.New(
		progress.WithLogger(logger),
		progress.WithInterval(cfg.Progress.Interval),
		progress.WithRegisterer(reg),
	)

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithReporter(reporter),
		workflow.WithMetrics(reg),
		workflow.WithLifecycleHooks(createDebugHooks(logger)),
	}

	oa := cfg.Providers.OpenAI
	if oa.APIKey != "" || oa.BaseURL != "" {
		client := openai.New(oa, openai.WithLogger(logger))
		opts = append(opts, workflow.WithClassifier(client))
		if len(cfg.Providers.Types) == 0 {
			opts = append(opts, workflow.WithFallbackGenerator(client))
		}
		for _, t := range cfg.Providers.Types {
			opts = append(opts, workflow.WithGenerator(domain.QueryType(strings.TrimSpace(t)), client))
		}
	} else if len(cfg.Providers.Process) == 0 {
		logger.Warn("no provider configured; provider commands will produce no output")
	}

	if len(cfg.Providers.Process) > 0 {
		proc := process.New(process.WithRegistry(cfg.Providers.Process), process.WithLogger(logger))
		for _, qt := range proc.Types() {
			opts = append(opts, workflow.WithGenerator(qt, proc))
		}
	}

	return workflow.New(opts...), reporter
}

// CreateSnapshotStore opens the configured backend. The returned close
// function releases connections and is never nil.
func CreateSnapshotStore(cfg config.Config) (ports.SnapshotStore, func() error, error) {
	nop := func() error { return nil }

	var (
		store   ports.SnapshotStore
		closeFn = nop
	)
	switch cfg.Snapshots.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Snapshots.Path, file.Format(cfg.Snapshots.Format))
	case config.BackendRedis:
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		store, closeFn = rs, rs.Close
	default:
		return nil, nop, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshots.Backend)
	}

	mws, err := createMiddlewares(cfg.Snapshots)
	if err != nil {
		_ = closeFn()
		return nil, nop, err
	}
	return middleware.Chain(store, mws...), closeFn, nil
}

// createMiddlewares redacts before encrypting so masked values never reach
// the sealed envelope.
func createMiddlewares(cfg config.SnapshotsConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("snapshots.encryption_key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, fmt.Errorf("snapshots.fallback_keys[%d]: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// CreateManager wraps store in a session manager. A redis backend with
// redis.lock enabled shares its client with a distributed locker.
func CreateManager(cfg config.Config, store ports.SnapshotStore, logger *slog.Logger) *session.Manager {
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithLockTTL(cfg.Redis.LockTTL),
	}
	if rs, ok := middleware.Unwrap(store).(*redis.Store); ok && cfg.Redis.Lock {
		opts = append(opts, session.WithLocker(redis.NewLocker(rs.Client(), cfg.Redis.Prefix)))
	}
	return session.NewManager(store, opts...)
}

// Managed executes through a session manager so stored workflows are loaded
// and saved around every request.
type Managed struct {
	Manager *session.Manager
	Engine  *workflow.Engine
}

// Execute implements the executor ports of the servers.
func (m Managed) Execute(ctx context.Context, req domain.Request) (*domain.Response, error) {
	return m.Manager.Execute(ctx, m.Engine, req)
}

// App bundles everything a command needs.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Engine   *workflow.Engine
	Reporter *progress.Reporter
	Manager  *session.Manager
	Close    func() error
}

// Bootstrap loads the configuration at configPath and wires the app.
func Bootstrap(configPath, logLevel string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := CreateLogger(cfg.Log, logLevel)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	engine, reporter := CreateEngine(cfg, logger, reg)

	store, closeStore, err := CreateSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Engine:   engine,
		Reporter: reporter,
		Manager:  CreateManager(cfg, store, logger),
		Close:    closeStore,
	}, nil
}

// Executor returns the engine bound to the session manager.
func (a *App) Executor() Managed {
	return Managed{Manager: a.Manager, Engine: a.Engine}
}

// StartProgress starts the periodic in-flight dump when enabled.
func (a *App) StartProgress(ctx context.Context) {
	if a.Config.Progress.Enabled {
		a.Reporter.Start(ctx)
	}
}
