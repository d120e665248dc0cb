// Package app composes the client: configuration, logging, credential store,
// API client, cache and the state store, with fx managing lifecycles.
package app

import (
	"context"
	"time"

	"github.com/dmelo/parley/internal/apiclient"
	"github.com/dmelo/parley/internal/bus"
	"github.com/dmelo/parley/internal/cache"
	"github.com/dmelo/parley/internal/config"
	"github.com/dmelo/parley/internal/creds"
	"github.com/dmelo/parley/internal/lock"
	"github.com/dmelo/parley/internal/logging"
	"github.com/dmelo/parley/internal/profile"
	"github.com/dmelo/parley/internal/state"
	"github.com/dmelo/parley/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile   string
	ServerURL string // optional override for the configured server
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCreds,
			provideCache,
			provideAPIClient,
			provideStore,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		// Missing config is normal on first run; defaults apply.
		logger.Info("no config file, using defaults", zap.Error(err))
		return &config.Config{}
	}
	return cfg
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("profile", p.Profile))
	return l, nil
}

func provideCreds(p Params) *creds.FileStore {
	return creds.NewFileStore(profile.TokenPath(p.Profile))
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := cache.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAPIClient(p Params, cfg *config.Config, cs *creds.FileStore, logger *zap.Logger) *apiclient.Client {
	baseURL := cfg.ServerURLOrDefault()
	if p.ServerURL != "" {
		baseURL = p.ServerURL
	}
	return apiclient.New(apiclient.Options{
		BaseURL: baseURL,
		Timeout: time.Duration(cfg.RequestTimeoutOrDefault()) * time.Second,
		Tokens:  cs,
		Logger:  logger,
	})
}

func provideStore(api *apiclient.Client, cs *creds.FileStore, db *cache.DB, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *state.Store {
	return state.New(api, cs, db, b, machine, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *cache.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}
