// Package bootstrap wires stores, caches and services from configuration
// for the server, MCP and CLI binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/cache"
	"github.com/neuropharmdb-server/internal/config"
	"github.com/neuropharmdb-server/internal/database"
	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/metrics"
	"github.com/neuropharmdb-server/internal/repository"
	"github.com/neuropharmdb-server/internal/service"
	"github.com/neuropharmdb-server/internal/sqlitestore"
)

// Pinger reports the health of a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the wired application
type App struct {
	Store       domain.Store
	Registry    *prometheus.Registry
	Metrics     *metrics.EngineMetrics
	Resolver    *service.InteractionResolver
	Engine      *service.AlertEngine
	Suggestions *service.SuggestionWorkflow
	Catalog     *service.CatalogService
	Auth        *service.AuthService
	// HealthChecks are the dependencies /health pings
	HealthChecks map[string]Pinger
	Logger       *logrus.Logger

	closers []func() error
}

// NewLogger builds a logger from level and format names
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Options are the engine settings shared by both deployment modes
type Options struct {
	AlertThreshold float64
	AlertListLimit int
	ResolverSize   int
	Predictor      domain.PredictorConfig
	Auth           domain.AuthConfig
}

// NewFull connects to Postgres and Redis. When Redis is unreachable unread
// counts are cached in process instead.
func NewFull(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	store := repository.NewStore(db.Pool, logger)

	app := &App{
		Store:        store,
		HealthChecks: map[string]Pinger{"database": store},
		Logger:       logger,
	}
	app.closers = append(app.closers, store.Close)

	var counter domain.UnreadCounter
	redisCounter, err := cache.NewRedisUnreadCounter(cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, caching unread counts in memory")
		counter = cache.NewMemoryUnreadCounter(0, cfg.Cache.UnreadCountTTL)
	} else {
		counter = redisCounter
		app.HealthChecks["redis"] = redisCounter
		app.closers = append(app.closers, redisCounter.Close)
	}

	opts := Options{
		AlertThreshold: cfg.Engine.AlertThreshold,
		AlertListLimit: cfg.Engine.AlertListLimit,
		ResolverSize:   cfg.Cache.ResolverSize,
		Predictor:      cfg.Predictor,
		Auth:           cfg.Auth,
	}
	if err := app.wire(counter, opts); err != nil {
		app.Close()
		return nil, err
	}
	err = metrics.RegisterPoolStats(app.Registry, func() metrics.PoolStats {
		s := db.Stats()
		return metrics.PoolStats{Acquired: s.AcquiredConns(), Idle: s.IdleConns(), Total: s.TotalConns()}
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to register pool metrics: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"database": cfg.Database.Database,
		"redis":    redisCounter != nil,
	}).Info("Application wired")
	return app, nil
}

// NewLite opens the SQLite database under the configured data directory
func NewLite(cfg *config.LiteConfig, logger *logrus.Logger) (*App, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := sqlitestore.Open(cfg.DBPath(), logger)
	if err != nil {
		return nil, err
	}
	return NewWithStore(store, cache.NewMemoryUnreadCounter(cfg.CacheMaxItems, cfg.UnreadCountTTL), Options{
		AlertThreshold: cfg.AlertThreshold,
		ResolverSize:   cfg.CacheMaxItems,
		Predictor:      domain.PredictorConfig{URL: cfg.PredictorURL},
	}, logger)
}

// NewWithStore wires services over an already open store. The store is
// closed with the app.
func NewWithStore(store domain.Store, counter domain.UnreadCounter, opts Options, logger *logrus.Logger) (*App, error) {
	app := &App{
		Store:        store,
		HealthChecks: map[string]Pinger{},
		Logger:       logger,
	}
	if p, ok := store.(Pinger); ok {
		app.HealthChecks["database"] = p
	}
	app.closers = append(app.closers, store.Close)

	if err := app.wire(counter, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(counter domain.UnreadCounter, opts Options) error {
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.NewEngineMetrics(a.Registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	a.Metrics = m

	a.Resolver = service.NewInteractionResolver(a.Store, service.ResolverConfig{CacheSize: opts.ResolverSize}, m, a.Logger)

	engineOpts := []service.AlertEngineOption{
		service.WithMetrics(m),
		service.WithUnreadCounter(counter),
	}
	if opts.AlertThreshold > 0 {
		engineOpts = append(engineOpts, service.WithThreshold(opts.AlertThreshold))
	}
	if opts.AlertListLimit > 0 {
		engineOpts = append(engineOpts, service.WithListLimit(opts.AlertListLimit))
	}
	a.Engine = service.NewAlertEngine(a.Store, a.Resolver, a.Logger, engineOpts...)

	var predictor domain.Predictor = service.NewHeuristicPredictor(a.Resolver)
	if opts.Predictor.URL != "" {
		predictor = service.NewRemotePredictor(service.RemotePredictorConfig{
			URL:       opts.Predictor.URL,
			Timeout:   opts.Predictor.Timeout,
			RateLimit: opts.Predictor.RateLimit,
		}, predictor, m, a.Logger)
		a.Logger.WithField("url", opts.Predictor.URL).Info("Using remote interaction model")
	}
	a.Suggestions = service.NewSuggestionWorkflow(a.Store, predictor, a.Engine, a.Logger)

	a.Catalog = service.NewCatalogService(a.Store, a.Logger)
	a.Auth = service.NewAuthService(a.Store, service.AuthConfig{
		SessionTTL:  opts.Auth.SessionTTL,
		MaxSessions: opts.Auth.MaxSessions,
	}, a.Logger)
	return nil
}

// Close releases the store and caches in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
