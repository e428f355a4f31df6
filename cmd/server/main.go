package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/api"
	"github.com/neuropharmdb-server/internal/bootstrap"
	"github.com/neuropharmdb-server/internal/config"
	"github.com/neuropharmdb-server/internal/database"
)

var version = "dev"

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := bootstrap.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := database.NewMigrationRunner(configManager.GetMigrationURL(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open migrations")
	}
	if err := runner.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to apply migrations")
	}
	if err := runner.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}

	app, err := bootstrap.NewFull(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.WithError(err).Warn("Error during shutdown")
		}
	}()

	checks := make(map[string]api.Pinger, len(app.HealthChecks))
	for name, p := range app.HealthChecks {
		checks[name] = p
	}

	server := api.NewServer(cfg.Server, api.Services{
		Auth:        app.Auth,
		Catalog:     app.Catalog,
		Resolver:    app.Resolver,
		Engine:      app.Engine,
		Suggestions: app.Suggestions,
	}, api.Options{
		Registry:     app.Registry,
		HealthChecks: checks,
		Version:      version,
	}, logger)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"version": version,
	}).Info("Starting NeuroPharmDB server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
