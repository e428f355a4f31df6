package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/bootstrap"
	"github.com/neuropharmdb-server/internal/config"
	"github.com/neuropharmdb-server/internal/mcp"
)

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
	// stdout carries the protocol; bootstrap loggers write to stderr
	logger := bootstrap.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewFull(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	sess, err := mcp.ResolveSession(ctx, app.Store, cfg.MCP.UserID)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve MCP user")
		return
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
		UserID:  sess.UserID,
	}, sess, app.Engine, app.Suggestions, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		return
	}

	logger.WithFields(logrus.Fields{
		"user_id": sess.UserID,
		"role":    sess.Role,
	}).Info("Starting NeuroPharmDB MCP server")

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("NeuroPharmDB MCP server stopped")
}
