// Package main provides the lightweight entry point for the NeuroPharmDB MCP
// server. It needs no external services and keeps its data in SQLite.
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
	cfg := config.LoadLiteConfig()
	logger := bootstrap.NewLogger(cfg.LogLevel, cfg.LogFormat)

	app, err := bootstrap.NewLite(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := mcp.ResolveSession(ctx, app.Store, cfg.MCPUserID)
	if err != nil {
		logger.WithError(err).Error("Failed to resolve MCP user")
		return
	}

	server, err := mcp.NewServer(mcp.Config{UserID: sess.UserID}, sess, app.Engine, app.Suggestions, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		return
	}

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"user_id":  sess.UserID,
	}).Info("Starting NeuroPharmDB MCP server (lite)")

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("NeuroPharmDB MCP server (lite) stopped")
}
