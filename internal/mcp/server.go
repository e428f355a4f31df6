// Package mcp exposes interaction checking and alerting to MCP clients.
// The server acts for a single configured user over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/service"
)

// Config names the server and the user its tools act for
type Config struct {
	Name    string
	Version string
	UserID  string
}

// Server is an MCP server over the alert engine and suggestion workflow
type Server struct {
	config      Config
	session     domain.Session
	engine      *service.AlertEngine
	suggestions *service.SuggestionWorkflow
	mcpServer   *mcp.Server
	logger      *logrus.Logger
}

// ResolveSession loads the acting user so tools carry the user's real role
func ResolveSession(ctx context.Context, users domain.UserStore, userID string) (domain.Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Session{}, fmt.Errorf("NEUROPHARM_MCP_USER is not set: %w", domain.ErrUnauthenticated)
	}
	user, err := users.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, fmt.Errorf("mcp user %s: %w", userID, domain.ErrUnauthenticated)
	}
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{UserID: user.UserID, Role: user.Role}, nil
}

// NewServer creates the MCP server and registers its tools
func NewServer(cfg Config, sess domain.Session, engine *service.AlertEngine, suggestions *service.SuggestionWorkflow, logger *logrus.Logger) (*Server, error) {
	if sess.UserID == "" {
		return nil, fmt.Errorf("mcp server requires a user: %w", domain.ErrUnauthenticated)
	}
	if cfg.Name == "" {
		cfg.Name = "neuropharmdb"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	s := &Server{
		config:      cfg,
		session:     sess,
		engine:      engine,
		suggestions: suggestions,
		logger:      logger,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	s.registerTools()

	logger.WithFields(logrus.Fields{
		"server":  cfg.Name,
		"user_id": sess.UserID,
		"role":    sess.Role,
	}).Info("MCP server initialized")
	return s, nil
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
