package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/middleware"
	"github.com/neuropharmdb-server/internal/service"
)

// Pinger reports the health of a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the application services exposed over HTTP
type Services struct {
	Auth        *service.AuthService
	Catalog     *service.CatalogService
	Resolver    *service.InteractionResolver
	Engine      *service.AlertEngine
	Suggestions *service.SuggestionWorkflow
}

// Options carries the optional collaborators of the server
type Options struct {
	// Registry is served on /metrics when set
	Registry *prometheus.Registry
	// HealthChecks are pinged by /health, keyed by component name
	HealthChecks map[string]Pinger
	Version      string
}

// Server represents the HTTP server
type Server struct {
	config   domain.ServerConfig
	services Services
	options  Options
	hub      *Hub
	limiter  *middleware.RateLimiter
	router   *gin.Engine
	server   *http.Server
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server instance. The server's alert hub is
// installed as the engine's notifier.
func NewServer(cfg domain.ServerConfig, services Services, opts Options, logger *logrus.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	server := &Server{
		config:   cfg,
		services: services,
		options:  opts,
		hub:      NewHub(logger),
		limiter:  middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		router:   router,
		logger:   logger,
	}
	services.Engine.SetNotifier(server.hub)

	server.setupRoutes()

	return server
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the alert stream hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.options.Registry != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.options.Registry, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.AuditLogger())
	v1.POST("/login", s.limiter.Middleware(), s.handleLogin)

	authed := v1.Group("")
	authed.Use(middleware.RequireSession(s.services.Auth), s.limiter.Middleware())
	{
		authed.POST("/logout", s.handleLogout)
		authed.GET("/me", s.handleMe)

		authed.GET("/drugs", s.handleListDrugs)
		authed.GET("/drugs/:id", s.handleGetDrug)
		authed.POST("/drugs", s.handleCreateDrug)
		authed.DELETE("/drugs/:id", s.handleDeleteDrug)

		authed.GET("/effects", s.handleListEffects)
		authed.GET("/effects/:id", s.handleGetEffect)
		authed.POST("/effects", s.handleCreateEffect)

		authed.GET("/interactions", s.handleListInteractions)
		authed.GET("/interactions/top", s.handleTopInteractions)
		authed.GET("/interactions/pair", s.handleFindInteraction)
		authed.POST("/interactions", s.handleCreateInteraction)
		authed.DELETE("/interactions/:id", s.handleDeleteInteraction)

		authed.POST("/checker", s.handleCheckPair)

		authed.GET("/timeline", s.handleListTimeline)
		authed.POST("/timeline", s.handleAddTimelineEntry)
		authed.POST("/recheck", s.handleRecheck)

		authed.GET("/alerts", s.handleListAlerts)
		authed.GET("/alerts/unread-count", s.handleUnreadCount)
		authed.POST("/alerts/mark-read", s.handleMarkRead)
		authed.GET("/alerts/stream", s.hub.HandleStream)
		authed.GET("/alerts/:id/explanation", s.handleExplainAlert)

		authed.POST("/suggestions/predict", s.handlePredict)
		authed.POST("/suggestions", s.handleSubmitSuggestion)
		authed.GET("/suggestions/pending", middleware.RequireRole(domain.RoleDoctor, domain.RoleAdmin), s.handleListPending)
		authed.POST("/suggestions/:id/resolve", s.handleResolveSuggestion)
	}

	users := authed.Group("/users")
	users.Use(middleware.RequireRole(domain.RoleAdmin))
	{
		users.GET("", s.handleListUsers)
		users.POST("", s.handleCreateUser)
		users.DELETE("/:id", s.handleDeleteUser)
	}
	authed.GET("/users/:id/timeline", s.handleListUserTimeline)
}

// handleHealth pings every registered dependency
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.options.HealthChecks))
	for name, p := range s.options.HealthChecks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   s.options.Version,
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
