// Package http provides the operator console: a small JSON API over the
// run manager, the mail composer and the run history.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/billing"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/repository"
	"github.com/garyjia/billing-master/internal/task"
)

// Runner builds run tasks
type Runner interface {
	NewTask(req billing.Request) *task.Task
	SuggestedName(customer string) (string, error)
	Profiles() *profile.Registry
}

// Scheduler runs at most one task at a time
type Scheduler interface {
	Submit(ctx context.Context, t *task.Task) error
	Current() *task.Task
	Cancel() bool
}

// Composer writes mail drafts
type Composer interface {
	Compose(ctx context.Context, customer string, attachments []string) (string, error)
}

// History lists finished runs
type History interface {
	List(ctx context.Context, limit int) ([]*repository.Run, error)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// OutputDir is used for runs that name no destination
	OutputDir string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		OutputDir:    "reports",
	}
}

// Server is the HTTP console
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger

	mu      sync.Mutex
	stopped chan struct{}
}

// NewServer creates a new HTTP server over the given services
func NewServer(config ServerConfig, runner Runner, scheduler Scheduler, composer Composer, history History, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(runner, scheduler, composer, history, config.OutputDir, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/customers", h.ListCustomers)

		api.POST("/runs", h.StartRun)
		api.GET("/runs/current", h.CurrentRun)
		api.POST("/runs/current/cancel", h.CancelRun)

		api.POST("/mail", h.ComposeMail)

		api.GET("/history", h.ListHistory)
	}
}

// Name identifies the server in a worker group
func (s *Server) Name() string {
	return "HTTPServer"
}

// Start listens in the background. Runs submitted through the console
// live on ctx, not on the request that started them.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("server already started")
	}

	s.handlers.baseCtx = ctx
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.stopped = make(chan struct{})

	s.logger.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))

	srv, stopped := s.httpServer, s.stopped
	go func() {
		defer close(stopped)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() {
	s.mu.Lock()
	srv, stopped := s.httpServer, s.stopped
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	<-stopped
	s.logger.Info("HTTP server stopped")
}

// Done is closed once a started server stops listening
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
