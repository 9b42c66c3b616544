package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echo_log "github.com/labstack/gommon/log"
	"github.com/shirou/gopsutil/v3/mem"

	mw "github.com/agrisense/farm-advisor/internal/api/middleware"
	v1 "github.com/agrisense/farm-advisor/internal/api/v1"
	"github.com/agrisense/farm-advisor/internal/logger"
	"github.com/agrisense/farm-advisor/internal/observability"
)

// Server is the farm-advisor HTTP server. It owns the echo instance, the
// middleware stack and the /api/v1 controller.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	deps       v1.Dependencies
	metrics    *observability.Metrics
	modelNames func() []string
	version    string

	controller *v1.Controller

	mu        sync.Mutex
	listener  net.Listener
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDependencies sets the services behind the v1 controller.
func WithDependencies(deps v1.Dependencies) ServerOption {
	return func(s *Server) {
		s.deps = deps
	}
}

// WithMetrics enables HTTP metrics and the Prometheus endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithModelNames reports loaded models on /health.
func WithModelNames(names func() []string) ServerOption {
	return func(s *Server) {
		s.modelNames = names
	}
}

// WithVersion reports the build version on /health.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithLogger overrides the api module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates an HTTP server from config and options.
func New(config *Config, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.deps.MaxUploadBytes == 0 {
		s.deps.MaxUploadBytes = config.MaxUploadBytes
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	echoLogger := logger.NewEchoLoggerAdapter(s.log.Module("echo"))
	if !config.Debug {
		echoLogger.SetLevel(echo_log.WARN)
	}
	s.echo.Logger = echoLogger

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("metrics", s.metricsEnabled()),
		logger.Bool("debug", config.Debug))
	return s, nil
}

// setupMiddleware configures the echo middleware stack. Recover runs first.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLogger(s.log.Module("http")))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	securityConfig := mw.SecurityConfig{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowCredentials: true,
	}
	if s.config.SecureCookies {
		securityConfig.HSTSMaxAge = mw.HSTSMaxAge
	}
	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

func (s *Server) metricsEnabled() bool {
	return s.metrics != nil && s.config.MetricsEnabled
}

// setupRoutes registers /health, the metrics endpoint and the v1 API.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	if s.metricsEnabled() {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	controller, err := v1.New(s.echo, s.deps)
	if err != nil {
		return fmt.Errorf("failed to initialize API v1: %w", err)
	}
	s.controller = controller
	return nil
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version,omitempty"`
	Uptime        string   `json:"uptime"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	Models        []string `json:"models"`
	Memory        *Memory  `json:"memory,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// Memory summarizes host memory.
type Memory struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	resp := HealthResponse{
		Status:        "healthy",
		Version:       s.version,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Models:        []string{},
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if s.modelNames != nil {
		resp.Models = s.modelNames()
	}

	if vm, err := mem.VirtualMemoryWithContext(c.Request().Context()); err == nil {
		resp.Memory = &Memory{TotalBytes: vm.Total, UsedBytes: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		s.log.Debug("Host memory unavailable", logger.Error(err))
	}

	return c.JSON(http.StatusOK, resp)
}

// Start listens on the configured address and serves until Shutdown. It
// returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.echo.Listener = ln
	s.log.Info("Starting HTTP server", logger.String("address", ln.Addr().String()))

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, initiating graceful shutdown")
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("Error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("Server shutdown complete")
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
