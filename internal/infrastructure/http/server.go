package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	handlers "github.com/hudsor01/tenant-flow-sub011/internal/adapter/handler/http"
	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	"github.com/hudsor01/tenant-flow-sub011/internal/middleware/auth"
	"github.com/hudsor01/tenant-flow-sub011/internal/middleware/rawbody"
	"github.com/hudsor01/tenant-flow-sub011/pkg/logger"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const adminBodyLimit = "64K"

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Handlers groups everything the router mounts. Admin may be nil.
type Handlers struct {
	Webhook *handlers.WebhookHandler
	Admin   *handlers.AdminHandler
	Health  HealthCheck
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	handlers Handlers
	registry *prometheus.Registry
}

// NewServer builds the router. registry receives the HTTP metrics and is
// served on /metrics together with the webhook metrics registered on it.
func NewServer(cfg *config.Config, log *zap.Logger, h Handlers, registry *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	logger.WithEchoLogger(e, log)

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: newRequestID,
	}))
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metrics.Namespace,
		Subsystem:  "http",
		Registerer: registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		handlers: h,
		registry: registry,
	}
	s.setupRoutes()
	return s
}

func newRequestID() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return id
}

// Echo exposes the router for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		if s.handlers.Health != nil {
			if err := s.handlers.Health(c.Request().Context()); err != nil {
				s.logger.Warn("Health check failed", zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status":  "unhealthy",
					"service": s.config.Service.Name,
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.registry,
	}))

	// Webhook routes read the raw body before anything else touches it
	bodyReader := rawbody.Middleware(s.config.Webhook.MaxBodyBytes)
	s.echo.POST(s.config.Webhook.Path, s.handlers.Webhook.Handle, bodyReader)
	if s.config.Webhook.Path != "/webhook" {
		s.echo.POST("/webhook", s.handlers.Webhook.Handle, bodyReader)
	}

	if s.handlers.Admin == nil || s.config.Admin.JWTSecret == "" {
		s.logger.Warn("Admin API disabled: no JWT secret configured")
		return
	}

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Admin.JWTSecret,
		Logger: s.logger,
		Roles:  auth.DefaultRoles,
	}

	// Internal operator routes
	internal := s.echo.Group("/api/v1/internal",
		middleware.BodyLimit(adminBodyLimit),
		auth.JWTMiddleware(jwtConfig),
	)
	internal.GET("/webhooks/failed", s.handlers.Admin.ListFailed)
	internal.GET("/webhooks/:eventId", s.handlers.Admin.GetEvent)
	internal.POST("/webhooks/:eventId/replay", s.handlers.Admin.Replay)
	internal.POST("/subscriptions/:subscriptionId/reconcile", s.handlers.Admin.Reconcile)
}
