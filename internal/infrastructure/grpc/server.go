package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	"github.com/hudsor01/tenant-flow-sub011/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// WebhookServiceName is the health service name probes use for the webhook pipeline
const WebhookServiceName = "billing.webhook"

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Server exposes the standard gRPC health protocol so orchestrators can
// probe the billing process without going through the public HTTP edge.
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server
	check    HealthCheck
	listener net.Listener
}

func NewServer(cfg *config.Config, log *zap.Logger, check HealthCheck) *Server {
	s := &Server{
		config: cfg,
		logger: log,
		health: health.NewServer(),
		check:  check,
	}

	s.server = grpc.NewServer(
		grpc.UnaryInterceptor(logger.NewGrpcUnaryServerInterceptor(log)),
		grpc.StreamInterceptor(logger.NewGrpcStreamServerInterceptor(log)),
	)
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	s.SetServing(true)
	return s
}

// SetServing flips both the overall and the webhook service status
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(WebhookServiceName, status)
}

// Refresh runs the health check once and publishes the result
func (s *Server) Refresh(ctx context.Context) {
	if s.check == nil {
		return
	}
	if err := s.check(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		s.SetServing(false)
		return
	}
	s.SetServing(true)
}

// Watch refreshes the health status every interval until ctx is done
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve accepts connections on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.listener = lis
	return s.server.Serve(lis)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.GRPC.Host, s.config.Server.GRPC.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Starting gRPC server", zap.String("address", addr))
	return s.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("gRPC server forced to stop")
		s.server.Stop()
		return ctx.Err()
	case <-stopped:
		return nil
	}
}
