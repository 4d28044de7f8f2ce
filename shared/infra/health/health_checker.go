package health

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Server answers SERVING only while every check passes.
type Server struct {
	grpc_health_v1.UnimplementedHealthServer

	checks map[string]Check
}

func NewServer(checks map[string]Check) *Server {
	return &Server{checks: checks}
}

func (s *Server) Check(
	ctx context.Context,
	request *grpc_health_v1.HealthCheckRequest,
) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{
		Status: s.status(ctx),
	}, nil
}

func (s *Server) Watch(
	request *grpc_health_v1.HealthCheckRequest,
	stream grpc_health_v1.Health_WatchServer) error {
	return stream.Send(&grpc_health_v1.HealthCheckResponse{
		Status: s.status(stream.Context()),
	})
}

// Failing returns the names of failing checks with their errors.
func (s *Server) Failing(ctx context.Context) map[string]string {
	failing := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failing[name] = err.Error()
		}
	}
	return failing
}

func (s *Server) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	failing := s.Failing(ctx)
	if len(failing) == 0 {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}

	zapLogger.Warn(ctx, "health check failing", zap.Any("checks", failing))
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

func RegisterService(server *grpc.Server, health *Server) {
	grpc_health_v1.RegisterHealthServer(server, health)
}
