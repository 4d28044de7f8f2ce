package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nastyazhadan/perp-trader/shared/infra/health"
	logInterceptor "github.com/nastyazhadan/perp-trader/shared/interceptors/logger"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/shared/interceptors/recovery"
	"github.com/nastyazhadan/perp-trader/shared/interceptors/validate"
	"github.com/nastyazhadan/perp-trader/shared/interceptors/xrequestid"
)

// NewServer builds the gRPC server exposing health and reflection.
func NewServer(healthServer *health.Server) (*grpc.Server, error) {
	validator, err := validate.ProtovalidateUnary()
	if err != nil {
		return nil, fmt.Errorf("validate.ProtovalidateUnary: %w", err)
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			xrequestid.Server,
			logInterceptor.LoggerInterceptor(),
			recovery.Unary,
			validator,
		),
	)

	reflection.Register(server)
	health.RegisterService(server, healthServer)

	return server, nil
}

// Serve blocks until the listener fails or ctx is cancelled.
func Serve(ctx context.Context, server *grpc.Server, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info(ctx, "gRPC server listening", zap.String("address", listener.Addr().String()))
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc.Serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		server.GracefulStop()
		return nil
	}
}
