package validate

import (
	"context"
	"errors"
	"fmt"

	"buf.build/go/protovalidate"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

type validateFunc func(message proto.Message) error

// ProtovalidateUnary rejects proto requests that break their protovalidate
// rules. Other requests pass through untouched.
func ProtovalidateUnary() (grpc.UnaryServerInterceptor, error) {
	validator, err := protovalidate.New()
	if err != nil {
		return nil, fmt.Errorf("protovalidate.New: %w", err)
	}

	return unary(func(message proto.Message) error {
		return validator.Validate(message)
	}), nil
}

func unary(validate validateFunc) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		request interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		message, found := request.(proto.Message)
		if !found {
			return handler(ctx, request)
		}

		err := validate(message)
		if err == nil {
			return handler(ctx, request)
		}

		var validationErr *protovalidate.ValidationError
		if errors.As(err, &validationErr) {
			zapLogger.Warn(ctx, "request failed validation",
				zap.String("method", info.FullMethod),
				zap.Int("violations", len(validationErr.Violations)))
			return nil, status.Error(codes.InvalidArgument, validationErr.Error())
		}

		zapLogger.Error(ctx, "request validation could not run",
			zap.String("method", info.FullMethod),
			zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
}
