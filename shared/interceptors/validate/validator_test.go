package validate

import (
	"context"
	"errors"
	"testing"

	"buf.build/go/protovalidate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

func TestUnary(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	tests := []struct {
		name          string
		request       interface{}
		validate      validateFunc
		expectedCode  codes.Code
		expectHandler bool
	}{
		{
			name:          "валидное сообщение",
			request:       &grpc_health_v1.HealthCheckRequest{},
			validate:      func(proto.Message) error { return nil },
			expectedCode:  codes.OK,
			expectHandler: true,
		},
		{
			name:          "не proto-запрос",
			request:       "plain",
			validate:      func(proto.Message) error { return errors.New("must not be called") },
			expectedCode:  codes.OK,
			expectHandler: true,
		},
		{
			name:         "нарушение правил",
			request:      &grpc_health_v1.HealthCheckRequest{},
			validate:     func(proto.Message) error { return &protovalidate.ValidationError{} },
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "валидатор сломан",
			request:      &grpc_health_v1.HealthCheckRequest{},
			validate:     func(proto.Message) error { return errors.New("compilation failed") },
			expectedCode: codes.Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := func(ctx context.Context, request interface{}) (interface{}, error) {
				called = true
				return "ok", nil
			}

			response, err := unary(tt.validate)(context.Background(), tt.request, info, handler)

			assert.Equal(t, tt.expectHandler, called)
			if tt.expectedCode == codes.OK {
				require.NoError(t, err)
				assert.Equal(t, "ok", response)
				return
			}
			assert.Equal(t, tt.expectedCode, status.Code(err))
		})
	}
}

func TestProtovalidateUnary(t *testing.T) {
	interceptor, err := ProtovalidateUnary()
	require.NoError(t, err)

	_, err = interceptor(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "trader"},
		&grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, request interface{}) (interface{}, error) { return nil, nil })
	assert.NoError(t, err)
}
