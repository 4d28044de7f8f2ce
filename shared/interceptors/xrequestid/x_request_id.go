package xrequestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

const (
	headerKey  = "x-request-id"
	HTTPHeader = "X-Request-ID"
)

func Server(
	ctx context.Context,
	request interface{},
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	requestID := ""

	if meta, found := metadata.FromIncomingContext(ctx); found {
		if values := meta.Get(headerKey); len(values) > 0 {
			requestID = values[0]
		}
	}

	return handler(withRequestID(ctx, requestID), request)
}

// HTTP carries the X-Request-ID header into the request context and echoes
// it on the response, generating one when the caller sent none.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := withRequestID(r.Context(), r.Header.Get(HTTPHeader))
		w.Header().Set(HTTPHeader, zapLogger.TraceIDFromContext(ctx))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func withRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		requestID = uuid.New().String()
	}

	return zapLogger.ContextWithTraceID(ctx, requestID)
}
