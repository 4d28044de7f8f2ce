package logger

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

// LoggerInterceptor logs finished gRPC calls through the zap wrapper.
func LoggerInterceptor() grpc.UnaryServerInterceptor {
	return logging.UnaryServerInterceptor(interceptorLogger(),
		logging.WithLogOnEvents(logging.FinishCall),
	)
}

func interceptorLogger() logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, level logging.Level, message string, fields ...any) {
		zapFields := make([]zap.Field, 0, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			zapFields = append(zapFields, zap.Any(fmt.Sprint(fields[i]), fields[i+1]))
		}

		switch level {
		case logging.LevelDebug:
			zapLogger.Debug(ctx, message, zapFields...)
		case logging.LevelWarn:
			zapLogger.Warn(ctx, message, zapFields...)
		case logging.LevelError:
			zapLogger.Error(ctx, message, zapFields...)
		default:
			zapLogger.Info(ctx, message, zapFields...)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTP logs one line per finished request.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("took", time.Since(started)),
		}
		if recorder.status >= http.StatusInternalServerError {
			zapLogger.Error(r.Context(), "finished HTTP request", fields...)
			return
		}
		zapLogger.Debug(r.Context(), "finished HTTP request", fields...)
	})
}
