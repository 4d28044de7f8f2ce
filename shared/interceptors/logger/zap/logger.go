package zap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	TraceIDKey   contextKey = "x-request-id"
	UserIDKey    contextKey = "user_id"
	SymbolKey    contextKey = "symbol"
	OrderHashKey contextKey = "order_hash"
)

var (
	globalLogger *logger
	initOnce     sync.Once
	dynamicLevel zap.AtomicLevel
)

type logger struct {
	zapLogger *zap.Logger
}

// Init builds the global logger once. Later calls only validate the level.
func Init(levelStr string, asJSON bool) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}

	initOnce.Do(func() {
		dynamicLevel = zap.NewAtomicLevelAt(level)

		encoderCfg := buildEncoderConfig()

		var encoder zapcore.Encoder
		if asJSON {
			encoder = zapcore.NewJSONEncoder(encoderCfg)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderCfg)
		}

		core := zapcore.NewCore(
			encoder,
			zapcore.AddSync(os.Stdout),
			dynamicLevel,
		)

		zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
		globalLogger = &logger{zapLogger: zapLogger}
	})

	return nil
}

func buildEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func SetLevel(levelStr string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		return err
	}
	if dynamicLevel == (zap.AtomicLevel{}) {
		return nil
	}
	dynamicLevel.SetLevel(level)
	return nil
}

func SetNopLogger() {
	globalLogger = &logger{zapLogger: zap.NewNop()}
}

// SetCore replaces the global logger, e.g. with an observer core in tests.
func SetCore(core zapcore.Core) {
	globalLogger = &logger{zapLogger: zap.New(core)}
}

func Sync() error {
	if globalLogger != nil {
		return globalLogger.zapLogger.Sync()
	}
	return nil
}

// Logger returns the global logger, or a no-op one before Init.
func Logger() *logger {
	if globalLogger == nil {
		return &logger{zapLogger: zap.NewNop()}
	}
	return globalLogger
}

func With(fields ...zap.Field) *logger {
	if globalLogger == nil {
		return &logger{zapLogger: zap.NewNop()}
	}
	return &logger{zapLogger: globalLogger.zapLogger.With(fields...)}
}

func WithContext(ctx context.Context) *logger {
	if globalLogger == nil {
		return &logger{zapLogger: zap.NewNop()}
	}
	return &logger{zapLogger: globalLogger.zapLogger.With(fieldsFromContext(ctx)...)}
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if value, found := ctx.Value(TraceIDKey).(string); found {
		return value
	}
	return ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func ContextWithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, SymbolKey, symbol)
}

func ContextWithOrderHash(ctx context.Context, hash string) context.Context {
	return context.WithValue(ctx, OrderHashKey, hash)
}

func Debug(ctx context.Context, message string, fields ...zap.Field) {
	Logger().log(ctx, zapcore.DebugLevel, message, fields)
}

func Info(ctx context.Context, message string, fields ...zap.Field) {
	Logger().log(ctx, zapcore.InfoLevel, message, fields)
}

func Warn(ctx context.Context, message string, fields ...zap.Field) {
	Logger().log(ctx, zapcore.WarnLevel, message, fields)
}

func Error(ctx context.Context, message string, fields ...zap.Field) {
	Logger().log(ctx, zapcore.ErrorLevel, message, fields)
}

func Fatal(ctx context.Context, message string, fields ...zap.Field) {
	Logger().log(ctx, zapcore.FatalLevel, message, fields)
}

func (l *logger) Debug(ctx context.Context, message string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, message, fields)
}

func (l *logger) Info(ctx context.Context, message string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, message, fields)
}

func (l *logger) Warn(ctx context.Context, message string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, message, fields)
}

func (l *logger) Error(ctx context.Context, message string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, message, fields)
}

func (l *logger) Fatal(ctx context.Context, message string, fields ...zap.Field) {
	l.log(ctx, zapcore.FatalLevel, message, fields)
}

// log skips the context lookup when the level is disabled.
func (l *logger) log(ctx context.Context, level zapcore.Level, message string, fields []zap.Field) {
	entry := l.zapLogger.Check(level, message)
	if entry == nil {
		return
	}
	entry.Write(append(fieldsFromContext(ctx), fields...)...)
}

// fieldsFromContext adds the request-scoped values and, when a span is
// active, its otel trace and span ids.
func fieldsFromContext(ctx context.Context) []zap.Field {
	var fields []zap.Field

	for _, key := range []contextKey{TraceIDKey, UserIDKey, SymbolKey, OrderHashKey} {
		if value, found := ctx.Value(key).(string); found && value != "" {
			fields = append(fields, zap.String(string(key), value))
		}
	}

	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		fields = append(fields,
			zap.String("trace_id", span.TraceID().String()),
			zap.String("span_id", span.SpanID().String()),
		)
	}

	return fields
}

func parseLevel(levelString string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelString)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", levelString)
	}
}
