package closer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Logger interface {
	Info(ctx context.Context, msg string, fields ...zap.Field)
	Error(ctx context.Context, msg string, fields ...zap.Field)
}

// Closer releases resources in reverse registration order. It is used by the
// one-shot CLI commands, which run outside the fx lifecycle.
type Closer struct {
	mutex  sync.Mutex
	once   sync.Once
	funcs  []namedFunc
	logger Logger
}

type namedFunc struct {
	name     string
	function func(context.Context) error
}

type NoopLogger struct{}

func (n *NoopLogger) Info(ctx context.Context, message string, fields ...zap.Field)  {}
func (n *NoopLogger) Error(ctx context.Context, message string, fields ...zap.Field) {}

func New(logger Logger) *Closer {
	if logger == nil {
		logger = &NoopLogger{}
	}

	return &Closer{logger: logger}
}

func (closer *Closer) AddNamed(name string, function func(context.Context) error) {
	closer.mutex.Lock()
	defer closer.mutex.Unlock()

	closer.funcs = append(closer.funcs, namedFunc{name: name, function: function})
}

// CloseAll runs every registered function once, even after failures, and
// joins their errors. A done context stops the remaining functions.
func (closer *Closer) CloseAll(ctx context.Context) error {
	var result []error

	closer.once.Do(func() {
		closer.mutex.Lock()
		funcs := closer.funcs
		closer.funcs = nil
		closer.mutex.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				closer.logger.Error(ctx, "shutdown interrupted",
					zap.Int("remaining", i+1),
					zap.Error(ctx.Err()))
				result = append(result, ctx.Err())
				return
			}

			start := time.Now()
			err := closer.safeRun(ctx, funcs[i].function)
			if err != nil {
				closer.logger.Error(ctx, fmt.Sprintf("failed to close %s", funcs[i].name),
					zap.Duration("took", time.Since(start)),
					zap.Error(err))
				result = append(result, fmt.Errorf("%s: %w", funcs[i].name, err))
				continue
			}

			closer.logger.Info(ctx, fmt.Sprintf("%s closed", funcs[i].name),
				zap.Duration("took", time.Since(start)))
		}
	})

	return errors.Join(result...)
}

func (closer *Closer) safeRun(ctx context.Context, function func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in close function: %v", r)
		}
	}()

	return function(ctx)
}
