package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		zapLogger.Error(context.Background(), "command failed", zap.Error(err))
		os.Exit(1)
	}
}
