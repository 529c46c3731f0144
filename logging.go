package mediagrab

import (
	"context"

	"go.uber.org/zap"
)

type loggerContextKey struct{}

// WithLogger attaches a logger to the context for components deeper in the
// call tree to pick up.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// Logger returns the context's logger, or the process-global one.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.L()
}
