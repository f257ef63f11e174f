package logger

import (
	"context"

	"go.uber.org/zap"
)

// ctxKey is the context key under which the logger is stored.
type ctxKey struct{}

// ToContext returns a new context carrying the provided logger.
func ToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext extracts the logger from the context.
// If the context carries no logger, the global logger is returned.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok {
		return l
	}

	return global
}

// WithName returns a context whose logger is named after the given component.
// Nested calls produce dot-separated names.
func WithName(ctx context.Context, name string) context.Context {
	return ToContext(ctx, FromContext(ctx).Named(name))
}

// WithKV returns a context whose logger attaches the given key-value pair
// to every message.
func WithKV(ctx context.Context, key string, value any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(key, value))
}

// WithFields returns a context whose logger attaches the given structured
// fields to every message.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return ToContext(ctx, FromContext(ctx).Desugar().With(fields...).Sugar())
}
