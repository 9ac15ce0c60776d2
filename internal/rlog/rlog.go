// Package rlog provides the context-scoped structured logger used
// throughout robocurse, modeled on the module-keyed logger factory
// pattern (Module(name) func(ctx) Logger) used by the teacher's
// repo/logging package.
package rlog

import (
	"context"

	"go.uber.org/zap"
)

// Logger is the structured logging surface every component depends on.
// Levels follow spec.md §6: Debug, Info, Warning, Error.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a structured key-value pair attached to a log line.
type Field = zap.Field

// String, Int, Err, etc. re-export zap's field constructors so callers
// never import zap directly.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Duration = zap.Duration
	Err      = zap.Error
	Bool     = zap.Bool
	Any      = zap.Any
)

type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

type contextKeyType int

const contextKey contextKeyType = 0

// WithLogger attaches a *zap.Logger to ctx. Every Module-derived Logger
// obtained from that context uses it; contexts without one fall back to
// a no-op logger so unit tests never need to wire logging explicitly.
func WithLogger(ctx context.Context, z *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey, z)
}

func fromContext(ctx context.Context) *zap.Logger {
	if z, ok := ctx.Value(contextKey).(*zap.Logger); ok && z != nil {
		return z
	}

	return zap.NewNop()
}

// Module returns a per-component logger factory, exactly like the
// teacher's `var log = logging.Module("kopia/cli")`. Component is
// attached as a structured field on every line so a single JSONL sink
// can be filtered by component after the fact.
func Module(component string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		return &zapLogger{z: fromContext(ctx).With(zap.String("component", component))}
	}
}
