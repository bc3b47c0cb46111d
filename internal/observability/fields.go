package observability

import (
	"context"

	"go.uber.org/zap"
)

// Logger is the logging surface used by core packages. Both the gofulmen
// loggers above and *zap.Logger satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zap.NewNop()
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// With returns a logger that adds fields to every entry.
func With(l Logger, fields ...zap.Field) Logger {
	l = OrNop(l)
	if len(fields) == 0 {
		return l
	}
	if zl, ok := l.(*zap.Logger); ok {
		return zl.With(fields...)
	}
	if fl, ok := l.(fieldLogger); ok {
		return fieldLogger{next: fl.next, fields: append(append([]zap.Field{}, fl.fields...), fields...)}
	}
	return fieldLogger{next: l, fields: fields}
}

type fieldLogger struct {
	next   Logger
	fields []zap.Field
}

func (f fieldLogger) merge(extra []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(f.fields)+len(extra))
	out = append(out, f.fields...)
	return append(out, extra...)
}

func (f fieldLogger) Debug(msg string, fields ...zap.Field) { f.next.Debug(msg, f.merge(fields)...) }
func (f fieldLogger) Info(msg string, fields ...zap.Field)  { f.next.Info(msg, f.merge(fields)...) }
func (f fieldLogger) Warn(msg string, fields ...zap.Field)  { f.next.Warn(msg, f.merge(fields)...) }
func (f fieldLogger) Error(msg string, fields ...zap.Field) { f.next.Error(msg, f.merge(fields)...) }

type contextFieldsKey struct{}

// ContextWith returns a context whose loggers, obtained through FromContext,
// add fields to every entry. Fields accumulate across calls.
func ContextWith(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	existing := ContextFields(ctx)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, contextFieldsKey{}, merged)
}

// ContextFields returns the fields attached with ContextWith.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(contextFieldsKey{}).([]zap.Field)
	return fields
}

// FromContext returns l carrying the request or record fields of ctx.
func FromContext(ctx context.Context, l Logger) Logger {
	return With(l, ContextFields(ctx)...)
}
