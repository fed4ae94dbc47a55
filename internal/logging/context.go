// internal/logging/context.go
package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
)

const maxRequestIDLen = 128

var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ContextFields returns the correlation fields every record carries: the
// active span's ids, and the request id when the middleware stored one.
func ContextFields(ctx context.Context) []zap.Field {
	fields := spanFields(trace.SpanContextFromContext(ctx))
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

func spanFields(sc trace.SpanContext) []zap.Field {
	if !sc.IsValid() {
		return make([]zap.Field, 0, 1)
	}
	fields := []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
	if sc.IsSampled() {
		fields = append(fields, zap.Bool("trace_sampled", true))
	}
	return fields
}

// ValidRequestID accepts UUIDs and typical proxy ids up to 128 bytes.
func ValidRequestID(id string) bool {
	return id != "" && len(id) <= maxRequestIDLen && requestIDPattern.MatchString(id)
}

// WithRequestID stores id for log correlation. Client-supplied ids that fail
// ValidRequestID are dropped and ctx comes back unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !ValidRequestID(id) {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext falls back to a nop Logger.
func FromContext(ctx context.Context) *Logger {
	if l, _ := ctx.Value(loggerKey).(*Logger); l != nil {
		return l
	}
	return NewNop()
}
