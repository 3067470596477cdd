package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amrmuhaffez/muhaffez"

// Span and log attribute keys.
const (
	AttrSession = "muhaffez.session"
	AttrLine    = "muhaffez.line"
	AttrPath    = "muhaffez.locate.path"
)

type sessionKey struct{}

// WithSession returns a copy of ctx tagged with a recitation session id.
// Spans started and loggers derived from it carry the id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id stored by [WithSession], or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// StartSpan starts a span on the muhaffez tracer, tagging it with the
// session id from ctx. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := SessionID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(attribute.String(AttrSession, id)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// AnchorAttributes describes a locate outcome for a span.
func AnchorAttributes(line int, path string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLine, line),
		attribute.String(AttrPath, path),
	}
}

// CorrelationID returns the trace ID of the span in ctx, or "" when there is
// none.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the session id and the current
// trace ids attached, when ctx has them.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := SessionID(ctx); id != "" {
		l = l.With(slog.String("session_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
