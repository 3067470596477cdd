package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tracetest.NewInMemoryExporter()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	seen := make(map[string]bool)
	for range 50 {
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		cid := CorrelationID(ctx)
		span.End()
		if len(cid) != 32 {
			t.Fatalf("CorrelationID = %q, want 32 hex chars", cid)
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation ID %s", cid)
		}
		seen[cid] = true
	}
}

func TestStartSpan(t *testing.T) {
	_, _, exp := testSetup(t)

	_, span := StartSpan(context.Background(), "recitation.fallback")
	span.SetAttributes(AnchorAttributes(11, PathScan)...)
	span.End()
	_, span = StartSpan(WithSession(context.Background(), "s-1"), "recitation.fallback")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 2 || spans[0].Name != "recitation.fallback" {
		t.Fatalf("spans = %v, want two named recitation.fallback", spans)
	}
	attrs := func(i int) map[string]string {
		out := make(map[string]string)
		for _, kv := range spans[i].Attributes {
			out[string(kv.Key)] = kv.Value.Emit()
		}
		return out
	}
	first := attrs(0)
	if first[AttrLine] != "11" || first[AttrPath] != PathScan {
		t.Errorf("anchor attributes = %v", first)
	}
	if _, ok := first[AttrSession]; ok {
		t.Errorf("span without session carries %s", AttrSession)
	}
	if got := attrs(1)[AttrSession]; got != "s-1" {
		t.Errorf("%s = %q, want s-1", AttrSession, got)
	}
}

func TestSessionID(t *testing.T) {
	t.Parallel()

	if got := SessionID(context.Background()); got != "" {
		t.Errorf("SessionID(background) = %q, want empty", got)
	}
	if got := SessionID(WithSession(context.Background(), "abc")); got != "abc" {
		t.Errorf("SessionID = %q, want abc", got)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(context.Background()).Info("no span")
	if out := buf.String(); strings.Contains(out, "trace_id") || strings.Contains(out, "session_id") {
		t.Errorf("bare log carries ids: %s", out)
	}
	buf.Reset()

	Logger(WithSession(context.Background(), "s-7")).Info("session")
	if !strings.Contains(buf.String(), "session_id=s-7") {
		t.Errorf("log output missing session_id: %s", buf.String())
	}
	buf.Reset()

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	Logger(ctx).Info("with span")
	for _, key := range []string{"trace_id=", "span_id="} {
		if !strings.Contains(buf.String(), key) {
			t.Errorf("log output missing %s: %s", key, buf.String())
		}
	}
}
