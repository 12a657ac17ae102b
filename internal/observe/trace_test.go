package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func sessionOf(attrs []attribute.KeyValue) (string, bool) {
	for _, kv := range attrs {
		if kv.Key == SessionAttr {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

// installTracer makes an in-memory tracer provider the global one until the
// test ends.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs points the default logger at a buffer until the test ends.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestWithSession(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "attached", id: "expert3", want: "expert3"},
		{name: "empty id leaves ctx alone", id: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := WithSession(context.Background(), tt.id)
			if got := SessionID(ctx); got != tt.want {
				t.Errorf("SessionID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithSession_TagsActiveSpan(t *testing.T) {
	t.Parallel()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "HTTP POST /chat/{session_type}")
	ctx = WithSession(ctx, "expert5")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got, _ := sessionOf(spans[0].Attributes); got != "expert5" {
		t.Errorf("span session.id = %q, want expert5", got)
	}
	if CorrelationID(ctx) != spans[0].SpanContext.TraceID().String() {
		t.Error("CorrelationID does not match the span trace id")
	}
}

func TestCorrelationID_NoSpan(t *testing.T) {
	t.Parallel()
	if got := CorrelationID(WithSession(context.Background(), "expert1")); got != "" {
		t.Errorf("CorrelationID = %q, want empty", got)
	}
}

// The tests below replace the global tracer provider or logger and so do not
// run in parallel.

func TestStartSpan_InheritsSession(t *testing.T) {
	exp := installTracer(t)

	ctx := WithSession(context.Background(), "expert2")
	_, child := StartSpan(ctx, "orchestrator.chat")
	child.End()
	_, bare := StartSpan(context.Background(), "lexicon.synonyms")
	bare.End()

	got := map[string]string{}
	for _, s := range exp.GetSpans() {
		id, ok := sessionOf(s.Attributes)
		if ok {
			got[s.Name] = id
		}
	}
	if got["orchestrator.chat"] != "expert2" {
		t.Errorf("orchestrator.chat session.id = %q, want expert2", got["orchestrator.chat"])
	}
	if _, ok := got["lexicon.synonyms"]; ok {
		t.Error("span started without a session carries session.id")
	}
}

func TestLogger_Attributes(t *testing.T) {
	installTracer(t)
	buf := captureLogs(t)

	tests := []struct {
		name    string
		ctx     func() context.Context
		want    []string
		notWant []string
	}{
		{
			name:    "background",
			ctx:     context.Background,
			notWant: []string{"trace_id=", "session="},
		},
		{
			name: "session only",
			ctx: func() context.Context {
				return WithSession(context.Background(), "expert4")
			},
			want:    []string{"session=expert4"},
			notWant: []string{"trace_id="},
		},
		{
			name: "span and session",
			ctx: func() context.Context {
				ctx, span := StartSpan(WithSession(context.Background(), "expert6"), "orchestrator.stream")
				span.End()
				return ctx
			},
			want: []string{"session=expert6", "trace_id=", "span_id="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			Logger(tt.ctx()).Info("turn completed")
			line := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("log %q missing %q", line, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(line, nw) {
					t.Errorf("log %q contains %q", line, nw)
				}
			}
		})
	}
}
