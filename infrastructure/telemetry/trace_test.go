package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracer_Start(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracerFromProvider(tp)

	ctx, span := tracer.Start(context.Background(), SpanSelectTool, attribute.String("tool.name", "T1"))
	_, hook := tracer.Start(ctx, SpanHook, attribute.String("hook.name", "pickup"))
	hook.End(errors.New("probe missed"))
	span.AddEvent("offset.applied")
	span.End(nil)

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}

	hookSpan, selectSpan := ended[0], ended[1]
	if hookSpan.Name() != SpanHook || selectSpan.Name() != SpanSelectTool {
		t.Fatalf("span names = %s, %s", hookSpan.Name(), selectSpan.Name())
	}
	if hookSpan.Parent().SpanID() != selectSpan.SpanContext().SpanID() {
		t.Error("hook span should be a child of the select span")
	}
	if hookSpan.Status().Code != codes.Error {
		t.Errorf("hook status = %v, want Error", hookSpan.Status().Code)
	}
	if selectSpan.Status().Code != codes.Ok {
		t.Errorf("select status = %v, want Ok", selectSpan.Status().Code)
	}
	if len(selectSpan.Events()) != 1 || selectSpan.Events()[0].Name != "offset.applied" {
		t.Errorf("select events = %v", selectSpan.Events())
	}
}

func TestTracer_NilAndNoop(t *testing.T) {
	t.Parallel()

	var nilTracer *Tracer
	_, span := nilTracer.Start(context.Background(), SpanInitialize)
	span.End(errors.New("ignored"))

	_, span = NewNoopTracer().Start(context.Background(), SpanInitialize)
	span.SetAttributes(attribute.Int("tool.number", 3))
	span.End(nil)
}

func TestNewProvider_Stdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), ProviderConfig{
		ServiceName: "toolchanger",
		Exporter:    ExporterStdout,
		SampleRate:  1,
		Output:      &buf,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	_, span := p.Tracer().Start(context.Background(), SpanInitialize)
	span.End(nil)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), SpanInitialize) {
		t.Errorf("stdout exporter output missing span name: %q", buf.String())
	}
}

func TestNewProvider_None(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(context.Background(), ProviderConfig{Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Tracer() == nil {
		t.Error("Tracer() returned nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(context.Background(), ProviderConfig{Exporter: "zipkin"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}
