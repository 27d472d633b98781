package observe_test

import (
	"context"
	"log/slog"
	"reflect"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/realtalk/realtalk/internal/observe"
)

func TestLogger_EnrichedInsideSpan(t *testing.T) {
	t.Parallel()
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "operation")
	defer span.End()

	if observe.Logger(ctx) == slog.Default() {
		t.Error("logger inside a span carries no trace attributes")
	}
}

func TestLogger_DefaultOutsideSpan(t *testing.T) {
	t.Parallel()
	if observe.Logger(context.Background()) != slog.Default() {
		t.Error("logger outside a span is not the plain default logger")
	}
}

func TestStartSpan_PlacesSpanInContext(t *testing.T) {
	t.Parallel()
	ctx, span := observe.StartSpan(context.Background(), "pipeline.utterance")
	defer span.End()

	if span == nil {
		t.Fatal("StartSpan returned a nil span")
	}
	if got := trace.SpanFromContext(ctx); !reflect.DeepEqual(got, span) {
		t.Error("returned context does not carry the started span")
	}
}
