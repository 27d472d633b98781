package observe_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/realtalk/realtalk/internal/observe"
)

func TestNewMetrics_CreatesAllInstruments(t *testing.T) {
	t.Parallel()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.StageDuration == nil || m.UtteranceDuration == nil {
		t.Error("histogram instruments are nil")
	}
	if m.FrameDrops == nil || m.FrameFaults == nil || m.RejectedSegments == nil ||
		m.ForcedSegments == nil || m.Utterances == nil || m.StageFailures == nil {
		t.Error("counter instruments are nil")
	}
	if m.InFlight == nil {
		t.Error("in-flight gauge is nil")
	}

	// Recording on the no-op provider must not panic.
	ctx := context.Background()
	m.RecordStageDuration(ctx, "recognize", 0.042)
	m.RecordStageFailure(ctx, "translate", "timeout")
	m.FrameDrops.Add(ctx, 3)
	m.InFlight.Add(ctx, 1)
	m.InFlight.Add(ctx, -1)
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	t.Parallel()
	a := observe.DefaultMetrics()
	b := observe.DefaultMetrics()
	if a == nil || a != b {
		t.Error("DefaultMetrics is not a stable singleton")
	}
}
