package pipeline

import (
	"context"
	"errors"

	"github.com/realtalk/realtalk/internal/resilience"
)

// Stage names used in records, logs, and metric attributes.
const (
	StageRecognize  = "recognize"
	StageTranslate  = "translate"
	StageSynthesize = "synthesize"
)

var (
	// ErrStageTimeout marks a stage call that exceeded its per-attempt
	// deadline.
	ErrStageTimeout = errors.New("pipeline: stage timed out")

	// ErrStageUnavailable marks a stage whose circuit breaker is open. The
	// call failed fast without reaching the provider.
	ErrStageUnavailable = errors.New("pipeline: stage unavailable")

	// ErrPipelineFatal marks resource exhaustion in the dispatch path: the
	// utterance queue stayed full past the stall timeout, meaning the worker
	// pool is wedged rather than merely behind. Unlike stage errors it halts
	// the whole pipeline.
	ErrPipelineFatal = errors.New("pipeline: dispatch queue stalled")

	// ErrClosed is returned by Run when the orchestrator has already been
	// shut down.
	ErrClosed = errors.New("pipeline: orchestrator closed")
)

// classify maps raw stage-call errors onto the pipeline's error taxonomy so
// records and metrics carry uniform failure reasons. Cancellation of the
// parent context passes through untouched.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrStageTimeout
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ErrStageUnavailable
	default:
		return err
	}
}

// failureReason returns the metric attribute value for a classified error.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrStageTimeout):
		return "timeout"
	case errors.Is(err, ErrStageUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
