package pipeline

import (
	"time"

	"github.com/realtalk/realtalk/pkg/types"
)

// Record is the per-utterance output of the pipeline. Records are emitted in
// strict sequence order: the record for utterance N always leaves before the
// record for N+1, regardless of which finished processing first.
//
// A failed utterance still produces a record — Err carries the classified
// failure and FailedStage names where it happened — so the output sequence
// never has gaps.
type Record struct {
	// Seq is the utterance's capture-order sequence number.
	Seq uint64

	// Start and End are the capture timestamps of the utterance.
	Start time.Duration
	End   time.Duration

	// Transcript is the recognition result. Zero when recognition failed.
	Transcript types.Transcript

	// Translation is the translation result. Zero when an earlier stage
	// failed or the transcript was empty.
	Translation types.Translation

	// Audio is the synthesized speech. Zero when an earlier stage failed or
	// the transcript was empty.
	Audio types.AudioClip

	// Err is the classified stage error, or nil on success.
	Err error

	// FailedStage names the stage that produced Err.
	FailedStage string

	// finalized is when the segmenter emitted the utterance; used for the
	// end-to-end latency metric at emission time.
	finalized time.Time
}

// Failed reports whether the utterance's processing failed.
func (r Record) Failed() bool {
	return r.Err != nil
}

// Empty reports whether recognition succeeded but produced no text (silence
// misclassified as speech, a breath, background chatter). Empty records skip
// translation and synthesis.
func (r Record) Empty() bool {
	return r.Err == nil && r.Transcript.Text == ""
}
