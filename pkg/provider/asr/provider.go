// Package asr defines the Provider interface for speech recognition backends.
//
// An ASR provider wraps a recognition service (a local vosk-server, the
// OpenAI Whisper API, or similar) behind a single batch call: one finalized
// utterance in, one transcript out. Streaming partials are deliberately not
// part of the contract — the pipeline hands recognition complete utterances
// and only consumes the authoritative result.
//
// Implementations must be safe for concurrent use: the orchestrator calls
// Recognize from multiple worker goroutines for distinct utterances.
// Providers perform no internal retries; retry policy belongs to the caller.
package asr

import (
	"context"

	"github.com/realtalk/realtalk/pkg/audio"
	"github.com/realtalk/realtalk/pkg/types"
)

// Provider is the abstraction over any speech recognition backend.
type Provider interface {
	// Recognize transcribes one complete utterance in the given language.
	// The utterance's PCM is 16-bit little-endian mono at the frame sample
	// rate. Cancellation and deadlines arrive via ctx; the provider must
	// abort promptly when ctx is done.
	Recognize(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error)
}
