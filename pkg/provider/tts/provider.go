// Package tts defines the Provider interface for speech synthesis backends.
//
// The contract is batch, not streaming: the pipeline synthesizes one
// translated utterance at a time and reorders whole clips, so a single
// call returning a complete [types.AudioClip] keeps the adapter surface
// minimal. Implementations must be safe for concurrent use and perform no
// internal retries.
package tts

import (
	"context"

	"github.com/realtalk/realtalk/pkg/types"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text in the given language as a mono PCM clip.
	// Cancellation and deadlines arrive via ctx.
	Synthesize(ctx context.Context, text string, lang types.Language) (types.AudioClip, error)
}
