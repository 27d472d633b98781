// Package mock provides an in-memory implementation of [tts.Provider] for
// use in unit tests.
//
// Set the exported fields before use; inspect the recorded calls after.
// Safe for concurrent use.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/realtalk/realtalk/pkg/provider/tts"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Call records one Synthesize invocation.
type Call struct {
	Text     string
	Language types.Language
}

// Provider is a mock implementation of [tts.Provider].
type Provider struct {
	mu sync.Mutex

	// Result is returned by Synthesize when SynthesizeFn is nil. A zero
	// Result yields a short 16 kHz tone so end-to-end tests get playable
	// audio without configuring anything.
	Result types.AudioClip

	// Err is returned by Synthesize when non-nil (and SynthesizeFn is nil).
	Err error

	// Delay is slept (context-aware) before returning.
	Delay time.Duration

	// SynthesizeFn, when set, fully controls the response per call.
	SynthesizeFn func(ctx context.Context, text string, lang types.Language) (types.AudioClip, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(ctx context.Context, text string, lang types.Language) (types.AudioClip, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Text: text, Language: lang})
	fn := p.SynthesizeFn
	result, err, delay := p.Result, p.Err, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.AudioClip{}, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, text, lang)
	}
	if err != nil {
		return types.AudioClip{}, err
	}
	if len(result.PCM) == 0 {
		result = Tone()
	}
	return result, nil
}

// CallCount returns how many times Synthesize was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Tone returns a fixed 100 ms 16 kHz clip of a quiet square-ish tone.
func Tone() types.AudioClip {
	const (
		rate    = 16000
		samples = rate / 10
	)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(2000)
		if (i/20)%2 == 0 {
			v = -2000
		}
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(v >> 8)
	}
	return types.AudioClip{PCM: pcm, SampleRate: rate}
}
