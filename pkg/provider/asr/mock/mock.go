// Package mock provides an in-memory implementation of [asr.Provider] for
// use in unit tests.
//
// Set the exported fields before use; inspect the recorded calls after.
// Safe for concurrent use.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/realtalk/realtalk/pkg/audio"
	"github.com/realtalk/realtalk/pkg/provider/asr"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ asr.Provider = (*Provider)(nil)

// Call records one Recognize invocation.
type Call struct {
	Seq      uint64
	Samples  int
	Language types.Language
}

// Provider is a mock implementation of [asr.Provider].
type Provider struct {
	mu sync.Mutex

	// Result is returned by Recognize when RecognizeFn is nil.
	Result types.Transcript

	// Err is returned by Recognize when non-nil (and RecognizeFn is nil).
	Err error

	// Delay is slept (context-aware) before returning, to simulate
	// recognition latency.
	Delay time.Duration

	// RecognizeFn, when set, fully controls the response per call. Useful
	// for per-utterance behavior such as failing only one sequence number.
	RecognizeFn func(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Recognize implements [asr.Provider].
func (p *Provider) Recognize(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Seq: utt.Seq, Samples: len(utt.PCM()) / 2, Language: lang})
	fn := p.RecognizeFn
	result, err, delay := p.Result, p.Err, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.Transcript{}, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, utt, lang)
	}
	if err != nil {
		return types.Transcript{}, err
	}
	if result.Language == "" {
		result.Language = lang
	}
	result.Duration = utt.Duration()
	return result, nil
}

// CallCount returns how many times Recognize was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
