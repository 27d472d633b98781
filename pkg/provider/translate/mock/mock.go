// Package mock provides an in-memory implementation of [translate.Provider]
// for use in unit tests.
//
// Set the exported fields before use; inspect the recorded calls after.
// Safe for concurrent use.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/realtalk/realtalk/pkg/provider/translate"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ translate.Provider = (*Provider)(nil)

// Call records one Translate invocation.
type Call struct {
	Text   string
	Source types.Language
	Target types.Language
}

// Provider is a mock implementation of [translate.Provider].
type Provider struct {
	mu sync.Mutex

	// Result is the translated text returned when TranslateFn is nil.
	Result string

	// Err is returned by Translate when non-nil (and TranslateFn is nil).
	Err error

	// Delay is slept (context-aware) before returning.
	Delay time.Duration

	// TranslateFn, when set, fully controls the response per call.
	TranslateFn func(ctx context.Context, text string, source, target types.Language) (types.Translation, error)

	// Calls records every invocation in order.
	Calls []Call
}

// Translate implements [translate.Provider].
func (p *Provider) Translate(ctx context.Context, text string, source, target types.Language) (types.Translation, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Text: text, Source: source, Target: target})
	fn := p.TranslateFn
	result, err, delay := p.Result, p.Err, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.Translation{}, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, text, source, target)
	}
	if err != nil {
		return types.Translation{}, err
	}
	return types.Translation{Text: result, Source: source, Target: target}, nil
}

// CallCount returns how many times Translate was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
