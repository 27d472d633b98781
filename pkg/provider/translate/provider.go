// Package translate defines the Provider interface for machine translation
// backends.
//
// Implementations must be safe for concurrent use and must support both
// configured language directions (hi→en and en→hi for the default pair).
// Providers perform no internal retries; retry policy belongs to the caller.
package translate

import (
	"context"

	"github.com/realtalk/realtalk/pkg/types"
)

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate converts text from source to target. Cancellation and
	// deadlines arrive via ctx.
	Translate(ctx context.Context, text string, source, target types.Language) (types.Translation, error)
}
