package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/realtalk/realtalk/internal/resilience"
)

// stage wraps one provider call site with the per-attempt timeout, the
// optional circuit breaker, and error classification. Retry policy lives in
// the orchestrator, not here — a stage runs exactly one attempt.
type stage struct {
	name    string
	timeout time.Duration
	breaker *resilience.CircuitBreaker
}

func newStage(name string, timeout time.Duration, withBreaker bool) *stage {
	s := &stage{name: name, timeout: timeout}
	if withBreaker {
		s.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: name,
		})
	}
	return s
}

// run executes fn under the stage's deadline and breaker. The returned error
// is classified onto the pipeline taxonomy and wrapped with the stage name.
func (s *stage) run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		sctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(sctx)
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(attempt)
	} else {
		err = attempt()
	}

	if err = classify(err); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
