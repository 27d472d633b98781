package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/realtalk/realtalk/internal/resilience"
)

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	t.Parallel()
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{Backoff: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			return nil
		})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RecoversAfterOneFailure(t *testing.T) {
	t.Parallel()
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{Backoff: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	t.Parallel()
	boom := errors.New("still broken")
	calls := 0
	err := resilience.Retry(context.Background(), resilience.RetryConfig{Attempts: 2, Backoff: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			return boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("Retry error = %v, want the last failure", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetry_NoRetryAfterCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("failed under cancellation")
	calls := 0
	err := resilience.Retry(ctx, resilience.RetryConfig{Backoff: time.Minute},
		func(ctx context.Context) error {
			calls++
			return boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("Retry error = %v, want the call's failure", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled work is never retried)", calls)
	}
}

func TestRetry_CancellationDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- resilience.Retry(ctx, resilience.RetryConfig{Backoff: time.Hour},
			func(ctx context.Context) error {
				calls++
				return errors.New("transient")
			})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Retry error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not return after cancellation mid-backoff")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
