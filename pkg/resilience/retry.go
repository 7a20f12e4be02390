package resilience

import (
	"context"
	"time"
)

// RetryPolicy defines retry behavior for transient failures: how many
// attempts to make, the exponential backoff window between them, and a
// predicate selecting which errors are worth retrying.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Retryable reports whether an error is transient. A nil predicate
	// retries every error.
	Retryable func(error) bool
}

func NewRetryPolicy(maxAttempts int, initial, max time.Duration, retryable func(error) bool) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max < initial {
		max = initial
	}
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     max,
		Retryable:      retryable,
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts with a
// doubling backoff capped at MaxBackoff. Errors the predicate rejects are
// returned immediately. Context cancellation aborts the wait.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	backoff := p.InitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}
