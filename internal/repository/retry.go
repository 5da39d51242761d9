package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/area-reservation/internal/model"
)

// RetryPolicy bounds every storage call: each attempt runs under Timeout
// and transient failures are retried up to Attempts times with doubling
// backoff starting at BaseDelay.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Timeout   time.Duration
	// OnRetry is called before each retry with the operation name.
	OnRetry func(op string)
}

// DefaultRetryPolicy is three attempts, 50ms initial backoff, 5s per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, Timeout: 5 * time.Second}
}

// run executes fn until it succeeds, fails permanently, or the attempts
// are exhausted.  Exhaustion is reported as model.ErrStorageUnavailable.
func (p RetryPolicy) run(ctx context.Context, op string, transient func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.BaseDelay
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if p.OnRetry != nil {
				p.OnRetry(op)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !transient(err) {
			return err
		}
		last = err
	}
	return fmt.Errorf("%s: %w: %v", op, model.ErrStorageUnavailable, last)
}
