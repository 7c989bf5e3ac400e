package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy decides whether and when a failed call is retried.
type Policy struct {
	// Delays[i] is the wait before attempt i+2; the last delay repeats.
	Delays      []time.Duration
	MaxAttempts int
	Retryable   func(error) bool
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NoRetry fails on the first error.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// OverloadPolicy retries only overloaded responses, waiting 5, 10, 20, 30, 40, 50
// and 60 seconds between the eight attempts. Every other error fails at once.
func OverloadPolicy() Policy {
	return Policy{
		Delays: []time.Duration{
			5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second,
			40 * time.Second, 50 * time.Second, 60 * time.Second,
		},
		MaxAttempts: 8,
		Retryable:   IsOverloaded,
	}
}

// IsOverloaded reports whether err is a transient overload.
func IsOverloaded(err error) bool {
	return errors.Is(err, ErrOverloaded)
}

// ExhaustedError wraps the last error once every attempt was used.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts
// run out. onRetry, when set, is called before each wait. It returns the number
// of attempts made.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, onRetry func(attempt int, wait time.Duration, err error)) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if err = fn(ctx); err == nil {
			return attempt, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return attempt, err
		}
		if attempt == max {
			if max > 1 {
				return attempt, &ExhaustedError{Attempts: attempt, Err: err}
			}
			return attempt, err
		}
		wait := p.delay(attempt - 1)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			return attempt, fmt.Errorf("retry wait interrupted: %w", serr)
		}
	}
	return max, err
}

func (p Policy) delay(i int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if i >= len(p.Delays) {
		i = len(p.Delays) - 1
	}
	return p.Delays[i]
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
