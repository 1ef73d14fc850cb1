// package retry implements retry with exponential backoff for rate-limited upstream calls.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/shared"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy configures [Do]. The zero value retries [shared.ErrRateLimited] three times starting at one second.
//
// A Policy holds no per-call state and may be shared between goroutines.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Retryable reports whether err should be retried. Defaults to [IsRateLimited].
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Defaults to a timer select.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *log.Logger
}

// State tracks a single invocation of [Do].
type State struct {
	Attempt   int
	BaseDelay time.Duration
	LastError error
}

// Delay returns the backoff before the next attempt: BaseDelay * 2^Attempt.
func (s State) Delay() time.Duration {
	return s.BaseDelay << s.Attempt
}

// IsRateLimited reports whether err signals an upstream rate limit.
func IsRateLimited(err error) bool {
	return errors.Is(err, shared.ErrRateLimited)
}

// New returns a Policy with the given attempt budget and base delay.
func New(maxAttempts int, baseDelay time.Duration, logger *log.Logger) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, Logger: logger}
}

// Do calls op until it succeeds, fails with a non-retryable error, or the attempt budget runs out.
//
// Retryable failures wait BaseDelay * 2^attempt before the next attempt. When every attempt fails the
// last error is returned as is, so its classification survives.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	state := State{BaseDelay: p.BaseDelay}

	var zero T
	for ; state.Attempt < p.MaxAttempts; state.Attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		state.LastError = err

		if !p.Retryable(err) {
			return zero, err
		}
		if state.Attempt == p.MaxAttempts-1 {
			break
		}

		delay := state.Delay()
		if p.Logger != nil {
			p.Logger.Warn("rate limit hit, backing off", "attempt", state.Attempt+1, "delay", delay)
		}
		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, state.LastError
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Retryable == nil {
		p.Retryable = IsRateLimited
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
