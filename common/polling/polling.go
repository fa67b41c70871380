// Package polling repeatedly queries a source until it yields a result,
// retrying only on transient errors and within a bounded time window.
package polling

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Minute
)

type Options struct {
	// Interval is the wait between two attempts.
	Interval time.Duration
	// Timeout is measured from the first attempt.
	Timeout time.Duration
	// IsTransient tells whether an attempt error is retryable,
	// IsTransientError is used if nil.
	IsTransient func(error) bool
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.IsTransient == nil {
		o.IsTransient = IsTransientError
	}
	return o
}

// Until calls fn until it returns a non-nil result.
// A non transient error is returned immediately. If only nil results or
// transient errors are returned within the timeout, ErrTimeout is returned
// wrapping the last seen error. Every attempt runs with a context expiring
// at the deadline, so a hanging attempt cannot outlive the timeout.
// Cancelling ctx interrupts any pending wait and makes Until return
// ErrAborted.
func Until[T any](
	ctx context.Context, fn func(context.Context) (*T, error), opts Options,
) (*T, error) {
	opts = opts.withDefaults()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAborted, err)
	}

	deadline := time.Now().Add(opts.Timeout)
	attemptCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var lastErr error
	timedOut := func() error {
		if lastErr != nil {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, opts.Timeout, lastErr)
		}
		return fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout)
	}

	for attempt := 1; ; attempt++ {
		res, err := fn(attemptCtx)
		if err == nil && res != nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrAborted, ctxErr)
		}
		if attemptCtx.Err() != nil {
			return nil, timedOut()
		}
		if err != nil {
			if !opts.IsTransient(err) {
				return nil, err
			}
			lastErr = err
			log.WithError(err).Debugf("polling: attempt %d failed, retrying", attempt)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, timedOut()
		}

		wait := opts.Interval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-attemptCtx.Done():
			timer.Stop()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %s", ErrAborted, ctxErr)
			}
			return nil, timedOut()
		case <-timer.C:
		}
	}
}
