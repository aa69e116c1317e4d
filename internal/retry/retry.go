// Package retry runs stream operations again when they fail transiently and
// tracks how often each record has been retried by a consumer.
//
// [Do] and [DoValue] wrap a single call with a fixed backoff. They stop early
// when the error is classified permanent by the errors package (conflicts,
// precondition failures, validation) or when the context is done.
//
// [Manager] tracks per-record handling attempts so a consumer can decide
// whether a failed record is reset for another try or left Failed.
package retry

import (
	"context"
	"time"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/logging"
)

// Policy bounds the retries of one call.
type Policy struct {
	// Attempts is the total number of calls, including the first. Values
	// below 1 are treated as 1.
	Attempts int
	// Backoff is the fixed sleep between calls.
	Backoff time.Duration
	// Logger receives one Debug line per failed attempt. Nil disables logging.
	Logger *logging.Logger
}

// DefaultPolicy makes three attempts 50ms apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Backoff: 50 * time.Millisecond}
}

// Do calls fn until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	_, err := DoValue(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions returning a value.
func DoValue[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	logger := p.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	var (
		zero T
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return zero, err
		}

		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if errors.IsPermanent(err) || attempt == attempts {
			break
		}

		logger.Debug("retrying after error",
			"operation", op,
			"attempt", attempt,
			"of", attempts,
			"error", err)

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, err
			case <-timer.C:
			}
		}
	}
	return zero, err
}
