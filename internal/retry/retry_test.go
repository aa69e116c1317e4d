package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

var errTransient = stderrors.New("transient")

func TestDo(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		failures  int
		failWith  error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "succeeds first time",
			policy:    Policy{Attempts: 3},
			wantCalls: 1,
		},
		{
			name:      "succeeds after transient failures",
			policy:    Policy{Attempts: 3, Backoff: time.Millisecond},
			failures:  2,
			failWith:  errTransient,
			wantCalls: 3,
		},
		{
			name:      "exhausts attempts",
			policy:    Policy{Attempts: 2},
			failures:  5,
			failWith:  errTransient,
			wantCalls: 2,
			wantErr:   errTransient,
		},
		{
			name:      "stops on permanent error",
			policy:    Policy{Attempts: 5},
			failures:  5,
			failWith:  errors.NewValidationError("bad"),
			wantCalls: 1,
			wantErr:   errors.ErrInvalidInput,
		},
		{
			name:      "retries retryable domain error",
			policy:    Policy{Attempts: 3},
			failures:  1,
			failWith:  errors.NewTimeoutError("op", time.Second),
			wantCalls: 2,
		},
		{
			name:      "zero attempts means one call",
			policy:    Policy{},
			failures:  1,
			failWith:  errTransient,
			wantCalls: 1,
			wantErr:   errTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), tt.policy, "test", func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Do() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Do() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{Attempts: 3}, "test", func(context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 3, Backoff: time.Hour}, "test", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("Do() error = %v, want last call error", err)
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), Policy{Attempts: 2}, "test", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("DoValue() error = %v", err)
	}
	if v != 42 {
		t.Errorf("DoValue() = %d, want 42", v)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", p.Attempts)
	}
	if p.Backoff <= 0 {
		t.Errorf("Backoff = %v, want positive", p.Backoff)
	}
}
