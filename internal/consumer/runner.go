package consumer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/logging"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/retry"
	"github.com/Iron-Ham/streamledger/internal/stream"
)

// DefaultPollInterval is the idle sleep used by Run when none is configured.
const DefaultPollInterval = 100 * time.Millisecond

// Handler processes one claimed record. A non-nil error marks the record
// Failed with the error text as details.
type Handler func(ctx context.Context, rec record.Record) error

// Stream is the subset of a stream a Runner needs.
type Stream interface {
	TryHandle(ctx context.Context, op stream.TryHandleOp) (stream.TryHandleResult, error)
	CompleteRunningHandle(ctx context.Context, op stream.TransitionOp) error
	FailRunningHandle(ctx context.Context, op stream.TransitionOp) error
	ResetFailedHandle(ctx context.Context, op stream.TransitionOp) error
}

// Config controls a Runner.
type Config struct {
	Concern string
	// Workers is the number of concurrent claim loops.
	Workers int
	// PollInterval is how long Run sleeps when nothing is claimable.
	PollInterval time.Duration
	// MaxRetries is how many times a failed record is reset for another claim.
	MaxRetries int
	Filter     record.Filter
	OrderBy    record.OrderBy
	// Tags are written on every claim entry.
	Tags []record.NamedValue
	// InheritRecordTags adds each record's own tags to its claim entries.
	InheritRecordTags bool
	// Report retries the status transitions written after a handler returns.
	Report retry.Policy
}

// Summary counts what a Runner did.
type Summary struct {
	Claimed   int
	Completed int
	Failed    int
	Retried   int
	Exhausted int
	// Blocked is set if any claim found stream handling disabled.
	Blocked bool
}

func (s Summary) String() string {
	return fmt.Sprintf("claimed=%d completed=%d failed=%d retried=%d exhausted=%d",
		s.Claimed, s.Completed, s.Failed, s.Retried, s.Exhausted)
}

// Runner drives handler workers for one concern.
type Runner struct {
	stream  Stream
	handler Handler
	cfg     Config
	logger  *logging.Logger
	retries *retry.Manager

	mu      sync.Mutex
	summary Summary
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New validates cfg and returns a Runner.
func New(s Stream, h Handler, cfg Config, opts ...Option) (*Runner, error) {
	if h == nil {
		return nil, errors.NewValidationError("handler is required").WithField("handler")
	}
	if cfg.Concern == "" || cfg.Concern == handling.StreamBlockingConcern {
		return nil, errors.NewValidationError("invalid concern").WithField("Concern").WithValue(cfg.Concern)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.NewValidationError("max retries must not be negative").
			WithField("MaxRetries").WithValue(cfg.MaxRetries)
	}

	r := &Runner{
		stream:  s,
		handler: h,
		cfg:     cfg,
		logger:  logging.NopLogger(),
		retries: retry.NewManager(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithConcern(cfg.Concern)
	return r, nil
}

// Drain handles records until none is claimable and returns the counts for
// this call.
func (r *Runner) Drain(ctx context.Context) (Summary, error) {
	return r.run(ctx, func(context.Context) bool { return false })
}

// Run handles records until ctx is done, sleeping PollInterval whenever
// nothing is claimable. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	return r.run(ctx, func(ctx context.Context) bool {
		timer := time.NewTimer(r.cfg.PollInterval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	})
}

func (r *Runner) run(ctx context.Context, idle func(context.Context) bool) (Summary, error) {
	r.mu.Lock()
	r.summary = Summary{}
	r.mu.Unlock()
	r.retries.Reset()

	r.logger.Info("consumer started", "workers", r.cfg.Workers)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(r.cfg.Workers).WithCancelOnError()
	for worker := range r.cfg.Workers {
		p.Go(func(ctx context.Context) error {
			return r.work(ctx, worker, idle)
		})
	}
	err := p.Wait()

	r.mu.Lock()
	r.summary.Exhausted = len(r.retries.ExhaustedKeys())
	summary := r.summary
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("consumer stopped", "error", err, "summary", summary.String())
		return summary, err
	}
	r.logger.Info("consumer finished", "summary", summary.String())
	return summary, nil
}

func (r *Runner) work(ctx context.Context, worker int, idle func(context.Context) bool) error {
	log := r.logger.With("worker", worker)
	op := stream.TryHandleOp{
		Concern: r.cfg.Concern,
		Filter:  r.cfg.Filter,
		OrderBy: r.cfg.OrderBy,
		Tags:    r.cfg.Tags,
		Details: "worker " + strconv.Itoa(worker),

		InheritRecordTags: r.cfg.InheritRecordTags,
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := r.stream.TryHandle(ctx, op)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "claim")
		}
		if res.Record == nil {
			if res.IsBlocked {
				r.update(func(s *Summary) { s.Blocked = true })
			}
			if !idle(ctx) {
				return nil
			}
			continue
		}
		if err := r.handle(ctx, log, res); err != nil {
			return err
		}
	}
}

// handle runs the handler on a claimed record and settles its status. The
// status writes ignore ctx cancellation so a claim is never left Running.
func (r *Runner) handle(ctx context.Context, log *logging.Logger, res stream.TryHandleResult) error {
	id := res.Record.InternalRecordID
	key := res.Locator.Name + "/" + strconv.FormatInt(id, 10)
	r.retries.GetOrCreateState(key, r.cfg.MaxRetries)
	r.update(func(s *Summary) { s.Claimed++ })

	herr := r.invoke(ctx, *res.Record)

	settle := context.WithoutCancel(ctx)
	loc := res.Locator
	op := stream.TransitionOp{InternalRecordID: id, Concern: r.cfg.Concern, Locator: &loc}

	if herr == nil {
		err := retry.Do(settle, r.cfg.Report, "complete", func(ctx context.Context) error {
			return r.stream.CompleteRunningHandle(ctx, op)
		})
		if err != nil {
			return errors.Wrapf(err, "complete %s", key)
		}
		r.retries.RecordSuccess(key)
		r.update(func(s *Summary) { s.Completed++ })
		log.Debug("record handled", "record", key)
		return nil
	}

	op.Details = herr.Error()
	err := retry.Do(settle, r.cfg.Report, "fail", func(ctx context.Context) error {
		return r.stream.FailRunningHandle(ctx, op)
	})
	if err != nil {
		return errors.Wrapf(err, "fail %s", key)
	}
	r.update(func(s *Summary) { s.Failed++ })

	if !r.retries.RecordFailure(key, herr) {
		log.Warn("record failed, retries exhausted", "record", key, "error", herr)
		return nil
	}
	op.Details = "retry"
	err = retry.Do(settle, r.cfg.Report, "reset", func(ctx context.Context) error {
		return r.stream.ResetFailedHandle(ctx, op)
	})
	if err != nil {
		return errors.Wrapf(err, "reset %s", key)
	}
	r.update(func(s *Summary) { s.Retried++ })
	log.Debug("record failed, reset for retry", "record", key, "error", herr)
	return nil
}

func (r *Runner) invoke(ctx context.Context, rec record.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return r.handler(ctx, rec)
}

func (r *Runner) update(f func(*Summary)) {
	r.mu.Lock()
	f(&r.summary)
	r.mu.Unlock()
}
