package mutex

import (
	"context"
	"strings"
	"time"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/logging"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/stream"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

const (
	// DefaultConcern is the ledger concern mutex claims are recorded under.
	DefaultConcern = "mutex"

	// DefaultPollingInterval is the sleep between claim attempts in WaitOne.
	DefaultPollingInterval = 100 * time.Millisecond
)

// MarkerType is the object type of mutex marker records.
var MarkerType = typerep.New("streamledger", "MutexMarker")

var idType = typerep.Of("")

// Marker is the payload of a mutex marker record.
type Marker struct {
	MutexID string `json:"mutex_id" yaml:"mutex_id"`
}

// Stream is the subset of a stream a mutex needs.
type Stream interface {
	Describe(payloadType typerep.Type, v any) (serializer.Described, error)
	Put(ctx context.Context, op stream.PutOp) (stream.PutResult, error)
	TryHandle(ctx context.Context, op stream.TryHandleOp) (stream.TryHandleResult, error)
	UpdateStatus(ctx context.Context, op stream.UpdateStatusOp) error
}

// ReleaseToken identifies one successful WaitOne.
type ReleaseToken struct {
	MutexID          string
	InternalRecordID int64
	Locator          locator.Locator
	Details          string
	AcquiredAt       time.Time
}

// Mutex is a named lock over a stream's handling ledger.
type Mutex struct {
	stream   Stream
	id       string
	concern  string
	interval time.Duration
	bus      *event.Bus
	logger   *logging.Logger
	loc      locator.Locator
}

// Option configures a Mutex.
type Option func(*Mutex)

// WithConcern records claims under concern instead of DefaultConcern.
func WithConcern(concern string) Option {
	return func(m *Mutex) { m.concern = concern }
}

// WithPollingInterval sets the sleep between claim attempts.
func WithPollingInterval(d time.Duration) Option {
	return func(m *Mutex) { m.interval = d }
}

// WithBus publishes acquire and release events to bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Mutex) { m.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Mutex) { m.logger = l }
}

// New returns the mutex named mutexID, writing its marker record if the
// stream does not have one yet.
func New(ctx context.Context, s Stream, mutexID string, opts ...Option) (*Mutex, error) {
	if strings.TrimSpace(mutexID) == "" {
		return nil, errors.NewValidationError("mutex id is required").WithField("mutexID")
	}
	m := &Mutex{
		stream:   s,
		id:       mutexID,
		concern:  DefaultConcern,
		interval: DefaultPollingInterval,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.interval <= 0 {
		return nil, errors.NewValidationError("polling interval must be positive").
			WithField("interval").WithValue(m.interval)
	}
	if m.concern == "" || m.concern == handling.StreamBlockingConcern {
		return nil, errors.NewValidationError("invalid mutex concern").
			WithField("concern").WithValue(m.concern)
	}
	m.logger = m.logger.WithConcern(m.concern).With("mutex_id", mutexID)

	payload, err := s.Describe(MarkerType, Marker{MutexID: mutexID})
	if err != nil {
		return nil, errors.Wrapf(err, "describe marker for mutex %s", mutexID)
	}
	res, err := s.Put(ctx, stream.PutOp{
		Metadata:               record.NewMetadata(mutexID, idType, MarkerType),
		Payload:                payload,
		ExistingRecordStrategy: record.DoNotWriteIfFoundByIDAndType,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "put marker for mutex %s", mutexID)
	}
	m.loc = res.Locator
	m.logger.Debug("mutex ready", "locator", m.loc.Name, "created", res.InternalRecordID != nil)
	return m, nil
}

// ID returns the mutex name.
func (m *Mutex) ID() string { return m.id }

// TryLock makes a single claim attempt. The bool is false when the mutex is
// held or stream handling is disabled.
func (m *Mutex) TryLock(ctx context.Context, details string) (ReleaseToken, bool, error) {
	id := m.id
	res, err := m.stream.TryHandle(ctx, stream.TryHandleOp{
		Concern: m.concern,
		Filter: record.Filter{
			StringSerializedID: &id,
			ObjectType:         &MarkerType,
		},
		Details: details,
		Locator: &m.loc,
	})
	if err != nil {
		return ReleaseToken{}, false, err
	}
	if res.Record == nil {
		return ReleaseToken{}, false, nil
	}
	return ReleaseToken{
		MutexID:          m.id,
		InternalRecordID: res.Record.InternalRecordID,
		Locator:          res.Locator,
		Details:          details,
		AcquiredAt:       time.Now(),
	}, true, nil
}

// WaitOne blocks until the mutex is acquired or ctx is done, trying once
// per polling interval.
func (m *Mutex) WaitOne(ctx context.Context, details string) (ReleaseToken, error) {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempts := 1; ; attempts++ {
		select {
		case <-ctx.Done():
			return ReleaseToken{}, m.abandoned(ctx, start, attempts-1)
		case <-timer.C:
		}

		token, ok, err := m.TryLock(ctx, details)
		if err != nil {
			if ctx.Err() != nil {
				return ReleaseToken{}, m.abandoned(ctx, start, attempts)
			}
			return ReleaseToken{}, errors.Wrapf(err, "acquire mutex %s", m.id)
		}
		if ok {
			waited := time.Since(start)
			m.logger.Debug("mutex acquired", "attempts", attempts, "waited", waited.String())
			m.bus.Publish(event.NewMutexAcquiredEvent(m.id, attempts, waited, token.AcquiredAt))
			return token, nil
		}
		timer.Reset(m.interval)
	}
}

func (m *Mutex) abandoned(ctx context.Context, start time.Time, attempts int) error {
	waited := time.Since(start)
	m.logger.Warn("mutex wait abandoned", "attempts", attempts, "waited", waited.String())
	return errors.NewTimeoutError("waiting for mutex "+m.id, waited).WithCause(ctx.Err())
}

// Release gives up the lock held by token.
func (m *Mutex) Release(ctx context.Context, token ReleaseToken) error {
	if token.MutexID != m.id {
		return errors.NewValidationError("release token belongs to another mutex").
			WithField("MutexID").WithValue(token.MutexID)
	}
	loc := token.Locator
	err := m.stream.UpdateStatus(ctx, stream.UpdateStatusOp{
		InternalRecordID:          token.InternalRecordID,
		Concern:                   m.concern,
		NewStatus:                 handling.AvailableAfterSelfCancellation,
		AcceptableCurrentStatuses: []handling.Status{handling.Running},
		Details:                   token.Details,
		Locator:                   &loc,
	})
	if err != nil {
		return errors.Wrapf(err, "release mutex %s", m.id)
	}
	m.logger.Debug("mutex released", "held", time.Since(token.AcquiredAt).String())
	m.bus.Publish(event.NewMutexReleasedEvent(m.id, time.Now()))
	return nil
}
