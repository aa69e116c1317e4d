// Package stream implements an in-memory record stream with a per-concern
// handling ledger.
//
// A [MemoryStream] stores immutable records in partitions keyed by
// [locator.Locator]. Next to the records it keeps an append-only ledger of
// handling entries per (locator, concern) from which the current handling
// status of every record is derived. [MemoryStream.TryHandle] claims the next
// eligible record for a concern; the status operations report what happened
// to it.
//
// # Locking
//
// Two mutexes guard a stream: handlingMu guards the ledgers, the stream-wide
// blocking ledger and the entry id counter, partitionMu guards the partitions. Operations that need both
// always acquire handlingMu first. Events are published after both are
// released.
package stream

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/logging"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// Representation identifies one stream instance.
type Representation struct {
	Name       string    `json:"name" yaml:"name"`
	InstanceID uuid.UUID `json:"instance_id" yaml:"instance_id"`
}

// ExistingStreamStrategy decides what Create does when the stream already exists.
type ExistingStreamStrategy int

const (
	// ThrowIfExists fails with an already-exists error.
	ThrowIfExists ExistingStreamStrategy = iota
	// Overwrite clears the existing stream.
	Overwrite
	// Skip leaves the existing stream untouched.
	Skip
)

func (s ExistingStreamStrategy) String() string {
	switch s {
	case ThrowIfExists:
		return "Throw"
	case Overwrite:
		return "Overwrite"
	case Skip:
		return "Skip"
	default:
		return "ExistingStreamStrategy(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseExistingStreamStrategy parses a strategy name, case-insensitively.
func ParseExistingStreamStrategy(s string) (ExistingStreamStrategy, error) {
	switch strings.ToLower(s) {
	case "throw", "throwifexists":
		return ThrowIfExists, nil
	case "overwrite":
		return Overwrite, nil
	case "skip":
		return Skip, nil
	default:
		return 0, errors.NewUnsupportedError("existing stream strategy", s)
	}
}

// Option configures a MemoryStream.
type Option func(*MemoryStream)

// WithResolver sets the locator resolver. Defaults to a single partition
// named "default".
func WithResolver(r locator.Resolver) Option {
	return func(s *MemoryStream) { s.resolver = r }
}

// WithSerializerFactory sets the factory used to serialize handling events.
func WithSerializerFactory(f *serializer.Factory) Option {
	return func(s *MemoryStream) { s.factory = f }
}

// WithDefaultSerializer sets the representation used for handling events
// and by Describe.
func WithDefaultSerializer(rep serializer.Representation) Option {
	return func(s *MemoryStream) { s.defaultRep = rep }
}

// WithBus publishes stream events on bus.
func WithBus(bus *event.Bus) Option {
	return func(s *MemoryStream) { s.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *MemoryStream) { s.logger = l }
}

// WithClock overrides the time source. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStream) { s.clock = now }
}

// WithInstanceID fixes the instance id instead of generating one.
func WithInstanceID(id uuid.UUID) Option {
	return func(s *MemoryStream) { s.rep.InstanceID = id }
}

// partition is the append-only record list of one locator.
// records is kept sorted by InternalRecordID.
type partition struct {
	records []record.Record
	lastID  int64
}

// MemoryStream is a memory-resident stream. It is safe for concurrent use.
type MemoryStream struct {
	rep        Representation
	defaultRep serializer.Representation
	resolver   locator.Resolver
	factory    *serializer.Factory
	bus        *event.Bus
	logger     *logging.Logger
	clock      func() time.Time

	handlingMu sync.Mutex
	ledgers    map[locator.Locator]map[string][]handling.Entry
	// blocking holds the stream-wide entries. It is not tied to a locator
	// so partitions created after a disable are blocked too.
	blocking  []handling.Entry
	lastEntry int64

	partitionMu sync.Mutex
	partitions  map[locator.Locator]*partition
	created     bool
}

// New returns an empty stream named name.
func New(name string, opts ...Option) (*MemoryStream, error) {
	if name == "" {
		return nil, errors.NewValidationError("stream name is required").WithField("name")
	}
	s := &MemoryStream{
		rep:        Representation{Name: name},
		defaultRep: serializer.DefaultRepresentation,
		ledgers:    make(map[locator.Locator]map[string][]handling.Entry),
		partitions: make(map[locator.Locator]*partition),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rep.InstanceID == uuid.Nil {
		s.rep.InstanceID = uuid.New()
	}
	if s.resolver == nil {
		s.resolver = locator.NewSingleResolver("default")
	}
	if s.factory == nil {
		s.factory = serializer.NewFactory()
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if _, err := s.factory.Get(s.defaultRep.Kind); err != nil {
		return nil, err
	}
	s.logger = s.logger.WithStream(name, s.rep.InstanceID.String())
	return s, nil
}

// Name returns the stream name.
func (s *MemoryStream) Name() string { return s.rep.Name }

// Representation returns the stream name and instance id.
func (s *MemoryStream) Representation() Representation { return s.rep }

// DefaultSerializer returns the representation used for handling events.
func (s *MemoryStream) DefaultSerializer() serializer.Representation { return s.defaultRep }

// Resolver returns the locator resolver.
func (s *MemoryStream) Resolver() locator.Resolver { return s.resolver }

// SerializerFactory returns the serializer factory.
func (s *MemoryStream) SerializerFactory() *serializer.Factory { return s.factory }

// Describe serializes v with the default serializer. A zero payloadType is
// derived from v.
func (s *MemoryStream) Describe(payloadType typerep.Type, v any) (serializer.Described, error) {
	return s.factory.Describe(s.defaultRep, payloadType, v)
}

// Create initializes the stream. When the stream already holds data or was
// created before, strategy decides the outcome.
func (s *MemoryStream) Create(ctx context.Context, strategy ExistingStreamStrategy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch strategy {
	case ThrowIfExists, Overwrite, Skip:
	default:
		return errors.NewUnsupportedError("existing stream strategy", strategy.String())
	}

	s.handlingMu.Lock()
	s.partitionMu.Lock()

	exists := s.created || len(s.partitions) > 0 || len(s.ledgers) > 0 || len(s.blocking) > 0
	if exists {
		switch strategy {
		case ThrowIfExists:
			s.partitionMu.Unlock()
			s.handlingMu.Unlock()
			return errors.NewAlreadyExistsError("stream", s.rep.Name).WithCause(errors.ErrStreamExists)
		case Skip:
			s.partitionMu.Unlock()
			s.handlingMu.Unlock()
			s.logger.Debug("stream exists, create skipped")
			return nil
		}
		s.clearLocked()
	}
	s.created = true

	s.partitionMu.Unlock()
	s.handlingMu.Unlock()

	s.logger.Info("stream created", "overwritten", exists)
	s.bus.Publish(event.NewStreamCreatedEvent(s.rep.Name, s.rep.InstanceID.String(), exists, s.now()))
	return nil
}

// Delete removes every record and ledger entry. Deleting an empty stream is
// not an error.
func (s *MemoryStream) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.handlingMu.Lock()
	s.partitionMu.Lock()
	s.clearLocked()
	s.created = false
	s.partitionMu.Unlock()
	s.handlingMu.Unlock()

	s.logger.Info("stream deleted")
	s.bus.Publish(event.NewStreamDeletedEvent(s.rep.Name, s.now()))
	return nil
}

// clearLocked drops all partitions and ledgers. Caller holds both locks.
func (s *MemoryStream) clearLocked() {
	s.partitions = make(map[locator.Locator]*partition)
	s.ledgers = make(map[locator.Locator]map[string][]handling.Entry)
	s.blocking = nil
	s.lastEntry = 0
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func (s *MemoryStream) now() time.Time {
	return s.clock().UTC()
}

// locatorFor returns l, or the resolver's only locator when l is nil.
func (s *MemoryStream) locatorFor(l *locator.Locator) (locator.Locator, error) {
	if l != nil {
		return *l, nil
	}
	all := s.resolver.All()
	if len(all) == 1 {
		return all[0], nil
	}
	return locator.Locator{}, errors.NewValidationError("locator is required when the stream has more than one partition").
		WithField("Locator").WithValue(len(all))
}

// knownLocators returns the resolver's locators followed by any other
// locator holding records or entries, sorted by name. Caller holds the
// locks guarding whichever maps it reads; includeLedgers requires handlingMu.
func (s *MemoryStream) knownLocators(includeLedgers bool) []locator.Locator {
	out := s.resolver.All()
	seen := make(map[locator.Locator]bool, len(out))
	for _, l := range out {
		seen[l] = true
	}
	var extra []locator.Locator
	for l := range s.partitions {
		if !seen[l] {
			seen[l] = true
			extra = append(extra, l)
		}
	}
	if includeLedgers {
		for l := range s.ledgers {
			if !seen[l] {
				seen[l] = true
				extra = append(extra, l)
			}
		}
	}
	slices.SortFunc(extra, func(a, b locator.Locator) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return append(out, extra...)
}

// idLocatorsLocked returns the resolver's locator for id followed by every
// other known locator, so records written under an explicit Locator are still
// found by id. Caller holds partitionMu, and handlingMu when includeLedgers
// is set.
func (s *MemoryStream) idLocatorsLocked(id string, includeLedgers bool) []locator.Locator {
	resolved := s.resolver.Resolve(id)
	out := []locator.Locator{resolved}
	for _, l := range s.knownLocators(includeLedgers) {
		if l != resolved {
			out = append(out, l)
		}
	}
	return out
}

// partitionFor returns the partition for l, creating it when create is set.
// Caller holds partitionMu.
func (s *MemoryStream) partitionFor(l locator.Locator, create bool) *partition {
	p, ok := s.partitions[l]
	if !ok && create {
		p = &partition{}
		s.partitions[l] = p
	}
	return p
}

func (p *partition) find(id int64) (int, bool) {
	if p == nil {
		return 0, false
	}
	return slices.BinarySearchFunc(p.records, id, func(r record.Record, target int64) int {
		return cmp.Compare(r.InternalRecordID, target)
	})
}

func validateConcern(concern string) error {
	if concern == "" {
		return errors.NewValidationError("concern is required").WithField("Concern")
	}
	if concern == handling.StreamBlockingConcern {
		return errors.NewValidationError("concern is reserved for stream-wide handling").
			WithField("Concern").WithValue(concern)
	}
	return nil
}
