package handling

import (
	"time"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// Event is the payload of a ledger entry. Each transition has its own type so
// the ledger can be replayed without consulting the entry status.
type Event interface {
	// Name returns the event name, e.g. "completed".
	Name() string
	// Status returns the status the event moves a record into.
	Status() Status
	// OccurredAt returns when the event happened.
	OccurredAt() time.Time
}

// EventBase carries the fields every handling event shares.
type EventBase struct {
	Details      string    `json:"details,omitempty" yaml:"details,omitempty"`
	TimestampUTC time.Time `json:"timestamp_utc" yaml:"timestamp_utc"`
}

// OccurredAt implements Event.
func (b EventBase) OccurredAt() time.Time { return b.TimestampUTC }

// AvailableEvent makes a record visible to a concern before its first claim.
type AvailableEvent struct {
	EventBase `yaml:",inline"`
}

func (AvailableEvent) Name() string   { return "available" }
func (AvailableEvent) Status() Status { return AvailableByDefault }

// RunningEvent records a claim.
type RunningEvent struct {
	EventBase `yaml:",inline"`
}

func (RunningEvent) Name() string   { return "running" }
func (RunningEvent) Status() Status { return Running }

// CompletedEvent records successful handling.
type CompletedEvent struct {
	EventBase `yaml:",inline"`
}

func (CompletedEvent) Name() string   { return "completed" }
func (CompletedEvent) Status() Status { return Completed }

// FailedEvent records failed handling; Details carries the failure.
type FailedEvent struct {
	EventBase `yaml:",inline"`
}

func (FailedEvent) Name() string   { return "failed" }
func (FailedEvent) Status() Status { return Failed }

// RetryRequestedEvent moves a failed record back to available.
type RetryRequestedEvent struct {
	EventBase `yaml:",inline"`
}

func (RetryRequestedEvent) Name() string   { return "retry-requested" }
func (RetryRequestedEvent) Status() Status { return AvailableAfterFailure }

// SelfCancelledEvent records a handler giving up its own claim.
type SelfCancelledEvent struct {
	EventBase `yaml:",inline"`
}

func (SelfCancelledEvent) Name() string   { return "self-cancelled" }
func (SelfCancelledEvent) Status() Status { return AvailableAfterSelfCancellation }

// ExternallyCancelledEvent records another party cancelling a claim.
type ExternallyCancelledEvent struct {
	EventBase `yaml:",inline"`
}

func (ExternallyCancelledEvent) Name() string   { return "externally-cancelled" }
func (ExternallyCancelledEvent) Status() Status { return AvailableAfterExternalCancellation }

// DisabledForRecordEvent stops a concern from handling one record.
type DisabledForRecordEvent struct {
	EventBase `yaml:",inline"`
}

func (DisabledForRecordEvent) Name() string   { return "record-disabled" }
func (DisabledForRecordEvent) Status() Status { return DisabledForRecord }

// EnabledForRecordEvent lifts a DisabledForRecordEvent.
type EnabledForRecordEvent struct {
	EventBase `yaml:",inline"`
}

func (EnabledForRecordEvent) Name() string   { return "record-enabled" }
func (EnabledForRecordEvent) Status() Status { return AvailableByDefault }

// DisabledForStreamEvent blocks every claim on a locator.
type DisabledForStreamEvent struct {
	EventBase `yaml:",inline"`
}

func (DisabledForStreamEvent) Name() string   { return "stream-disabled" }
func (DisabledForStreamEvent) Status() Status { return DisabledForStream }

// EnabledForStreamEvent lifts a DisabledForStreamEvent.
type EnabledForStreamEvent struct {
	EventBase `yaml:",inline"`
}

func (EnabledForStreamEvent) Name() string   { return "stream-enabled" }
func (EnabledForStreamEvent) Status() Status { return AvailableByDefault }

// NewEvent builds the event for a transition from one status to another.
// AvailableByDefault is reached from three places, so from decides which
// event type is used.
func NewEvent(from, to Status, details string, ts time.Time) (Event, error) {
	base := EventBase{Details: details, TimestampUTC: ts}
	switch to {
	case AvailableByDefault:
		switch from {
		case DisabledForRecord:
			return EnabledForRecordEvent{base}, nil
		case DisabledForStream:
			return EnabledForStreamEvent{base}, nil
		default:
			return AvailableEvent{base}, nil
		}
	case Running:
		return RunningEvent{base}, nil
	case Completed:
		return CompletedEvent{base}, nil
	case Failed:
		return FailedEvent{base}, nil
	case AvailableAfterFailure:
		return RetryRequestedEvent{base}, nil
	case AvailableAfterSelfCancellation:
		return SelfCancelledEvent{base}, nil
	case AvailableAfterExternalCancellation:
		return ExternallyCancelledEvent{base}, nil
	case DisabledForRecord:
		return DisabledForRecordEvent{base}, nil
	case DisabledForStream:
		return DisabledForStreamEvent{base}, nil
	default:
		return nil, errors.NewUnsupportedError("handling status", to.String())
	}
}

// eventTypes maps the serialized payload type name back to a decoder.
var eventTypes = map[string]func() Event{}

func init() {
	for _, ctor := range []func() Event{
		func() Event { return &AvailableEvent{} },
		func() Event { return &RunningEvent{} },
		func() Event { return &CompletedEvent{} },
		func() Event { return &FailedEvent{} },
		func() Event { return &RetryRequestedEvent{} },
		func() Event { return &SelfCancelledEvent{} },
		func() Event { return &ExternallyCancelledEvent{} },
		func() Event { return &DisabledForRecordEvent{} },
		func() Event { return &EnabledForRecordEvent{} },
		func() Event { return &DisabledForStreamEvent{} },
		func() Event { return &EnabledForStreamEvent{} },
	} {
		eventTypes[typerep.Of(ctor()).Name] = ctor
	}
}

// DescribeEvent serializes ev for storage in an entry payload.
func DescribeEvent(f *serializer.Factory, rep serializer.Representation, ev Event) (serializer.Described, error) {
	return f.Describe(rep, typerep.Of(ev), ev)
}

// DecodeEvent reverses DescribeEvent.
func DecodeEvent(f *serializer.Factory, d serializer.Described) (Event, error) {
	ctor, ok := eventTypes[d.PayloadType.WithVersion.Name]
	if !ok {
		return nil, errors.NewUnsupportedError("handling event type", d.PayloadType.WithVersion.String())
	}
	ev := ctor()
	if err := f.Decode(d, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
