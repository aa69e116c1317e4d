package event

import (
	"time"

	"github.com/Iron-Ham/streamledger/internal/handling"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "record.put", "mutex.released")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event types published by streams and mutexes.
const (
	TypeStreamCreated         = "stream.created"
	TypeStreamDeleted         = "stream.deleted"
	TypeRecordPut             = "record.put"
	TypeRecordsPruned         = "records.pruned"
	TypeRecordClaimed         = "record.claimed"
	TypeHandlingStatusChanged = "handling.status_changed"
	TypeStreamHandlingChanged = "stream.handling_changed"
	TypeMutexAcquired         = "mutex.acquired"
	TypeMutexReleased         = "mutex.released"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, ts time.Time) baseEvent {
	return baseEvent{eventType: eventType, timestamp: ts}
}

// -----------------------------------------------------------------------------
// Stream Lifecycle Events
// -----------------------------------------------------------------------------

// StreamCreatedEvent is emitted when Create initializes or overwrites a stream.
type StreamCreatedEvent struct {
	baseEvent
	Stream      string
	InstanceID  string
	Overwritten bool
}

// NewStreamCreatedEvent creates a StreamCreatedEvent.
func NewStreamCreatedEvent(stream, instanceID string, overwritten bool, ts time.Time) StreamCreatedEvent {
	return StreamCreatedEvent{
		baseEvent:   newBaseEvent(TypeStreamCreated, ts),
		Stream:      stream,
		InstanceID:  instanceID,
		Overwritten: overwritten,
	}
}

// StreamDeletedEvent is emitted when a stream is cleared.
type StreamDeletedEvent struct {
	baseEvent
	Stream string
}

// NewStreamDeletedEvent creates a StreamDeletedEvent.
func NewStreamDeletedEvent(stream string, ts time.Time) StreamDeletedEvent {
	return StreamDeletedEvent{baseEvent: newBaseEvent(TypeStreamDeleted, ts), Stream: stream}
}

// -----------------------------------------------------------------------------
// Record Events
// -----------------------------------------------------------------------------

// RecordPutEvent is emitted after a successful Put. InternalRecordID is nil
// when the put was skipped by a DoNotWrite strategy.
type RecordPutEvent struct {
	baseEvent
	Stream             string
	Locator            string
	StringSerializedID string
	InternalRecordID   *int64
	ExistingRecordIDs  []int64
	PrunedRecordIDs    []int64
}

// NewRecordPutEvent creates a RecordPutEvent.
func NewRecordPutEvent(stream, locator, id string, internalID *int64, existing, pruned []int64, ts time.Time) RecordPutEvent {
	return RecordPutEvent{
		baseEvent:          newBaseEvent(TypeRecordPut, ts),
		Stream:             stream,
		Locator:            locator,
		StringSerializedID: id,
		InternalRecordID:   internalID,
		ExistingRecordIDs:  existing,
		PrunedRecordIDs:    pruned,
	}
}

// RecordsPrunedEvent is emitted when Prune removes records or entries.
type RecordsPrunedEvent struct {
	baseEvent
	Stream         string
	RecordsRemoved int
	EntriesRemoved int
}

// NewRecordsPrunedEvent creates a RecordsPrunedEvent.
func NewRecordsPrunedEvent(stream string, records, entries int, ts time.Time) RecordsPrunedEvent {
	return RecordsPrunedEvent{
		baseEvent:      newBaseEvent(TypeRecordsPruned, ts),
		Stream:         stream,
		RecordsRemoved: records,
		EntriesRemoved: entries,
	}
}

// -----------------------------------------------------------------------------
// Handling Events
// -----------------------------------------------------------------------------

// RecordClaimedEvent is emitted when TryHandle hands a record to a concern.
type RecordClaimedEvent struct {
	baseEvent
	Stream           string
	Locator          string
	Concern          string
	InternalRecordID int64
	FirstClaim       bool
}

// NewRecordClaimedEvent creates a RecordClaimedEvent.
func NewRecordClaimedEvent(stream, locator, concern string, id int64, first bool, ts time.Time) RecordClaimedEvent {
	return RecordClaimedEvent{
		baseEvent:        newBaseEvent(TypeRecordClaimed, ts),
		Stream:           stream,
		Locator:          locator,
		Concern:          concern,
		InternalRecordID: id,
		FirstClaim:       first,
	}
}

// HandlingStatusChangedEvent is emitted for every UpdateStatus transition.
type HandlingStatusChangedEvent struct {
	baseEvent
	Stream           string
	Locator          string
	Concern          string
	InternalRecordID int64
	Previous         handling.Status
	Current          handling.Status
}

// NewHandlingStatusChangedEvent creates a HandlingStatusChangedEvent.
func NewHandlingStatusChangedEvent(stream, locator, concern string, id int64, previous, current handling.Status, ts time.Time) HandlingStatusChangedEvent {
	return HandlingStatusChangedEvent{
		baseEvent:        newBaseEvent(TypeHandlingStatusChanged, ts),
		Stream:           stream,
		Locator:          locator,
		Concern:          concern,
		InternalRecordID: id,
		Previous:         previous,
		Current:          current,
	}
}

// StreamHandlingChangedEvent is emitted when stream-wide handling is
// disabled or re-enabled.
type StreamHandlingChangedEvent struct {
	baseEvent
	Stream  string
	Current handling.Status
}

// NewStreamHandlingChangedEvent creates a StreamHandlingChangedEvent.
func NewStreamHandlingChangedEvent(stream string, current handling.Status, ts time.Time) StreamHandlingChangedEvent {
	return StreamHandlingChangedEvent{
		baseEvent: newBaseEvent(TypeStreamHandlingChanged, ts),
		Stream:    stream,
		Current:   current,
	}
}

// -----------------------------------------------------------------------------
// Mutex Events
// -----------------------------------------------------------------------------

// MutexAcquiredEvent is emitted when WaitOne returns a token.
type MutexAcquiredEvent struct {
	baseEvent
	MutexID  string
	Attempts int
	Waited   time.Duration
}

// NewMutexAcquiredEvent creates a MutexAcquiredEvent.
func NewMutexAcquiredEvent(mutexID string, attempts int, waited time.Duration, ts time.Time) MutexAcquiredEvent {
	return MutexAcquiredEvent{
		baseEvent: newBaseEvent(TypeMutexAcquired, ts),
		MutexID:   mutexID,
		Attempts:  attempts,
		Waited:    waited,
	}
}

// MutexReleasedEvent is emitted after a successful Release.
type MutexReleasedEvent struct {
	baseEvent
	MutexID string
}

// NewMutexReleasedEvent creates a MutexReleasedEvent.
func NewMutexReleasedEvent(mutexID string, ts time.Time) MutexReleasedEvent {
	return MutexReleasedEvent{baseEvent: newBaseEvent(TypeMutexReleased, ts), MutexID: mutexID}
}
