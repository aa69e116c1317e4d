package handling

import (
	"cmp"
	"slices"
	"time"

	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

const (
	// StreamBlockingConcern is the reserved concern that holds stream-wide
	// enable/disable entries.
	StreamBlockingConcern = "_stream_blocking"
	// StreamBlockingRecordID is the synthetic record id of stream-wide entries.
	StreamBlockingRecordID int64 = -1
)

// EntryMetadata describes one status transition.
type EntryMetadata struct {
	InternalRecordID   int64                         `json:"internal_record_id" yaml:"internal_record_id"`
	Concern            string                        `json:"concern" yaml:"concern"`
	Status             Status                        `json:"status" yaml:"status"`
	StringSerializedID string                        `json:"string_serialized_id,omitempty" yaml:"string_serialized_id,omitempty"`
	IDType             typerep.WithAndWithoutVersion `json:"id_type" yaml:"id_type"`
	Tags               []record.NamedValue           `json:"tags,omitempty" yaml:"tags,omitempty"`
	TimestampUTC       time.Time                     `json:"timestamp_utc" yaml:"timestamp_utc"`
	EventTimestampUTC  time.Time                     `json:"event_timestamp_utc" yaml:"event_timestamp_utc"`
}

// Entry is one immutable row of the handling ledger. EntryID orders entries
// across every concern and locator of a stream.
type Entry struct {
	EntryID  int64                `json:"entry_id" yaml:"entry_id"`
	Metadata EntryMetadata        `json:"metadata" yaml:"metadata"`
	Payload  serializer.Described `json:"payload" yaml:"payload"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.Metadata.Tags = slices.Clone(e.Metadata.Tags)
	e.Payload.Bytes = slices.Clone(e.Payload.Bytes)
	return e
}

// Latest returns the entry with the greatest EntryID per internal record id.
func Latest(entries []Entry) map[int64]Entry {
	out := make(map[int64]Entry)
	for _, e := range entries {
		id := e.Metadata.InternalRecordID
		if cur, ok := out[id]; !ok || e.EntryID > cur.EntryID {
			out[id] = e
		}
	}
	return out
}

// CurrentStatus returns the status of the most recent entry for id, or
// AvailableByDefault when id has no entries.
func CurrentStatus(entries []Entry, id int64) Status {
	var (
		latest Entry
		found  bool
	)
	for _, e := range entries {
		if e.Metadata.InternalRecordID == id && (!found || e.EntryID > latest.EntryID) {
			latest, found = e, true
		}
	}
	if !found {
		return AvailableByDefault
	}
	return latest.Metadata.Status
}

// History returns the entries for id in EntryID order.
func History(entries []Entry, id int64) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Metadata.InternalRecordID == id {
			out = append(out, e.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.EntryID, b.EntryID)
	})
	return out
}
