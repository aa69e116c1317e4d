package stream

import (
	"context"
	"slices"
	"time"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/record"
)

// PruneOp selects what Prune removes. Exactly one cutoff must be set.
type PruneOp struct {
	// BeforeUTC removes records and entries written before this time.
	BeforeUTC *time.Time
	// BeforeInternalRecordID removes records, and entries about records,
	// with a smaller internal id.
	BeforeInternalRecordID *int64
}

// PruneResult counts what Prune removed.
type PruneResult struct {
	RecordsRemoved int
	EntriesRemoved int
}

// Prune keeps only the records and ledger entries at or after the cutoff.
// The latest stream-wide handling entry always survives so pruning cannot
// silently re-enable a disabled stream.
func (s *MemoryStream) Prune(ctx context.Context, op PruneOp) (PruneResult, error) {
	if err := ctx.Err(); err != nil {
		return PruneResult{}, err
	}
	if (op.BeforeUTC == nil) == (op.BeforeInternalRecordID == nil) {
		return PruneResult{}, errors.NewValidationError("exactly one of BeforeUTC and BeforeInternalRecordID is required")
	}

	var (
		recordExpired func(id int64, ts time.Time) bool
		entryExpired  func(e handling.Entry) bool
	)
	if op.BeforeUTC != nil {
		cutoff := op.BeforeUTC.UTC()
		recordExpired = func(_ int64, ts time.Time) bool { return ts.Before(cutoff) }
		entryExpired = func(e handling.Entry) bool { return e.Metadata.TimestampUTC.Before(cutoff) }
	} else {
		cutoff := *op.BeforeInternalRecordID
		recordExpired = func(id int64, _ time.Time) bool { return id < cutoff }
		entryExpired = func(e handling.Entry) bool { return e.Metadata.InternalRecordID < cutoff }
	}

	var result PruneResult
	s.handlingMu.Lock()
	s.partitionMu.Lock()

	for _, p := range s.partitions {
		before := len(p.records)
		p.records = slices.DeleteFunc(p.records, func(r record.Record) bool {
			return recordExpired(r.InternalRecordID, r.Metadata.TimestampUTC)
		})
		result.RecordsRemoved += before - len(p.records)
	}

	for _, byConcern := range s.ledgers {
		for concern, entries := range byConcern {
			before := len(entries)
			entries = slices.DeleteFunc(entries, entryExpired)
			result.EntriesRemoved += before - len(entries)
			byConcern[concern] = entries
		}
	}

	if n := len(s.blocking); n > 0 {
		latest := s.blocking[n-1].EntryID
		s.blocking = slices.DeleteFunc(s.blocking, func(e handling.Entry) bool {
			return e.EntryID != latest && entryExpired(e)
		})
		result.EntriesRemoved += n - len(s.blocking)
	}

	s.partitionMu.Unlock()
	s.handlingMu.Unlock()

	s.logger.Info("stream pruned", "records_removed", result.RecordsRemoved, "entries_removed", result.EntriesRemoved)
	if result.RecordsRemoved > 0 || result.EntriesRemoved > 0 {
		s.bus.Publish(event.NewRecordsPrunedEvent(s.rep.Name, result.RecordsRemoved, result.EntriesRemoved, s.now()))
	}
	return result, nil
}
