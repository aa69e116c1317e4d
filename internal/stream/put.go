package stream

import (
	"context"
	"slices"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/serializer"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// PutOp describes one write.
type PutOp struct {
	Metadata record.Metadata
	Payload  serializer.Described

	ExistingRecordStrategy record.ExistingRecordStrategy
	// RetentionCount bounds the matches kept by the Prune* strategies,
	// counting the record being written. Ignored by other strategies.
	RetentionCount int
	// VersionMatch applies to the identifier and object type comparisons.
	VersionMatch typerep.VersionMatchStrategy

	// InternalRecordID requests a specific id. It must be greater than every
	// id the partition has assigned, pruned records included.
	InternalRecordID *int64
	// Locator overrides the resolver.
	Locator *locator.Locator
}

// PutResult reports the outcome of a Put.
type PutResult struct {
	Locator locator.Locator
	// InternalRecordID is nil when a DoNotWrite strategy skipped the write.
	InternalRecordID  *int64
	ExistingRecordIDs []int64
	PrunedRecordIDs   []int64
}

// Put appends a record to its partition, applying the existing-record
// strategy. Matching, appending and pruning happen atomically with respect
// to other writers of the stream.
func (s *MemoryStream) Put(ctx context.Context, op PutOp) (PutResult, error) {
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}
	if err := validatePut(op); err != nil {
		return PutResult{}, err
	}

	loc := s.resolver.Resolve(op.Metadata.StringSerializedID)
	if op.Locator != nil {
		loc = *op.Locator
	}
	meta := op.Metadata.Clone()
	if meta.TimestampUTC.IsZero() {
		meta.TimestampUTC = s.now()
	} else {
		meta.TimestampUTC = meta.TimestampUTC.UTC()
	}

	s.partitionMu.Lock()
	result, err := s.putLocked(loc, meta, op)
	s.partitionMu.Unlock()

	log := s.logger.WithLocator(loc.Name)
	if err != nil {
		log.Warn("put rejected",
			"id", meta.StringSerializedID,
			"strategy", op.ExistingRecordStrategy.String(),
			"error", err)
		return PutResult{}, err
	}

	log.Debug("put",
		"id", meta.StringSerializedID,
		"strategy", op.ExistingRecordStrategy.String(),
		"written", result.InternalRecordID != nil,
		"existing", len(result.ExistingRecordIDs),
		"pruned", len(result.PrunedRecordIDs))
	s.bus.Publish(event.NewRecordPutEvent(s.rep.Name, loc.Name, meta.StringSerializedID,
		result.InternalRecordID, result.ExistingRecordIDs, result.PrunedRecordIDs, s.now()))
	return result, nil
}

func validatePut(op PutOp) error {
	if op.Metadata.StringSerializedID == "" {
		return errors.NewValidationError("string serialized id is required").WithField("StringSerializedID")
	}
	if op.ExistingRecordStrategy < record.None || op.ExistingRecordStrategy > record.PruneIfFoundByIDAndType {
		return errors.NewUnsupportedError("existing record strategy", op.ExistingRecordStrategy.String())
	}
	if op.ExistingRecordStrategy.IsPrune() && op.RetentionCount < 1 {
		return errors.NewValidationError("retention count must be at least 1 for prune strategies").
			WithField("RetentionCount").WithValue(op.RetentionCount)
	}
	if op.InternalRecordID != nil && *op.InternalRecordID < 1 {
		return errors.NewValidationError("internal record id must be positive").
			WithField("InternalRecordID").WithValue(*op.InternalRecordID)
	}
	return nil
}

// putLocked performs the write. Caller holds partitionMu. Every check runs
// before the partition is touched.
func (s *MemoryStream) putLocked(loc locator.Locator, meta record.Metadata, op PutOp) (PutResult, error) {
	result := PutResult{Locator: loc}
	p := s.partitionFor(loc, false)

	matches, err := s.matchExisting(p, meta, op)
	if err != nil {
		return PutResult{}, err
	}

	var toPrune []int64
	strategy := op.ExistingRecordStrategy
	switch strategy {
	case record.None:
	case record.ThrowIfFoundByID, record.ThrowIfFoundByIDAndType, record.ThrowIfFoundByIDAndTypeAndContent:
		if len(matches) > 0 {
			return PutResult{}, errors.NewConflictError("existing records found", errors.ErrRecordExists).
				WithStrategy(strategy.String()).
				WithRecordID(meta.StringSerializedID).
				WithLocator(loc.Name).
				WithExistingIDs(matches)
		}
	case record.DoNotWriteIfFoundByID, record.DoNotWriteIfFoundByIDAndType, record.DoNotWriteIfFoundByIDAndTypeAndContent:
		if len(matches) > 0 {
			result.ExistingRecordIDs = matches
			return result, nil
		}
	case record.PruneIfFoundByID, record.PruneIfFoundByIDAndType:
		result.ExistingRecordIDs = matches
		// Newest first; keep RetentionCount-1 so the new record brings the
		// total back to RetentionCount.
		newestFirst := slices.Clone(matches)
		slices.Reverse(newestFirst)
		if keep := op.RetentionCount - 1; len(newestFirst) > keep {
			toPrune = newestFirst[keep:]
		}
	default:
		return PutResult{}, errors.NewUnsupportedError("existing record strategy", strategy.String())
	}

	var id int64
	if op.InternalRecordID != nil {
		id = *op.InternalRecordID
		if p != nil && id <= p.lastID {
			return PutResult{}, errors.NewConflictError("internal record id already assigned", errors.ErrInternalIDTaken).
				WithStrategy(strategy.String()).
				WithRecordID(meta.StringSerializedID).
				WithLocator(loc.Name).
				WithExistingIDs([]int64{id})
		}
	}

	p = s.partitionFor(loc, true)
	if op.InternalRecordID == nil {
		id = p.lastID + 1
	}
	p.lastID = id

	rec := record.Record{InternalRecordID: id, Metadata: meta, Payload: op.Payload}
	rec.Payload.Bytes = slices.Clone(op.Payload.Bytes)
	p.records = append(p.records, rec)

	if len(toPrune) > 0 {
		p.records = slices.DeleteFunc(p.records, func(r record.Record) bool {
			return slices.Contains(toPrune, r.InternalRecordID)
		})
		result.PrunedRecordIDs = toPrune
		slices.Sort(result.PrunedRecordIDs)
	}

	result.InternalRecordID = &id
	return result, nil
}

// matchExisting returns the ids, ascending, of the records in p that the
// strategy considers matches for meta.
func (s *MemoryStream) matchExisting(p *partition, meta record.Metadata, op PutOp) ([]int64, error) {
	if p == nil || op.ExistingRecordStrategy == record.None {
		return nil, nil
	}

	var byType, byContent bool
	switch op.ExistingRecordStrategy {
	case record.ThrowIfFoundByIDAndType, record.DoNotWriteIfFoundByIDAndType, record.PruneIfFoundByIDAndType:
		byType = true
	case record.ThrowIfFoundByIDAndTypeAndContent, record.DoNotWriteIfFoundByIDAndTypeAndContent:
		byType, byContent = true, true
	}

	id := meta.StringSerializedID
	idType := meta.IDType.WithVersion
	objectType := meta.ObjectType.WithVersion
	filter := record.Filter{
		StringSerializedID: &id,
		IDType:             &idType,
		VersionMatch:       op.VersionMatch,
	}
	if byType {
		filter.ObjectType = &objectType
	}

	var out []int64
	for _, r := range p.records {
		ok, err := filter.Matches(r.Metadata)
		if err != nil {
			return nil, err
		}
		if !ok || (byContent && !r.Payload.Equal(op.Payload)) {
			continue
		}
		out = append(out, r.InternalRecordID)
	}
	return out, nil
}
