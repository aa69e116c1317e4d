package stream

import (
	"context"
	"slices"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/record"
)

// TryHandleOp asks for the next record a concern may handle.
type TryHandleOp struct {
	Concern string
	// Filter restricts candidate records.
	Filter  record.Filter
	OrderBy record.OrderBy
	// MinimumInternalRecordID skips records with smaller ids.
	MinimumInternalRecordID *int64
	// Tags are written on the claim entries.
	Tags []record.NamedValue
	// InheritRecordTags adds the record's own tags to the claim entries.
	InheritRecordTags bool
	Details           string
	// Locator restricts the claim to one partition. When nil, every
	// partition is tried in order, starting with the resolver's partition
	// when the filter names an id.
	Locator *locator.Locator
}

// TryHandleResult is the outcome of TryHandle. Record is nil when nothing
// was claimable; IsBlocked reports that stream-wide handling is disabled.
type TryHandleResult struct {
	Record    *record.Record
	Locator   locator.Locator
	IsBlocked bool
}

// TryHandle claims the next eligible record for op.Concern and marks it
// Running. Candidate selection and the claim entries happen under both
// stream locks, so two callers never claim the same record.
//
// A record seen by the concern for the first time receives an
// AvailableByDefault entry before its Running entry.
func (s *MemoryStream) TryHandle(ctx context.Context, op TryHandleOp) (TryHandleResult, error) {
	if err := ctx.Err(); err != nil {
		return TryHandleResult{}, err
	}
	if err := validateConcern(op.Concern); err != nil {
		return TryHandleResult{}, err
	}
	switch op.OrderBy {
	case record.OrderAscending, record.OrderDescending, record.OrderRandom:
	default:
		return TryHandleResult{}, errors.NewUnsupportedError("order strategy", op.OrderBy.String())
	}

	s.handlingMu.Lock()
	s.partitionMu.Lock()
	result, first, err := s.tryHandleLocked(op)
	s.partitionMu.Unlock()
	s.handlingMu.Unlock()

	if err != nil {
		return TryHandleResult{}, err
	}

	log := s.logger.WithConcern(op.Concern)
	switch {
	case result.IsBlocked:
		log.Debug("claim blocked, stream handling disabled", "locator", result.Locator.Name)
	case result.Record != nil:
		log.Debug("record claimed",
			"locator", result.Locator.Name,
			"internal_record_id", result.Record.InternalRecordID,
			"first_claim", first)
		s.bus.Publish(event.NewRecordClaimedEvent(s.rep.Name, result.Locator.Name, op.Concern,
			result.Record.InternalRecordID, first, s.now()))
	}
	return result, nil
}

func (s *MemoryStream) tryHandleLocked(op TryHandleOp) (TryHandleResult, bool, error) {
	var locs []locator.Locator
	switch {
	case op.Locator != nil:
		locs = []locator.Locator{*op.Locator}
	case op.Filter.StringSerializedID != nil:
		locs = s.idLocatorsLocked(*op.Filter.StringSerializedID, true)
	default:
		locs = s.knownLocators(true)
	}

	if s.streamStatusLocked() == handling.DisabledForStream {
		blocked := TryHandleResult{IsBlocked: true}
		if len(locs) > 0 {
			blocked.Locator = locs[0]
		}
		return blocked, false, nil
	}

	for _, loc := range locs {
		latest := handling.Latest(s.ledgers[loc][op.Concern])
		ignored := func(_ locator.Locator, id int64) bool {
			e, seen := latest[id]
			return seen && !e.Metadata.Status.IsAvailable()
		}
		candidates, err := s.scanLocked([]locator.Locator{loc}, op.Filter, ignored)
		if err != nil {
			return TryHandleResult{}, false, err
		}
		if op.MinimumInternalRecordID != nil {
			minID := *op.MinimumInternalRecordID
			candidates = slices.DeleteFunc(candidates, func(c located) bool {
				return c.rec.InternalRecordID < minID
			})
		}
		if len(candidates) == 0 {
			continue
		}
		if err := record.Order(candidates, func(c located) int64 { return c.rec.InternalRecordID }, op.OrderBy); err != nil {
			return TryHandleResult{}, false, err
		}

		chosen := candidates[0].rec
		tags := op.Tags
		if op.InheritRecordTags {
			tags = unionTags(op.Tags, chosen.Metadata.Tags)
		}

		prior, seen := latest[chosen.InternalRecordID]
		from := handling.AvailableByDefault
		if seen {
			from = prior.Metadata.Status
		}

		var entries []handling.Entry
		if !seen {
			e, err := s.newEntry(loc, op.Concern, &chosen, from, handling.AvailableByDefault, op.Details, tags)
			if err != nil {
				return TryHandleResult{}, false, err
			}
			entries = append(entries, e)
		}
		e, err := s.newEntry(loc, op.Concern, &chosen, from, handling.Running, op.Details, tags)
		if err != nil {
			return TryHandleResult{}, false, err
		}
		entries = append(entries, e)
		s.appendEntriesLocked(loc, op.Concern, entries...)

		return TryHandleResult{Record: &chosen, Locator: loc}, !seen, nil
	}
	return TryHandleResult{}, false, nil
}

// newEntry builds an unnumbered entry for a transition of rec, or of the
// stream when rec is nil.
func (s *MemoryStream) newEntry(loc locator.Locator, concern string, rec *record.Record, from, to handling.Status, details string, tags []record.NamedValue) (handling.Entry, error) {
	ts := s.now()
	ev, err := handling.NewEvent(from, to, details, ts)
	if err != nil {
		return handling.Entry{}, err
	}
	payload, err := handling.DescribeEvent(s.factory, s.defaultRep, ev)
	if err != nil {
		return handling.Entry{}, err
	}

	meta := handling.EntryMetadata{
		InternalRecordID:  handling.StreamBlockingRecordID,
		Concern:           concern,
		Status:            to,
		Tags:              slices.Clone(tags),
		TimestampUTC:      ts,
		EventTimestampUTC: ev.OccurredAt(),
	}
	if rec != nil {
		meta.InternalRecordID = rec.InternalRecordID
		meta.StringSerializedID = rec.Metadata.StringSerializedID
		meta.IDType = rec.Metadata.IDType
	}
	return handling.Entry{Metadata: meta, Payload: payload}, nil
}

// appendEntriesLocked numbers entries from the stream-wide counter and
// appends them. Caller holds handlingMu.
func (s *MemoryStream) appendEntriesLocked(loc locator.Locator, concern string, entries ...handling.Entry) {
	byConcern := s.ledgers[loc]
	if byConcern == nil {
		byConcern = make(map[string][]handling.Entry)
		s.ledgers[loc] = byConcern
	}
	for _, e := range entries {
		s.lastEntry++
		e.EntryID = s.lastEntry
		byConcern[concern] = append(byConcern[concern], e)
	}
}

// appendBlockingLocked numbers e and appends it to the stream-wide ledger.
// Caller holds handlingMu.
func (s *MemoryStream) appendBlockingLocked(e handling.Entry) {
	s.lastEntry++
	e.EntryID = s.lastEntry
	s.blocking = append(s.blocking, e)
}

// streamStatusLocked returns the stream-wide handling status.
// Caller holds handlingMu.
func (s *MemoryStream) streamStatusLocked() handling.Status {
	return handling.CurrentStatus(s.blocking, handling.StreamBlockingRecordID)
}

// unionTags appends the tags of extra missing from base.
func unionTags(base, extra []record.NamedValue) []record.NamedValue {
	out := slices.Clone(base)
	for _, t := range extra {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
