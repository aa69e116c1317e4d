package stream

import (
	"context"
	"slices"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/record"
)

// RecordQuery narrows a read. The zero value matches every record, orders
// ascending and returns empty results when nothing matches.
type RecordQuery struct {
	Filter   record.Filter
	OrderBy  record.OrderBy
	NotFound record.NotFoundStrategy
	// Locator restricts the read to one partition. When nil, every partition
	// is scanned, starting with the resolver's partition for reads by id.
	Locator *locator.Locator
}

// GetLatestRecord returns the most recently written record matching q.
// Across partitions the latest write timestamp wins, then the greater id.
func (s *MemoryStream) GetLatestRecord(ctx context.Context, q RecordQuery) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := s.scan(s.scanLocators(q, ""), q.Filter)
	if err != nil {
		return nil, err
	}
	latest := latestOf(matches)
	if latest == nil {
		return nil, notFound(q.NotFound, "record", describeFilter(q.Filter))
	}
	return &latest.rec, nil
}

// GetLatestRecordByID returns the newest record with the given id.
func (s *MemoryStream) GetLatestRecordByID(ctx context.Context, id string, q RecordQuery) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.Filter.StringSerializedID = &id
	matches, err := s.scan(s.scanLocators(q, id), q.Filter)
	if err != nil {
		return nil, err
	}
	latest := latestOf(matches)
	if latest == nil {
		return nil, notFound(q.NotFound, "record", id)
	}
	return &latest.rec, nil
}

// GetLatestRecordMetadataByID is GetLatestRecordByID without the payload.
func (s *MemoryStream) GetLatestRecordMetadataByID(ctx context.Context, id string, q RecordQuery) (*record.Metadata, error) {
	rec, err := s.GetLatestRecordByID(ctx, id, q)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.Metadata, nil
}

// GetRecordByInternalID returns the record with internalID in the query's
// partition. Filters on q still apply.
func (s *MemoryStream) GetRecordByInternalID(ctx context.Context, internalID int64, q RecordQuery) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc, err := s.locatorFor(q.Locator)
	if err != nil {
		return nil, err
	}

	s.partitionMu.Lock()
	var found *record.Record
	if p := s.partitions[loc]; p != nil {
		if i, ok := p.find(internalID); ok {
			rec := p.records[i].Clone()
			found = &rec
		}
	}
	s.partitionMu.Unlock()

	if found != nil {
		ok, err := q.Filter.Matches(found.Metadata)
		if err != nil {
			return nil, err
		}
		if ok {
			return found, nil
		}
	}
	return nil, notFound(q.NotFound, "record", loc.Name+"/"+itoa(internalID))
}

// GetAllRecordsByID returns every record with the given id, ordered by q.OrderBy.
func (s *MemoryStream) GetAllRecordsByID(ctx context.Context, id string, q RecordQuery) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.Filter.StringSerializedID = &id
	matches, err := s.scan(s.scanLocators(q, id), q.Filter)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, notFound(q.NotFound, "record", id)
	}
	out := make([]record.Record, len(matches))
	for i, m := range matches {
		out[i] = m.rec
	}
	if err := record.Order(out, internalID, q.OrderBy); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDistinctIDs returns the sorted set of ids of records matching q.
func (s *MemoryStream) GetDistinctIDs(ctx context.Context, q RecordQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := s.scan(s.scanLocators(q, ""), q.Filter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.rec.Metadata.StringSerializedID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, notFound(q.NotFound, "record", describeFilter(q.Filter))
	}
	return ids, nil
}

// DoesAnyExistByID reports whether a record with the given id matches q.
func (s *MemoryStream) DoesAnyExistByID(ctx context.Context, id string, q RecordQuery) (bool, error) {
	q.NotFound = record.ReturnDefault
	rec, err := s.GetLatestRecordByID(ctx, id, q)
	return rec != nil, err
}

type located struct {
	loc locator.Locator
	rec record.Record
}

func internalID(r record.Record) int64 { return r.InternalRecordID }

// scanLocators picks the partitions a read must visit.
func (s *MemoryStream) scanLocators(q RecordQuery, id string) []locator.Locator {
	if q.Locator != nil {
		return []locator.Locator{*q.Locator}
	}
	s.partitionMu.Lock()
	defer s.partitionMu.Unlock()
	if id != "" {
		return s.idLocatorsLocked(id, false)
	}
	return s.knownLocators(false)
}

// scan copies out the records in locs matching f, ascending by id within
// each partition.
func (s *MemoryStream) scan(locs []locator.Locator, f record.Filter) ([]located, error) {
	s.partitionMu.Lock()
	defer s.partitionMu.Unlock()
	return s.scanLocked(locs, f, nil)
}

// scanLocked is scan for callers already holding partitionMu. skip, when
// set, excludes records before the filter runs.
func (s *MemoryStream) scanLocked(locs []locator.Locator, f record.Filter, skip func(locator.Locator, int64) bool) ([]located, error) {
	var out []located
	for _, loc := range locs {
		p := s.partitions[loc]
		if p == nil {
			continue
		}
		for _, r := range p.records {
			if skip != nil && skip(loc, r.InternalRecordID) {
				continue
			}
			ok, err := f.Matches(r.Metadata)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, located{loc: loc, rec: r.Clone()})
			}
		}
	}
	return out, nil
}

func latestOf(matches []located) *located {
	var best *located
	for i := range matches {
		m := &matches[i]
		if best == nil {
			best = m
			continue
		}
		ts, bestTS := m.rec.Metadata.TimestampUTC, best.rec.Metadata.TimestampUTC
		if m.loc == best.loc {
			if m.rec.InternalRecordID > best.rec.InternalRecordID {
				best = m
			}
			continue
		}
		if ts.After(bestTS) || (ts.Equal(bestTS) && m.rec.InternalRecordID > best.rec.InternalRecordID) {
			best = m
		}
	}
	return best
}

func notFound(strategy record.NotFoundStrategy, kind, id string) error {
	switch strategy {
	case record.ReturnDefault:
		return nil
	case record.Throw:
		return errors.NewNotFoundError(kind, id).WithCause(errors.ErrRecordNotFound)
	default:
		return errors.NewUnsupportedError("record not found strategy", strategy.String())
	}
}

func describeFilter(f record.Filter) string {
	switch {
	case f.StringSerializedID != nil:
		return *f.StringSerializedID
	case f.ObjectType != nil:
		return f.ObjectType.String()
	case f.IDType != nil:
		return f.IDType.String()
	default:
		return "*"
	}
}
