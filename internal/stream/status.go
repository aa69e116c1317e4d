package stream

import (
	"context"
	"slices"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/event"
	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/record"
	"github.com/Iron-Ham/streamledger/internal/typerep"
)

// UpdateStatusOp appends a status transition for one record and concern.
type UpdateStatusOp struct {
	InternalRecordID int64
	Concern          string
	NewStatus        handling.Status
	// AcceptableCurrentStatuses gates the transition on the record's
	// current status.
	AcceptableCurrentStatuses []handling.Status
	Details                   string
	Tags                      []record.NamedValue
	InheritRecordTags         bool
	// Locator is required when the resolver has more than one partition.
	Locator *locator.Locator
}

// UpdateStatus moves a record to op.NewStatus if its current status for
// op.Concern is acceptable. On failure nothing is appended.
func (s *MemoryStream) UpdateStatus(ctx context.Context, op UpdateStatusOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateConcern(op.Concern); err != nil {
		return err
	}
	switch op.NewStatus {
	case handling.DisabledForStream:
		return errors.NewValidationError("stream-wide status is set through UpdateStreamHandling").
			WithField("NewStatus").WithValue(op.NewStatus.String())
	default:
		if _, err := handling.NewEvent(handling.AvailableByDefault, op.NewStatus, "", s.now()); err != nil {
			return err
		}
	}
	if len(op.AcceptableCurrentStatuses) == 0 {
		return errors.NewValidationError("at least one acceptable current status is required").
			WithField("AcceptableCurrentStatuses")
	}
	loc, err := s.locatorFor(op.Locator)
	if err != nil {
		return err
	}

	s.handlingMu.Lock()
	s.partitionMu.Lock()
	previous, err := s.updateStatusLocked(loc, op)
	s.partitionMu.Unlock()
	s.handlingMu.Unlock()

	log := s.logger.WithLocator(loc.Name).WithConcern(op.Concern)
	if err != nil {
		log.Warn("status transition rejected",
			"internal_record_id", op.InternalRecordID,
			"target", op.NewStatus.String(),
			"error", err)
		return err
	}

	log.Debug("status changed",
		"internal_record_id", op.InternalRecordID,
		"from", previous.String(),
		"to", op.NewStatus.String())
	s.bus.Publish(event.NewHandlingStatusChangedEvent(s.rep.Name, loc.Name, op.Concern,
		op.InternalRecordID, previous, op.NewStatus, s.now()))
	return nil
}

func (s *MemoryStream) updateStatusLocked(loc locator.Locator, op UpdateStatusOp) (handling.Status, error) {
	p := s.partitions[loc]
	i, ok := p.find(op.InternalRecordID)
	if !ok {
		return 0, errors.NewNotFoundError("record", loc.Name+"/"+itoa(op.InternalRecordID)).
			WithCause(errors.ErrRecordNotFound)
	}
	rec := p.records[i]

	current := handling.CurrentStatus(s.ledgers[loc][op.Concern], op.InternalRecordID)
	if !slices.Contains(op.AcceptableCurrentStatuses, current) {
		return current, errors.NewPreconditionError("cannot transition to "+op.NewStatus.String(), errors.ErrStatusMismatch).
			WithInternalRecordID(op.InternalRecordID).
			WithConcern(op.Concern).
			WithLocator(loc.Name).
			WithStatuses(handling.Names(op.AcceptableCurrentStatuses), current.String())
	}

	tags := op.Tags
	if op.InheritRecordTags {
		tags = unionTags(op.Tags, rec.Metadata.Tags)
	}
	e, err := s.newEntry(loc, op.Concern, &rec, current, op.NewStatus, op.Details, tags)
	if err != nil {
		return current, err
	}
	s.appendEntriesLocked(loc, op.Concern, e)
	return current, nil
}

// StatusQuery addresses one record's handling for one concern.
type StatusQuery struct {
	InternalRecordID int64
	Concern          string
	Locator          *locator.Locator
}

// GetHandlingStatus returns the current status of a record for a concern.
// A record the concern has never seen is AvailableByDefault.
func (s *MemoryStream) GetHandlingStatus(ctx context.Context, q StatusQuery) (handling.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateConcern(q.Concern); err != nil {
		return 0, err
	}
	loc, err := s.locatorFor(q.Locator)
	if err != nil {
		return 0, err
	}

	s.handlingMu.Lock()
	defer s.handlingMu.Unlock()
	return handling.CurrentStatus(s.ledgers[loc][q.Concern], q.InternalRecordID), nil
}

// GetHandlingHistory returns the entries for a record and concern in the
// order they were appended. The reserved stream-wide concern returns the
// stream's blocking history regardless of locator.
func (s *MemoryStream) GetHandlingHistory(ctx context.Context, q StatusQuery) ([]handling.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Concern == "" {
		return nil, errors.NewValidationError("concern is required").WithField("Concern")
	}
	if q.Concern == handling.StreamBlockingConcern {
		s.handlingMu.Lock()
		defer s.handlingMu.Unlock()
		return handling.History(s.blocking, q.InternalRecordID), nil
	}
	loc, err := s.locatorFor(q.Locator)
	if err != nil {
		return nil, err
	}

	s.handlingMu.Lock()
	defer s.handlingMu.Unlock()
	return handling.History(s.ledgers[loc][q.Concern], q.InternalRecordID), nil
}

// CompositeByIDsQuery selects records by id for a composite status.
type CompositeByIDsQuery struct {
	Concern      string
	IDs          []string
	IDType       *typerep.Type
	VersionMatch typerep.VersionMatchStrategy
	Locator      *locator.Locator
}

// GetCompositeHandlingStatusByIDs reduces the statuses of every record
// carrying one of q.IDs.
func (s *MemoryStream) GetCompositeHandlingStatusByIDs(ctx context.Context, q CompositeByIDsQuery) (handling.Composite, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateConcern(q.Concern); err != nil {
		return 0, err
	}

	s.handlingMu.Lock()
	defer s.handlingMu.Unlock()
	s.partitionMu.Lock()
	defer s.partitionMu.Unlock()

	var statuses []handling.Status
	for _, id := range q.IDs {
		locs := s.idLocatorsLocked(id, false)
		if q.Locator != nil {
			locs = []locator.Locator{*q.Locator}
		}
		f := record.Filter{StringSerializedID: &id, IDType: q.IDType, VersionMatch: q.VersionMatch}
		matches, err := s.scanLocked(locs, f, nil)
		if err != nil {
			return 0, err
		}
		statuses = append(statuses, s.statusesLocked(q.Concern, matches)...)
	}
	return handling.Reduce(statuses), nil
}

// CompositeByTagsQuery selects records by their tags for a composite status.
type CompositeByTagsQuery struct {
	Concern  string
	Tags     []record.NamedValue
	TagMatch record.TagMatchStrategy
	Locator  *locator.Locator
}

// GetCompositeHandlingStatusByTags reduces the statuses of every record whose
// tags match q.
func (s *MemoryStream) GetCompositeHandlingStatusByTags(ctx context.Context, q CompositeByTagsQuery) (handling.Composite, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateConcern(q.Concern); err != nil {
		return 0, err
	}

	s.handlingMu.Lock()
	defer s.handlingMu.Unlock()
	s.partitionMu.Lock()
	defer s.partitionMu.Unlock()

	locs := s.knownLocators(false)
	if q.Locator != nil {
		locs = []locator.Locator{*q.Locator}
	}
	matches, err := s.scanLocked(locs, record.Filter{Tags: q.Tags, TagMatch: q.TagMatch}, nil)
	if err != nil {
		return 0, err
	}
	return handling.Reduce(s.statusesLocked(q.Concern, matches)), nil
}

// statusesLocked returns the current status of each match. Caller holds handlingMu.
func (s *MemoryStream) statusesLocked(concern string, matches []located) []handling.Status {
	out := make([]handling.Status, len(matches))
	for i, m := range matches {
		out[i] = handling.CurrentStatus(s.ledgers[m.loc][concern], m.rec.InternalRecordID)
	}
	return out
}

// StreamHandlingOp toggles stream-wide handling.
type StreamHandlingOp struct {
	// NewStatus is DisabledForStream or AvailableByDefault.
	NewStatus handling.Status
	Details   string
	Tags      []record.NamedValue
}

// UpdateStreamHandling disables or re-enables claiming on every partition,
// including partitions created later. Disabling requires the stream to be
// enabled and vice versa.
func (s *MemoryStream) UpdateStreamHandling(ctx context.Context, op StreamHandlingOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var expected handling.Status
	switch op.NewStatus {
	case handling.DisabledForStream:
		expected = handling.AvailableByDefault
	case handling.AvailableByDefault:
		expected = handling.DisabledForStream
	default:
		return errors.NewUnsupportedError("stream handling status", op.NewStatus.String())
	}

	s.handlingMu.Lock()
	if current := s.streamStatusLocked(); current != expected {
		s.handlingMu.Unlock()
		return errors.NewPreconditionError("cannot set stream handling to "+op.NewStatus.String(), errors.ErrStatusMismatch).
			WithInternalRecordID(handling.StreamBlockingRecordID).
			WithConcern(handling.StreamBlockingConcern).
			WithStatuses([]string{expected.String()}, current.String())
	}
	e, err := s.newEntry(locator.Locator{}, handling.StreamBlockingConcern, nil, expected, op.NewStatus, op.Details, op.Tags)
	if err != nil {
		s.handlingMu.Unlock()
		return err
	}
	s.appendBlockingLocked(e)
	s.handlingMu.Unlock()

	s.logger.Info("stream handling changed", "status", op.NewStatus.String())
	s.bus.Publish(event.NewStreamHandlingChangedEvent(s.rep.Name, op.NewStatus, s.now()))
	return nil
}

// GetStreamHandlingStatus returns DisabledForStream while stream-wide
// handling is disabled, else AvailableByDefault.
func (s *MemoryStream) GetStreamHandlingStatus(ctx context.Context) (handling.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.handlingMu.Lock()
	defer s.handlingMu.Unlock()
	return s.streamStatusLocked(), nil
}
