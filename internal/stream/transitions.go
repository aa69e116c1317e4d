package stream

import (
	"context"

	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/locator"
	"github.com/Iron-Ham/streamledger/internal/record"
)

// TransitionOp addresses one record for a named transition.
type TransitionOp struct {
	InternalRecordID  int64
	Concern           string
	Details           string
	Tags              []record.NamedValue
	InheritRecordTags bool
	Locator           *locator.Locator
}

func (s *MemoryStream) transition(ctx context.Context, op TransitionOp, to handling.Status, from ...handling.Status) error {
	return s.UpdateStatus(ctx, UpdateStatusOp{
		InternalRecordID:          op.InternalRecordID,
		Concern:                   op.Concern,
		NewStatus:                 to,
		AcceptableCurrentStatuses: from,
		Details:                   op.Details,
		Tags:                      op.Tags,
		InheritRecordTags:         op.InheritRecordTags,
		Locator:                   op.Locator,
	})
}

// CompleteRunningHandle marks a Running record Completed.
func (s *MemoryStream) CompleteRunningHandle(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.Completed, handling.Running)
}

// FailRunningHandle marks a Running record Failed. Details should carry the
// failure; a Failed record is not claimable until ResetFailedHandle.
func (s *MemoryStream) FailRunningHandle(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.Failed, handling.Running)
}

// CancelRunningHandle cancels another party's claim.
func (s *MemoryStream) CancelRunningHandle(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.AvailableAfterExternalCancellation, handling.Running)
}

// SelfCancelRunningHandle gives up the caller's own claim.
func (s *MemoryStream) SelfCancelRunningHandle(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.AvailableAfterSelfCancellation, handling.Running)
}

// ResetFailedHandle makes a Failed record claimable again.
func (s *MemoryStream) ResetFailedHandle(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.AvailableAfterFailure, handling.Failed)
}

// DisableHandlingForRecord stops the concern from claiming an available record.
func (s *MemoryStream) DisableHandlingForRecord(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.DisabledForRecord, handling.AvailableStatuses()...)
}

// EnableHandlingForRecord reverses DisableHandlingForRecord.
func (s *MemoryStream) EnableHandlingForRecord(ctx context.Context, op TransitionOp) error {
	return s.transition(ctx, op, handling.AvailableByDefault, handling.DisabledForRecord)
}

// DisableHandlingForStream blocks every claim on every partition.
func (s *MemoryStream) DisableHandlingForStream(ctx context.Context, details string) error {
	return s.UpdateStreamHandling(ctx, StreamHandlingOp{NewStatus: handling.DisabledForStream, Details: details})
}

// EnableHandlingForStream reverses DisableHandlingForStream.
func (s *MemoryStream) EnableHandlingForStream(ctx context.Context, details string) error {
	return s.UpdateStreamHandling(ctx, StreamHandlingOp{NewStatus: handling.AvailableByDefault, Details: details})
}
