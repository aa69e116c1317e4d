// Package errors provides centralized error definitions and error handling utilities
// for the streamledger codebase. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent the failure classes of the record stream:
//   - ConflictError: a put strategy found pre-existing matching records
//   - PreconditionError: a status transition found an unacceptable current status
//   - UnsupportedError: an enum value has no handling branch (programming error)
//   - StreamError: errors related to stream lifecycle (create, delete, prune)
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewConflictError("record already exists", errors.ErrRecordExists).
//	    WithStrategy("ThrowIfFoundByID").
//	    WithRecordID("order-7")
//
//	// Semantic error
//	err := errors.NewNotFoundError("record", "order-7")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrStatusMismatch) { ... }
//
//	var precondition *errors.PreconditionError
//	if errors.As(err, &precondition) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Stream-related sentinel errors
var (
	// ErrStreamNotFound indicates that the stream has not been created.
	ErrStreamNotFound = New("stream not found")
	// ErrStreamExists indicates that the stream was already created.
	ErrStreamExists = New("stream already exists")
)

// Record-related sentinel errors
var (
	// ErrRecordNotFound indicates that no record matched a query.
	ErrRecordNotFound = New("record not found")
	// ErrRecordExists indicates that a put found matching records.
	ErrRecordExists = New("record already exists")
	// ErrInternalIDTaken indicates that an explicit internal record id is in use.
	ErrInternalIDTaken = New("internal record id already in use")
)

// Handling-related sentinel errors
var (
	// ErrStatusMismatch indicates that the current handling status is not acceptable
	// for the requested transition.
	ErrStatusMismatch = New("handling status mismatch")
	// ErrUnsupportedValue indicates an enum value with no handling branch.
	ErrUnsupportedValue = New("unsupported value")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LedgerError is the base interface for all streamledger errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type LedgerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatWithContext renders "<kind> [k=v, ...]: message[: cause]".
func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConflictError is returned when a Throw* existing-record strategy finds
// pre-existing matching records.
//
// Example:
//
//	err := errors.NewConflictError("existing records found", errors.ErrRecordExists).
//	    WithStrategy("ThrowIfFoundByIDAndType").
//	    WithRecordID("order-7").
//	    WithExistingIDs([]int64{3, 5})
//	fmt.Println(err) // "conflict error [strategy=ThrowIfFoundByIDAndType, id=order-7, existing=[3 5]]: ..."
type ConflictError struct {
	baseError
	Strategy    string
	RecordID    string
	Locator     string
	ExistingIDs []int64
}

// NewConflictError creates a new ConflictError.
func NewConflictError(message string, cause error) *ConflictError {
	return &ConflictError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithStrategy adds the existing-record strategy name to the error context.
func (e *ConflictError) WithStrategy(strategy string) *ConflictError {
	e.Strategy = strategy
	return e
}

// WithRecordID adds the string serialized record identifier to the error context.
func (e *ConflictError) WithRecordID(id string) *ConflictError {
	e.RecordID = id
	return e
}

// WithLocator adds the partition locator to the error context.
func (e *ConflictError) WithLocator(locator string) *ConflictError {
	e.Locator = locator
	return e
}

// WithExistingIDs adds the internal ids of the matching records.
func (e *ConflictError) WithExistingIDs(ids []int64) *ConflictError {
	e.ExistingIDs = ids
	return e
}

// Error returns the formatted error message.
func (e *ConflictError) Error() string {
	var parts []string
	if e.Strategy != "" {
		parts = append(parts, fmt.Sprintf("strategy=%s", e.Strategy))
	}
	if e.RecordID != "" {
		parts = append(parts, fmt.Sprintf("id=%s", e.RecordID))
	}
	if e.Locator != "" {
		parts = append(parts, fmt.Sprintf("locator=%s", e.Locator))
	}
	if len(e.ExistingIDs) > 0 {
		parts = append(parts, fmt.Sprintf("existing=%v", e.ExistingIDs))
	}
	return formatWithContext("conflict error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ConflictError) Is(target error) bool {
	if _, ok := target.(*ConflictError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PreconditionError is returned when a handling status transition is
// requested from a status that is not in the acceptable set.
//
// Example:
//
//	err := errors.NewPreconditionError("cannot complete handling", errors.ErrStatusMismatch).
//	    WithInternalRecordID(4).
//	    WithConcern("billing").
//	    WithStatuses([]string{"Running"}, "Completed")
type PreconditionError struct {
	baseError
	InternalRecordID int64
	Concern          string
	Locator          string
	Expected         []string
	Actual           string
}

// NewPreconditionError creates a new PreconditionError.
func NewPreconditionError(message string, cause error) *PreconditionError {
	return &PreconditionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		InternalRecordID: -1, // -1 indicates not set
	}
}

// WithInternalRecordID adds the internal record id to the error context.
func (e *PreconditionError) WithInternalRecordID(id int64) *PreconditionError {
	e.InternalRecordID = id
	return e
}

// WithConcern adds the handling concern to the error context.
func (e *PreconditionError) WithConcern(concern string) *PreconditionError {
	e.Concern = concern
	return e
}

// WithLocator adds the partition locator to the error context.
func (e *PreconditionError) WithLocator(locator string) *PreconditionError {
	e.Locator = locator
	return e
}

// WithStatuses records the acceptable statuses and the status actually found.
func (e *PreconditionError) WithStatuses(expected []string, actual string) *PreconditionError {
	e.Expected = expected
	e.Actual = actual
	return e
}

// Error returns the formatted error message.
func (e *PreconditionError) Error() string {
	var parts []string
	if e.InternalRecordID >= 0 {
		parts = append(parts, fmt.Sprintf("record=%d", e.InternalRecordID))
	}
	if e.Concern != "" {
		parts = append(parts, fmt.Sprintf("concern=%s", e.Concern))
	}
	if e.Locator != "" {
		parts = append(parts, fmt.Sprintf("locator=%s", e.Locator))
	}
	if len(e.Expected) > 0 {
		parts = append(parts, fmt.Sprintf("expected=%s", strings.Join(e.Expected, "|")))
	}
	if e.Actual != "" {
		parts = append(parts, fmt.Sprintf("actual=%s", e.Actual))
	}
	return formatWithContext("precondition error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PreconditionError) Is(target error) bool {
	if _, ok := target.(*PreconditionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// UnsupportedError is returned when an enum value (ordering strategy,
// existing-stream strategy, status target, ...) has no handling branch.
// It is a programming error and never retryable.
type UnsupportedError struct {
	baseError
	Kind  string
	Value string
}

// NewUnsupportedError creates a new UnsupportedError for the given kind and value.
func NewUnsupportedError(kind string, value any) *UnsupportedError {
	return &UnsupportedError{
		baseError: baseError{
			message:    fmt.Sprintf("unsupported %s", kind),
			cause:      ErrUnsupportedValue,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: false,
		},
		Kind:  kind,
		Value: fmt.Sprint(value),
	}
}

// Error returns the formatted error message.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s: %q", e.Kind, e.Value)
}

// Is checks if this error matches the target.
func (e *UnsupportedError) Is(target error) bool {
	if _, ok := target.(*UnsupportedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StreamError represents errors related to stream lifecycle management.
//
// Example:
//
//	err := errors.NewStreamError("create failed", errors.ErrStreamExists).WithStreamName("orders")
//	fmt.Println(err) // "stream error [stream=orders]: create failed: stream already exists"
type StreamError struct {
	baseError
	StreamName string
	Operation  string
}

// NewStreamError creates a new StreamError.
func NewStreamError(message string, cause error) *StreamError {
	return &StreamError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithStreamName adds the stream name to the error context.
func (e *StreamError) WithStreamName(name string) *StreamError {
	e.StreamName = name
	return e
}

// WithOperation adds the failing operation name to the error context.
func (e *StreamError) WithOperation(op string) *StreamError {
	e.Operation = op
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StreamError) WithRetryable(r bool) *StreamError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *StreamError) Error() string {
	var parts []string
	if e.StreamName != "" {
		parts = append(parts, fmt.Sprintf("stream=%s", e.StreamName))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}
	return formatWithContext("stream error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *StreamError) Is(target error) bool {
	if _, ok := target.(*StreamError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("record", "order-7")
//	fmt.Println(err) // "record 'order-7' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("retention count must be positive")
//	err = err.WithField("RetentionCount").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for mutex orders-lock", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for mutex orders-lock (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing LedgerError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ledgerErr LedgerError
	if As(err, &ledgerErr) {
		return ledgerErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsPermanent returns true if the error is a classified LedgerError that is
// explicitly not retryable. Unclassified errors are not permanent.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var ledgerErr LedgerError
	if As(err, &ledgerErr) {
		return !ledgerErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var ledgerErr LedgerError
	if As(err, &ledgerErr) {
		return ledgerErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LedgerError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var ledgerErr LedgerError
	if As(err, &ledgerErr) {
		return ledgerErr.Severity()
	}

	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (ConflictError, PreconditionError, UnsupportedError, or StreamError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var conflictErr *ConflictError
	var preconditionErr *PreconditionError
	var unsupportedErr *UnsupportedError
	var streamErr *StreamError

	return As(err, &conflictErr) || As(err, &preconditionErr) ||
		As(err, &unsupportedErr) || As(err, &streamErr)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
