// Package handling defines the vocabulary of the handling ledger: statuses,
// composite status reduction, ledger entries and the events they record.
package handling

import (
	"strconv"
	"strings"

	"github.com/Iron-Ham/streamledger/internal/errors"
)

// Status is the handling state of one record for one concern.
type Status int

const (
	AvailableByDefault Status = iota
	Running
	Completed
	Failed
	AvailableAfterFailure
	AvailableAfterSelfCancellation
	AvailableAfterExternalCancellation
	DisabledForRecord
	DisabledForStream
)

var statusNames = []string{
	"AvailableByDefault",
	"Running",
	"Completed",
	"Failed",
	"AvailableAfterFailure",
	"AvailableAfterSelfCancellation",
	"AvailableAfterExternalCancellation",
	"DisabledForRecord",
	"DisabledForStream",
}

// AllStatuses lists every status in declaration order.
func AllStatuses() []Status {
	out := make([]Status, len(statusNames))
	for i := range out {
		out[i] = Status(i)
	}
	return out
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, s) {
			return Status(i), nil
		}
	}
	return 0, errors.NewUnsupportedError("handling status", s)
}

// IsAvailable reports whether a record in this status can be claimed.
func (s Status) IsAvailable() bool {
	switch s {
	case AvailableByDefault, AvailableAfterFailure, AvailableAfterSelfCancellation, AvailableAfterExternalCancellation:
		return true
	default:
		return false
	}
}

// AvailableStatuses returns the statuses from which a record may be claimed.
func AvailableStatuses() []Status {
	return []Status{AvailableByDefault, AvailableAfterFailure, AvailableAfterSelfCancellation, AvailableAfterExternalCancellation}
}

// Names renders statuses for error messages.
func Names(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
