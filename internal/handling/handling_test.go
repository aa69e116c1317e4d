package handling

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/streamledger/internal/errors"
	"github.com/Iron-Ham/streamledger/internal/serializer"
)

func TestStatus_IsAvailable(t *testing.T) {
	available := map[Status]bool{
		AvailableByDefault:                 true,
		AvailableAfterFailure:              true,
		AvailableAfterSelfCancellation:     true,
		AvailableAfterExternalCancellation: true,
	}
	for _, s := range AllStatuses() {
		if got := s.IsAvailable(); got != available[s] {
			t.Errorf("%s.IsAvailable() = %v, want %v", s, got, available[s])
		}
	}
}

func TestStatus_TextRoundTrip(t *testing.T) {
	for _, s := range AllStatuses() {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%s) error = %v", s, err)
		}
		var back Status
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if back != s {
			t.Errorf("round trip %s = %s", s, back)
		}
	}
	if _, err := ParseStatus("Sleeping"); !errors.Is(err, errors.ErrUnsupportedValue) {
		t.Errorf("ParseStatus() error = %v, want ErrUnsupportedValue", err)
	}
	if got := Status(99).String(); got != "Status(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []Status
		allCompleted bool
		anyFailed    bool
		mixed        bool
		str          string
	}{
		{"empty", nil, false, false, false, "None"},
		{"all completed", []Status{Completed, Completed}, true, false, false, "Completed"},
		{"one failed", []Status{Completed, Failed}, false, true, true, "Completed|Failed"},
		{"running and available", []Status{Running, AvailableByDefault}, false, false, true, "AvailableByDefault|Running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Reduce(tt.statuses)
			if c.AllCompleted() != tt.allCompleted {
				t.Errorf("AllCompleted() = %v, want %v", c.AllCompleted(), tt.allCompleted)
			}
			if c.AnyFailed() != tt.anyFailed {
				t.Errorf("AnyFailed() = %v, want %v", c.AnyFailed(), tt.anyFailed)
			}
			if c.IsMixed() != tt.mixed {
				t.Errorf("IsMixed() = %v, want %v", c.IsMixed(), tt.mixed)
			}
			if c.String() != tt.str {
				t.Errorf("String() = %q, want %q", c.String(), tt.str)
			}
		})
	}

	if !Reduce([]Status{AvailableAfterFailure}).AnyAvailable() {
		t.Error("AnyAvailable() = false for AvailableAfterFailure")
	}
}

func entry(id, recordID int64, s Status) Entry {
	return Entry{EntryID: id, Metadata: EntryMetadata{InternalRecordID: recordID, Status: s}}
}

func TestCurrentStatusAndHistory(t *testing.T) {
	entries := []Entry{
		entry(1, 10, AvailableByDefault),
		entry(2, 10, Running),
		entry(5, 11, AvailableByDefault),
		entry(4, 10, Failed),
	}

	if got := CurrentStatus(entries, 10); got != Failed {
		t.Errorf("CurrentStatus(10) = %s, want Failed", got)
	}
	if got := CurrentStatus(entries, 99); got != AvailableByDefault {
		t.Errorf("CurrentStatus(99) = %s, want AvailableByDefault", got)
	}

	var ids []int64
	for _, e := range History(entries, 10) {
		ids = append(ids, e.EntryID)
	}
	if !slices.Equal(ids, []int64{1, 2, 4}) {
		t.Errorf("History(10) ids = %v", ids)
	}

	latest := Latest(entries)
	if latest[10].EntryID != 4 || latest[11].EntryID != 5 {
		t.Errorf("Latest() = %v", latest)
	}
}

func TestNewEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		from, to Status
		name     string
	}{
		{AvailableByDefault, AvailableByDefault, "available"},
		{DisabledForRecord, AvailableByDefault, "record-enabled"},
		{DisabledForStream, AvailableByDefault, "stream-enabled"},
		{AvailableByDefault, Running, "running"},
		{Running, Completed, "completed"},
		{Running, Failed, "failed"},
		{Failed, AvailableAfterFailure, "retry-requested"},
		{Running, AvailableAfterSelfCancellation, "self-cancelled"},
		{Running, AvailableAfterExternalCancellation, "externally-cancelled"},
		{AvailableByDefault, DisabledForRecord, "record-disabled"},
		{AvailableByDefault, DisabledForStream, "stream-disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewEvent(tt.from, tt.to, "d", ts)
			if err != nil {
				t.Fatalf("NewEvent() error = %v", err)
			}
			if ev.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", ev.Name(), tt.name)
			}
			if ev.Status() != tt.to {
				t.Errorf("Status() = %s, want %s", ev.Status(), tt.to)
			}
			if !ev.OccurredAt().Equal(ts) {
				t.Errorf("OccurredAt() = %v", ev.OccurredAt())
			}
		})
	}

	if _, err := NewEvent(Running, Status(42), "", ts); !errors.Is(err, errors.ErrUnsupportedValue) {
		t.Errorf("NewEvent(unknown) error = %v", err)
	}
}

func TestDescribeDecodeEvent(t *testing.T) {
	f := serializer.NewFactory()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, rep := range []serializer.Representation{
		serializer.DefaultRepresentation,
		{Kind: serializer.KindYAML, Format: serializer.FormatBinary},
	} {
		t.Run(rep.String(), func(t *testing.T) {
			ev, _ := NewEvent(Running, Failed, "disk full", ts)
			d, err := DescribeEvent(f, rep, ev)
			if err != nil {
				t.Fatalf("DescribeEvent() error = %v", err)
			}
			if d.PayloadType.WithVersion.Name != "FailedEvent" {
				t.Errorf("payload type = %v", d.PayloadType.WithVersion)
			}

			back, err := DecodeEvent(f, d)
			if err != nil {
				t.Fatalf("DecodeEvent() error = %v", err)
			}
			failed, ok := back.(*FailedEvent)
			if !ok {
				t.Fatalf("DecodeEvent() type = %T", back)
			}
			if failed.Details != "disk full" || !failed.TimestampUTC.Equal(ts) {
				t.Errorf("decoded = %+v", failed)
			}
		})
	}
}
