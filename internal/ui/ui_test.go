package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/stream"
)

func TestTruncateANSI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{"fits", "short", 10, "short"},
		{"exact", "exactly10!", 10, "exactly10!"},
		{"truncated", "this is a long locator name", 10, "this is..."},
		{"tiny width", "anything", 3, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateANSI(tt.input, tt.maxWidth); got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}

	t.Run("styled input", func(t *testing.T) {
		styled := lipgloss.NewStyle().Bold(true).Render("a styled string that is long")
		got := TruncateANSI(styled, 12)
		if w := lipgloss.Width(got); w > 12 {
			t.Errorf("width = %d, want <= 12", w)
		}
	})
}

func TestStatusColor(t *testing.T) {
	for s := handling.AvailableByDefault; s <= handling.DisabledForStream; s++ {
		if _, ok := statusColors[s]; !ok {
			t.Errorf("no color for status %s", s)
		}
	}
	if got := StatusColor(handling.Status(99)); got != MutedColor {
		t.Errorf("StatusColor(unknown) = %v, want muted", got)
	}
}

func TestTable(t *testing.T) {
	out := Table([]string{"Name", "Value"}, [][]string{
		{"alpha", "1"},
		{"a-very-long-cell-value", "2"},
	}, 10)

	for _, want := range []string{"Name", "Value", "alpha", "a-very-...", "2"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "a-very-long-cell-value") {
		t.Errorf("long cell should be truncated:\n%s", out)
	}
}

func TestRenderStats(t *testing.T) {
	st := stream.Stats{
		Representation: stream.Representation{Name: "orders", InstanceID: uuid.Nil},
		Partitions: []stream.PartitionStats{
			{Locator: "p-0", Records: 3, LastRecordID: 5},
		},
		StreamStatus: handling.AvailableByDefault,
		LastEntryID:  7,
	}

	t.Run("no concerns", func(t *testing.T) {
		out := RenderStats(st, 0)
		for _, want := range []string{"stream orders", "last entry 7", "p-0", "no handling entries yet"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("with concerns", func(t *testing.T) {
		st := st
		st.Concerns = []stream.ConcernStats{{
			Concern: "billing",
			Entries: 6,
			ByStatus: map[handling.Status]int{
				handling.Completed:             2,
				handling.AvailableAfterFailure: 1,
				handling.AvailableByDefault:    1,
			},
		}}
		out := ConcernTable(st, 0)
		if !strings.Contains(out, "billing") {
			t.Fatalf("output missing concern:\n%s", out)
		}
		// available counts every available status
		line := ""
		for _, l := range strings.Split(out, "\n") {
			if strings.Contains(l, "billing") {
				line = l
			}
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == '│' || r == ' ' })
		want := []string{"billing", "6", "2", "0", "2", "0", "0"}
		if strings.Join(fields, ",") != strings.Join(want, ",") {
			t.Errorf("row = %v, want %v", fields, want)
		}
	})
}
