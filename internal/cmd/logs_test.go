package cmd

import (
	"bufio"
	"bytes"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/streamledger/internal/logging"
)

func TestLevelPriority(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"debug", 0},
		{"INFO", 1},
		{"warn", 2},
		{"ERROR", 3},
		{"trace", -1},
	}
	for _, tt := range tests {
		if got := levelPriority(tt.level); got != tt.want {
			t.Errorf("levelPriority(%q) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestLogEntry_UnmarshalJSON(t *testing.T) {
	line := `{"time":"2026-01-02T03:04:05Z","level":"WARN","msg":"record failed","concern":"billing","locator":"p-1","record":"p-1/4","worker":2}`

	var entry logEntry
	if err := entry.UnmarshalJSON([]byte(line)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if entry.Msg != "record failed" || entry.Concern != "billing" || entry.Locator != "p-1" {
		t.Errorf("entry = %+v", entry)
	}
	if len(entry.Extra) != 2 || entry.Extra["record"] != "p-1/4" {
		t.Errorf("Extra = %v, want record and worker", entry.Extra)
	}

	formatted := formatLogEntry(&entry)
	for _, want := range []string{"[WARN]", "record failed", "concern=", "billing", "record=", "worker="} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatLogEntry() missing %q: %s", want, formatted)
		}
	}
}

func TestLogFilter(t *testing.T) {
	now := time.Now()
	entry := &logEntry{
		Time:    now,
		Level:   "INFO",
		Msg:     "consumer finished",
		Concern: "billing",
		Extra:   map[string]any{"summary": "claimed=3"},
	}

	tests := []struct {
		name   string
		filter logFilter
		want   bool
	}{
		{"no filters", logFilter{minLevel: -1}, true},
		{"level below", logFilter{minLevel: 2}, false},
		{"level at", logFilter{minLevel: 1}, true},
		{"since before", logFilter{minLevel: -1, since: now.Add(-time.Minute)}, true},
		{"since after", logFilter{minLevel: -1, since: now.Add(time.Minute)}, false},
		{"concern match", logFilter{minLevel: -1, concern: "billing"}, true},
		{"concern mismatch", logFilter{minLevel: -1, concern: "shipping"}, false},
		{"locator mismatch", logFilter{minLevel: -1, locator: "p-0"}, false},
		{"grep message", logFilter{minLevel: -1, grep: regexp.MustCompile("finished")}, true},
		{"grep extra", logFilter{minLevel: -1, grep: regexp.MustCompile("claimed=\\d")}, true},
		{"grep miss", logFilter{minLevel: -1, grep: regexp.MustCompile("exhausted")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.passes(entry); got != tt.want {
				t.Errorf("passes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDisplayLogs(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLoggerTo(&logs, "debug")
	logger.Debug("starting")
	logger.WithConcern("billing").Info("consumer started", "workers", 2)
	logger.WithConcern("shipping").Warn("record failed, retries exhausted")
	logger.WithConcern("billing").Error("consumer stopped")
	logs.WriteString("not json at all\n")

	t.Run("concern filter", func(t *testing.T) {
		var out bytes.Buffer
		f := logFilter{minLevel: -1, concern: "billing"}
		if err := displayLogs(strings.NewReader(logs.String()), 0, f, &out); err != nil {
			t.Fatalf("displayLogs() error = %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "consumer started") || !strings.Contains(got, "consumer stopped") {
			t.Errorf("missing billing entries:\n%s", got)
		}
		if strings.Contains(got, "retries exhausted") {
			t.Errorf("shipping entry should be filtered:\n%s", got)
		}
		if !strings.Contains(got, "not json at all") {
			t.Errorf("raw lines should be shown:\n%s", got)
		}
	})

	t.Run("tail", func(t *testing.T) {
		var out bytes.Buffer
		if err := displayLogs(strings.NewReader(logs.String()), 2, logFilter{minLevel: 3}, &out); err != nil {
			t.Fatalf("displayLogs() error = %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d lines, want 2:\n%s", len(lines), out.String())
		}
		if !strings.Contains(lines[0], "consumer stopped") {
			t.Errorf("first line = %q, want the error entry", lines[0])
		}
	})

	t.Run("nothing matches", func(t *testing.T) {
		var out bytes.Buffer
		f := logFilter{minLevel: -1, stream: "nope"}
		if err := displayLogs(strings.NewReader(logs.String()[:strings.Index(logs.String(), "not json")]), 0, f, &out); err != nil {
			t.Fatalf("displayLogs() error = %v", err)
		}
		if !strings.Contains(out.String(), "No matching log entries found.") {
			t.Errorf("output = %q", out.String())
		}
	})
}

func TestLineTailer(t *testing.T) {
	var file bytes.Buffer
	tailer := &lineTailer{reader: bufio.NewReader(&file)}

	file.WriteString("first\nsec")
	lines, err := tailer.next()
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if !slices.Equal(lines, []string{"first"}) {
		t.Errorf("next() = %v, want [first]", lines)
	}

	file.WriteString("ond\n\nthird\n")
	lines, err = tailer.next()
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if !slices.Equal(lines, []string{"second", "third"}) {
		t.Errorf("next() = %v, want [second third]", lines)
	}
}
