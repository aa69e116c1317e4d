package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/streamledger/internal/config"
	"github.com/Iron-Ham/streamledger/internal/logging"
	"github.com/Iron-Ham/streamledger/internal/ui"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View streamledger logs",
	Long: `View and filter the JSON log file written when logging.file is set.

Examples:
  # Show the last 50 lines
  streamledger logs

  # Follow logs in real-time
  streamledger logs -f

  # Only warnings and errors for one concern
  streamledger logs --level warn --concern billing

  # Show logs from the last hour matching a pattern
  streamledger logs --since 1h --grep "retries exhausted|failed"`,
	RunE: runLogs,
}

var (
	logsFile    string
	logsTail    int
	logsFollow  bool
	logsLevel   string
	logsSince   string
	logsGrep    string
	logsStream  string
	logsConcern string
	logsLocator string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file (default: logging.file)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsStream, "stream", "", "Only entries of this stream")
	logsCmd.Flags().StringVar(&logsConcern, "concern", "", "Only entries of this concern")
	logsCmd.Flags().StringVar(&logsLocator, "locator", "", "Only entries of this partition")
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Stream  string         `json:"stream,omitempty"`
	Concern string         `json:"concern,omitempty"`
	Locator string         `json:"locator,omitempty"`
	Extra   map[string]any `json:"-"` // Captures additional fields
}

// UnmarshalJSON implements custom unmarshaling to capture extra fields
func (e *logEntry) UnmarshalJSON(data []byte) error {
	// First, unmarshal known fields using a type alias to avoid recursion
	type Alias logEntry
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Then unmarshal all fields to capture extras
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	// Remove known fields, keep the rest as extra
	for _, known := range []string{"time", "level", "msg", "stream", "concern", "locator"} {
		delete(all, known)
	}

	if len(all) > 0 {
		e.Extra = all
	}

	return nil
}

var (
	levelStyles = map[string]lipgloss.Style{
		logging.LevelDebug: ui.Muted,
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(ui.BlueColor),
		logging.LevelWarn:  ui.Warning,
		logging.LevelError: ui.Error,
	}
	fieldStyle = lipgloss.NewStyle().Foreground(ui.PrimaryColor)
)

// levelPriority returns the priority of a log level for filtering
func levelPriority(level string) int {
	return slices.Index(logging.ValidLevels(), strings.ToUpper(level))
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry *logEntry) string {
	var sb strings.Builder

	sb.WriteString(ui.Muted.Render("[" + entry.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	level := strings.ToUpper(entry.Level)
	sb.WriteString(levelStyles[level].Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(entry.Msg)

	field := func(key, value string) {
		sb.WriteString(" ")
		sb.WriteString(fieldStyle.Render(key + "="))
		sb.WriteString(value)
	}
	if entry.Stream != "" {
		field("stream", entry.Stream)
	}
	if entry.Locator != "" {
		field("locator", entry.Locator)
	}
	if entry.Concern != "" {
		field("concern", entry.Concern)
	}

	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		field(k, fmt.Sprintf("%v", entry.Extra[k]))
	}

	return sb.String()
}

// logFilter selects the entries shown.
type logFilter struct {
	minLevel int
	since    time.Time
	grep     *regexp.Regexp
	stream   string
	concern  string
	locator  string
}

// passes checks if a log entry passes all filter criteria
func (f logFilter) passes(entry *logEntry) bool {
	// Level filter
	if f.minLevel >= 0 && levelPriority(entry.Level) < f.minLevel {
		return false
	}

	// Time filter
	if !f.since.IsZero() && entry.Time.Before(f.since) {
		return false
	}

	if f.stream != "" && entry.Stream != f.stream {
		return false
	}
	if f.concern != "" && entry.Concern != f.concern {
		return false
	}
	if f.locator != "" && entry.Locator != f.locator {
		return false
	}

	// Grep filter - search in message and extra fields
	if f.grep != nil {
		searchText := entry.Msg
		for _, v := range entry.Extra {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if !f.grep.MatchString(searchText) {
			return false
		}
	}

	return true
}

// format renders line, or reports false when it is filtered out. Lines that
// are not JSON are shown as they are.
func (f logFilter) format(line string) (string, bool) {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return line, true
	}
	if !f.passes(&entry) {
		return "", false
	}
	return formatLogEntry(&entry), true
}

func buildLogFilter() (logFilter, error) {
	f := logFilter{minLevel: -1, stream: logsStream, concern: logsConcern, locator: logsLocator}
	if logsLevel != "" {
		f.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return f, fmt.Errorf("invalid duration format: %w", err)
		}
		f.since = time.Now().Add(-duration)
	}

	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return f, fmt.Errorf("invalid grep pattern: %w", err)
		}
		f.grep = re
	}
	return f, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	logPath := logsFile
	if logPath == "" {
		logPath = config.Get().Logging.File
	}
	if logPath == "" {
		fmt.Fprintln(out, "Logging goes to stderr; set logging.file to keep a log file.")
		return nil
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No logs found at %s\n", logPath)
		return nil
	}

	filter, err := buildLogFilter()
	if err != nil {
		return err
	}

	// Follow mode
	if logsFollow {
		return followLogs(cmd.Context(), logPath, filter, out)
	}

	// Non-follow mode: read and display logs
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()
	return displayLogs(file, logsTail, filter, out)
}

// displayLogs reads r and writes the last tail filtered entries to out
func displayLogs(r io.Reader, tail int, filter logFilter, out io.Writer) error {
	var entries []string
	scanner := bufio.NewScanner(r)

	// Increase buffer size for potentially long log lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if formatted, ok := filter.format(line); ok {
			entries = append(entries, formatted)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	// Apply tail limit
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}

	for _, entry := range entries {
		fmt.Fprintln(out, entry)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}

	return nil
}

// followLogs prints entries appended to logPath until ctx is done.
func followLogs(ctx context.Context, logPath string, filter logFilter, out io.Writer) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(logPath); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	tailer := &lineTailer{reader: bufio.NewReader(file)}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("error watching log file: %w", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) {
				continue
			}
			lines, err := tailer.next()
			if err != nil {
				return fmt.Errorf("error reading log file: %w", err)
			}
			for _, line := range lines {
				if formatted, ok := filter.format(line); ok {
					fmt.Fprintln(out, formatted)
				}
			}
		}
	}
}

// lineTailer returns complete lines as they are appended, holding back a
// trailing partial line until its newline arrives.
type lineTailer struct {
	reader  *bufio.Reader
	partial string
}

func (t *lineTailer) next() ([]string, error) {
	var lines []string
	for {
		chunk, err := t.reader.ReadString('\n')
		if err == io.EOF {
			t.partial += chunk
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		line := strings.TrimSpace(t.partial + chunk)
		t.partial = ""
		if line != "" {
			lines = append(lines, line)
		}
	}
}
