package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Iron-Ham/streamledger/internal/handling"
	"github.com/Iron-Ham/streamledger/internal/stream"
)

// Table renders rows under headers with a rounded border. Cells wider than
// maxCell columns are truncated; maxCell <= 0 disables truncation.
func Table(headers []string, rows [][]string, maxCell int) string {
	trimmed := make([][]string, len(rows))
	for i, row := range rows {
		out := make([]string, len(row))
		for j, c := range row {
			if maxCell > 0 {
				c = TruncateANSI(c, maxCell)
			}
			out[j] = c
		}
		trimmed[i] = out
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(BorderColor)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return Header
			}
			return Cell
		}).
		Headers(headers...).
		Rows(trimmed...)
	return t.String()
}

// PartitionTable renders one row per partition.
func PartitionTable(st stream.Stats, maxCell int) string {
	rows := make([][]string, 0, len(st.Partitions))
	for _, p := range st.Partitions {
		rows = append(rows, []string{
			p.Locator,
			strconv.Itoa(p.Records),
			strconv.FormatInt(p.LastRecordID, 10),
		})
	}
	return Table([]string{"Partition", "Records", "Last ID"}, rows, maxCell)
}

// ConcernTable renders one row per concern, counting records by the status
// of their latest ledger entry.
func ConcernTable(st stream.Stats, maxCell int) string {
	rows := make([][]string, 0, len(st.Concerns))
	for _, c := range st.Concerns {
		available := 0
		for status, n := range c.ByStatus {
			if status.IsAvailable() {
				available += n
			}
		}
		rows = append(rows, []string{
			c.Concern,
			strconv.Itoa(c.Entries),
			strconv.Itoa(available),
			strconv.Itoa(c.ByStatus[handling.Running]),
			strconv.Itoa(c.ByStatus[handling.Completed]),
			strconv.Itoa(c.ByStatus[handling.Failed]),
			strconv.Itoa(c.ByStatus[handling.DisabledForRecord]),
		})
	}
	return Table(
		[]string{"Concern", "Entries", "Available", "Running", "Completed", "Failed", "Disabled"},
		rows, maxCell,
	)
}

// RenderStats renders the stream header followed by the partition and
// concern tables.
func RenderStats(st stream.Stats, maxCell int) string {
	var b strings.Builder
	b.WriteString(Title.Render(fmt.Sprintf("stream %s", st.Representation.Name)))
	b.WriteString("\n")
	b.WriteString(Subtitle.Render(fmt.Sprintf("instance %s · last entry %d · handling ",
		st.Representation.InstanceID, st.LastEntryID)))
	b.WriteString(RenderStatus(st.StreamStatus))
	b.WriteString("\n\n")
	b.WriteString(PartitionTable(st, maxCell))
	b.WriteString("\n")
	if len(st.Concerns) == 0 {
		b.WriteString(Muted.Render("no handling entries yet"))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(ConcernTable(st, maxCell))
	b.WriteString("\n")
	return b.String()
}
