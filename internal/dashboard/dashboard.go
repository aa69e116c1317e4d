// Package dashboard is a live terminal view of a stream's partitions and
// handling ledgers, refreshed while a workload runs against it.
package dashboard

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/streamledger/internal/stream"
	"github.com/Iron-Ham/streamledger/internal/ui"
)

// DefaultRefresh is the stats polling interval used when none is given.
const DefaultRefresh = 200 * time.Millisecond

// Source provides the snapshots the dashboard renders.
type Source interface {
	Stats(ctx context.Context) (stream.Stats, error)
}

// DoneMsg reports that the workload finished. The dashboard takes one last
// snapshot and exits.
type DoneMsg struct {
	Summary string
	Err     error
}

type statsMsg struct {
	stats stream.Stats
	err   error
}

type tickMsg time.Time

// Model is the bubbletea model of the dashboard.
type Model struct {
	source   Source
	interval time.Duration
	spinner  spinner.Model

	stats  stream.Stats
	loaded bool
	err    error
	done   *DoneMsg
	width  int
}

// New returns a dashboard polling src every interval.
func New(src Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.Primary
	return Model{source: src, interval: interval, spinner: s}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m Model) fetch() tea.Msg {
	st, err := m.source.Stats(context.Background())
	return statsMsg{stats: st, err: err}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statsMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
		}
		if m.done != nil {
			return m, tea.Quit
		}
		return m, m.tick()

	case tickMsg:
		return m, m.fetch

	case DoneMsg:
		m.done = &msg
		return m, m.fetch

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.loaded {
		return m.spinner.View() + " loading stream stats\n"
	}

	var b strings.Builder
	switch {
	case m.done != nil && m.done.Err != nil:
		b.WriteString(ui.Error.Render("✗ " + m.done.Err.Error()))
	case m.done != nil:
		b.WriteString(ui.Secondary.Render("✓ " + m.done.Summary))
	default:
		b.WriteString(m.spinner.View() + " running")
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(ui.Error.Render("stats: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(ui.RenderStats(m.stats, m.maxCell()))
	if m.done == nil {
		b.WriteString(ui.Muted.Render("q to quit"))
		b.WriteString("\n")
	}
	return b.String()
}

// maxCell bounds table cells to a share of the terminal width.
func (m Model) maxCell() int {
	if m.width <= 0 {
		return 0
	}
	return max(m.width/4, 8)
}

// Done returns the workload outcome, or nil while it is still running.
func (m Model) Done() *DoneMsg { return m.done }

// Run shows the dashboard on out while work runs. The dashboard exits when
// work returns or the user quits; quitting cancels the context passed to
// work. Run returns work's error.
func Run(ctx context.Context, src Source, interval time.Duration, out io.Writer,
	work func(ctx context.Context) (string, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(src, interval), tea.WithOutput(out), tea.WithContext(ctx))

	result := make(chan error, 1)
	go func() {
		summary, err := work(ctx)
		result <- err
		p.Send(DoneMsg{Summary: summary, Err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-result
		return err
	}
	cancel()
	return <-result
}
