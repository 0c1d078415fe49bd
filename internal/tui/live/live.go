package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"queuelab/internal/runner"
	"queuelab/internal/tui/components"
	"queuelab/internal/tui/styles"
)

// Model renders live progress of a running simulation.
type Model struct {
	Progress runner.Progress
	Bar      progress.Model
	Table    table.Model

	Arrivals components.Sparkline
	Drops    components.Sparkline

	lastAdmitted uint64
	lastDropped  uint64

	Width  int
	Height int
}

func NewModel(cfg runner.Config) Model {
	columns := []table.Column{
		{Title: "Stage", Width: 6},
		{Title: "Ch", Width: 4},
		{Title: "Admitted", Width: 10},
		{Title: "Dropped", Width: 10},
		{Title: "Processed", Width: 10},
		{Title: "Buffer", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(cfg.Stages)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	m := Model{
		Bar:      progress.New(progress.WithDefaultGradient()),
		Table:    t,
		Arrivals: components.NewSparkline(40, "Stage 1 admissions", styles.Active),
		Drops:    components.NewSparkline(40, "Drops (all stages)", styles.Warn),
		Progress: runner.Progress{Duration: cfg.Duration},
	}
	m.setRows(cfg, nil)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.Progress:
		var admitted, dropped uint64
		if len(msg.Stages) > 0 {
			admitted = msg.Stages[0].Admitted
		}
		for _, st := range msg.Stages {
			dropped += st.Dropped
		}
		m.Arrivals.Add(admitted - m.lastAdmitted)
		m.Drops.Add(dropped - m.lastDropped)
		m.lastAdmitted, m.lastDropped = admitted, dropped

		m.Progress = msg
		m.setRows(runner.Config{}, msg.Stages)
		return m, m.Bar.SetPercent(m.Percent())

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Bar.Width = msg.Width - 8

		half := msg.Width/2 - 8
		if half < 10 {
			half = 10
		}
		m.Arrivals.Width = half
		m.Drops.Width = half
		return m, nil

	case progress.FrameMsg:
		bar, cmd := m.Bar.Update(msg)
		m.Bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Percent is elapsed over configured duration, capped at 1.
func (m Model) Percent() float64 {
	if m.Progress.Duration <= 0 {
		return 0
	}
	pct := float64(m.Progress.Elapsed) / float64(m.Progress.Duration)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func (m *Model) setRows(cfg runner.Config, stages []runner.StageProgress) {
	if stages == nil {
		rows := make([]table.Row, len(cfg.Stages))
		for i, s := range cfg.Stages {
			rows[i] = table.Row{
				fmt.Sprintf("%d", i+1),
				fmt.Sprintf("%d", s.Channels),
				"0", "0", "0",
				fmt.Sprintf("0/%d", s.Capacity),
			}
		}
		m.Table.SetRows(rows)
		return
	}

	rows := make([]table.Row, len(stages))
	for i, st := range stages {
		ch := ""
		if i < len(m.Table.Rows()) {
			ch = m.Table.Rows()[i][1]
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", st.Index+1),
			ch,
			fmt.Sprintf("%d", st.Admitted),
			fmt.Sprintf("%d", st.Dropped),
			fmt.Sprintf("%d", st.Processed),
			fmt.Sprintf("%d/%d", st.Depth, st.Capacity),
		}
	}
	m.Table.SetRows(rows)
}

func (m Model) View() string {
	s := strings.Builder{}

	p := m.Progress
	var dropped, queued, capacity int
	for _, st := range p.Stages {
		dropped += int(st.Dropped)
		queued += st.Depth
		capacity += st.Capacity
	}
	fill := 0.0
	if capacity > 0 {
		fill = float64(queued) / float64(capacity)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(fmt.Sprintf("STATE: %s\nTIME:  %s / %s", styles.Active.Render(p.State.String()), p.Elapsed.Round(100*time.Millisecond), p.Duration)),
		styles.Box.Render(fmt.Sprintf("DROPPED: %s", styles.Warn.Render(fmt.Sprintf("%d", dropped)))),
		styles.Box.Render(fmt.Sprintf("QUEUED: %s", styles.Fill(fill).Render(fmt.Sprintf("%d/%d", queued, capacity)))),
	)
	s.WriteString(header)
	s.WriteString("\n\n")

	s.WriteString(styles.Box.Render(m.Table.View()))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.Arrivals.View()),
		styles.Box.Render(m.Drops.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(m.Bar.View())
	return s.String()
}
