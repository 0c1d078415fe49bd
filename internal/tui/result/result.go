package result

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"queuelab/internal/report"
	"queuelab/internal/stats"
	"queuelab/internal/tui/styles"
)

// Model shows the final report of a finished run.
type Model struct {
	Snapshot stats.Snapshot

	Width  int
	Height int
}

func NewModel(snap stats.Snapshot) Model {
	return Model{Snapshot: snap}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.Width = msg.Width
		m.Height = msg.Height
	}
	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("Simulation Complete"))
	s.WriteString("\n\n")

	cards := make([]string, 0, len(m.Snapshot.Stages))
	for _, st := range m.Snapshot.Stages {
		bal := report.ChannelBalance(st)
		lines := []string{
			styles.Active.Render(fmt.Sprintf("Stage %d", st.Index+1)),
			fmt.Sprintf("Total:     %d", st.TotalRequests),
			fmt.Sprintf("Dropped:   %s", styles.Warn.Render(fmt.Sprintf("%d", st.DroppedRequests))),
			fmt.Sprintf("Abandoned: %d", st.Abandoned),
			fmt.Sprintf("Residual:  %d", st.Residual),
			fmt.Sprintf("Balance:   %.2f ± %.2f", bal.Mean, bal.StdDev),
		}
		for _, c := range st.Channels {
			lines = append(lines, styles.Subtle.Render(fmt.Sprintf(
				"ch%d  %d req  avg %.0fms  idle %dms",
				c.Index+1, c.ProcessedRequests,
				float64(c.AverageProcessingTime())/1e6, c.IdleTime.Milliseconds(),
			)))
		}
		cards = append(cards, styles.Box.Render(strings.Join(lines, "\n")))
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	s.WriteString("\n\n")

	soj := m.Snapshot.Sojourn
	s.WriteString(styles.Box.Render(fmt.Sprintf(
		"Completed: %s\nEnd-to-end  avg %.0fms  p50 %.0fms  p99 %.0fms  max %.0fms",
		styles.Success.Render(fmt.Sprintf("%d", m.Snapshot.Completed())),
		float64(soj.Mean)/1e6, float64(soj.P50)/1e6, float64(soj.P99)/1e6, float64(soj.Max)/1e6,
	)))

	return s.String()
}
