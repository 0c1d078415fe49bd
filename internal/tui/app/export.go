package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"queuelab/internal/report"
	"queuelab/internal/stats"
)

// export writes the finished run, or the selected history run, next to the
// working directory.
func (m Model) export() (tea.Model, tea.Cmd) {
	switch {
	case m.CurrentView == ViewHistory:
		item := m.HistoryView.Selected()
		if item == nil {
			m.StatusMsg = "No run selected."
			break
		}
		m.exportTo(item.Snapshot, "queuelab_history_"+item.ID)
	case m.Finished && m.Err == nil:
		ts := time.Now().Format("20060102-150405")
		m.exportTo(m.Snapshot, "queuelab_report_"+ts)
	default:
		m.StatusMsg = "No results to export yet."
	}
	return m, clearStatusCmd()
}

func (m *Model) exportTo(snap stats.Snapshot, base string) {
	if err := report.ExportCSV(snap, base+".csv"); err != nil {
		m.StatusMsg = fmt.Sprintf("Export failed: %v", err)
		return
	}
	if err := report.ExportJSON(snap, base+".json"); err != nil {
		m.StatusMsg = fmt.Sprintf("Export failed: %v", err)
		return
	}
	m.StatusMsg = fmt.Sprintf("Exported to %s.{csv,json}", base)
}
