package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"queuelab/internal/storage"
	"queuelab/internal/tui/styles"
)

// Lister is the part of storage.Store the view needs.
type Lister interface {
	List() ([]storage.HistoryItem, error)
}

type Model struct {
	Store Lister
	Table table.Model
	Items []storage.HistoryItem
	Err   error

	Width  int
	Height int
}

func NewModel(store Lister) Model {
	columns := []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Time", Width: 20},
		{Title: "Stages", Width: 8},
		{Title: "Admitted", Width: 10},
		{Title: "Dropped", Width: 10},
		{Title: "Completed", Width: 10},
		{Title: "p99 ms", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := Model{
		Store: store,
		Table: t,
	}
	m.Refresh()
	return m
}

// Refresh reloads the table from the store.
func (m *Model) Refresh() {
	if m.Store == nil {
		return
	}
	items, err := m.Store.List()
	m.Items, m.Err = items, err

	rows := make([]table.Row, len(items))
	for i, item := range items {
		id := item.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows[i] = table.Row{
			id,
			item.Timestamp.Format(time.DateTime),
			fmt.Sprintf("%d", len(item.Config.Stages)),
			fmt.Sprintf("%d", item.Summary.Admitted),
			fmt.Sprintf("%d", item.Summary.Dropped),
			fmt.Sprintf("%d", item.Summary.Completed),
			fmt.Sprintf("%.1f", item.Summary.P99SojournMs),
		}
	}
	m.Table.SetRows(rows)
}

// Selected returns the highlighted run, or nil.
func (m Model) Selected() *storage.HistoryItem {
	i := m.Table.Cursor()
	if i < 0 || i >= len(m.Items) {
		return nil
	}
	return &m.Items[i]
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Err != nil {
		return styles.Error.Render(fmt.Sprintf("history unavailable: %v", m.Err))
	}
	if len(m.Items) == 0 {
		return styles.Subtle.Render("No runs recorded yet.")
	}
	return styles.Box.Render(m.Table.View())
}
