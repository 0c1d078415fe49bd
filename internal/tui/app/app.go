package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"queuelab/internal/runner"
	"queuelab/internal/stats"
	"queuelab/internal/storage"
	"queuelab/internal/tui/history"
	"queuelab/internal/tui/live"
	"queuelab/internal/tui/result"
	"queuelab/internal/tui/styles"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

type ViewID int

const (
	ViewLive ViewID = iota
	ViewResult
	ViewHistory
)

// ProgressMsg carries one runner update.
type ProgressMsg runner.Progress

// DoneMsg is sent once Run returns.
type DoneMsg struct {
	Snapshot stats.Snapshot
	Err      error
}

type Model struct {
	Runner  *runner.Runner
	Store   *storage.Store
	Updates runner.ProgressChan
	Out     string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	RunActive bool
	Finished  bool
	Snapshot  stats.Snapshot
	Err       error

	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	LiveView    live.Model
	ResultView  result.Model
	HistoryView history.Model

	StatusMsg string
}

// NewModel wires a not-yet-started runner to the dashboard. store may be nil.
func NewModel(ctx context.Context, r *runner.Runner, updates runner.ProgressChan, store *storage.Store, out string) Model {
	ctx, cancel := context.WithCancel(ctx)
	m := Model{
		Runner:      r,
		Store:       store,
		Updates:     updates,
		Out:         out,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		RunActive:   true,
		CurrentView: ViewLive,
		MenuItems:   []string{"[1] Live", "[2] Report", "[3] History"},
		LiveView:    live.NewModel(r.Cfg),
	}
	if store != nil {
		m.HistoryView = history.NewModel(store)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		runCmd(m.ctx, m.Runner, m.done),
		waitForUpdate(m.Updates, m.done),
	)
}

func runCmd(ctx context.Context, r *runner.Runner, done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		snap, err := r.Run(ctx)
		close(done)
		return DoneMsg{Snapshot: snap, Err: err}
	}
}

func waitForUpdate(sub runner.ProgressChan, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-sub:
			return ProgressMsg(p)
		case <-done:
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.RunActive {
				// Stop early; DoneMsg follows once workers have joined.
				m.cancel()
				m.StatusMsg = "Stopping..."
				return m, nil
			}
			m.cancel()
			return m, tea.Quit

		case "1":
			m.CurrentView = ViewLive
			return m, nil
		case "2":
			if m.Finished {
				m.CurrentView = ViewResult
			}
			return m, nil
		case "3":
			if m.Store != nil {
				m.HistoryView.Refresh()
				m.CurrentView = ViewHistory
			}
			return m, nil

		case "e":
			return m.export()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 7}

		var c tea.Cmd
		m.LiveView, c = m.LiveView.Update(inner)
		cmds = append(cmds, c)
		m.ResultView, _ = m.ResultView.Update(inner)
		if m.Store != nil {
			m.HistoryView, _ = m.HistoryView.Update(inner)
		}
		return m, tea.Batch(cmds...)

	case ProgressMsg:
		var c tea.Cmd
		m.LiveView, c = m.LiveView.Update(runner.Progress(msg))
		return m, tea.Batch(c, waitForUpdate(m.Updates, m.done))

	case DoneMsg:
		m.RunActive = false
		m.Finished = true
		m.Snapshot, m.Err = msg.Snapshot, msg.Err
		if msg.Err != nil {
			m.StatusMsg = fmt.Sprintf("Run failed: %v", msg.Err)
			return m, clearStatusCmd()
		}
		m.ResultView = result.NewModel(msg.Snapshot)
		m.ResultView, _ = m.ResultView.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height - 7})
		m.CurrentView = ViewResult
		m.saveHistory()
		if m.Out != "" {
			m.exportTo(m.Snapshot, m.Out)
		}
		return m, clearStatusCmd()
	}

	var defaultCmd tea.Cmd
	switch m.CurrentView {
	case ViewLive:
		m.LiveView, defaultCmd = m.LiveView.Update(msg)
	case ViewResult:
		m.ResultView, defaultCmd = m.ResultView.Update(msg)
	case ViewHistory:
		m.HistoryView, defaultCmd = m.HistoryView.Update(msg)
	}
	cmds = append(cmds, defaultCmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) saveHistory() {
	if m.Store == nil {
		return
	}
	item, err := m.Store.Record(m.Runner.Cfg, m.Runner.Generated(), m.Snapshot)
	if err != nil {
		m.StatusMsg = fmt.Sprintf("Error saving history: %v", err)
		return
	}
	m.StatusMsg = fmt.Sprintf("Run saved as %s", item.ID)
	m.HistoryView.Refresh()
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	contentStr := ""
	switch m.CurrentView {
	case ViewLive:
		contentStr = m.LiveView.View()
	case ViewResult:
		contentStr = m.ResultView.View()
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}
	content := styles.Panel.Width(m.Width - 2).Height(m.Height - 6).Render(contentStr)

	quit := "Quit"
	if m.RunActive {
		quit = "Stop"
	}
	keys := []string{
		styles.RenderKey("1-3", "View"),
		styles.RenderKey("e", "Export"),
		styles.RenderKey("q", quit),
	}
	footer := styles.FooterBase.Width(m.Width).Render(strings.Join(keys, "   "))

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
