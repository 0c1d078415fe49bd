package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"queuelab/internal/runner"
	"queuelab/internal/tui/styles"
)

const (
	FieldStages = iota
	FieldChannels
	FieldCapacity
	FieldInterval
	FieldMinProcessing
	FieldMaxProcessing
	FieldDuration
	fieldCount
)

type Field struct {
	Label string
	Input textinput.Model
}

// Model is the pre-run topology form. It quits the program on enter with a
// valid config (Submitted) or on esc.
type Model struct {
	Base runner.Config

	Fields []Field
	Focus  int

	Submitted bool
	Err       error

	Width  int
	Height int
}

func NewModel(cfg runner.Config) Model {
	channels := make([]string, len(cfg.Stages))
	capacity := make([]string, len(cfg.Stages))
	for i, s := range cfg.Stages {
		channels[i] = strconv.Itoa(s.Channels)
		capacity[i] = strconv.Itoa(s.Capacity)
	}

	m := Model{
		Base:   cfg,
		Fields: make([]Field, fieldCount),
	}
	m.Fields[FieldStages] = newField("Stages", strconv.Itoa(len(cfg.Stages)), 6)
	m.Fields[FieldChannels] = newField("Channels per stage", strings.Join(channels, ","), 20)
	m.Fields[FieldCapacity] = newField("Buffer capacity per stage", strings.Join(capacity, ","), 20)
	m.Fields[FieldInterval] = newField("Generation interval", cfg.GenerationInterval.String(), 10)
	m.Fields[FieldMinProcessing] = newField("Min service time", cfg.MinProcessing.String(), 10)
	m.Fields[FieldMaxProcessing] = newField("Max service time", cfg.MaxProcessing.String(), 10)
	m.Fields[FieldDuration] = newField("Duration", cfg.Duration.String(), 10)
	m.focus(0)
	return m
}

func newField(label, value string, width int) Field {
	t := textinput.New()
	t.SetValue(value)
	t.Width = width
	return Field{Label: label, Input: t}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if _, err := m.GetConfig(); err != nil {
				m.Err = err
				return m, nil
			}
			m.Submitted = true
			return m, tea.Quit

		case "tab", "down":
			m.focus(m.Focus + 1)
			return m, nil
		case "shift+tab", "up":
			m.focus(m.Focus - 1)
			return m, nil
		}
	}

	var cmds []tea.Cmd
	for i := range m.Fields {
		var cmd tea.Cmd
		m.Fields[i].Input, cmd = m.Fields[i].Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) focus(i int) {
	n := len(m.Fields)
	m.Focus = (i%n + n) % n
	for j := range m.Fields {
		if j == m.Focus {
			m.Fields[j].Input.Focus()
			m.Fields[j].Input.PromptStyle = styles.Active
			m.Fields[j].Input.TextStyle = styles.Active
		} else {
			m.Fields[j].Input.Blur()
			m.Fields[j].Input.PromptStyle = lipgloss.NewStyle()
			m.Fields[j].Input.TextStyle = lipgloss.NewStyle()
		}
	}
}

// GetConfig parses the form over Base and validates the result.
func (m Model) GetConfig() (runner.Config, error) {
	c := m.Base

	n, err := strconv.Atoi(strings.TrimSpace(m.value(FieldStages)))
	if err != nil {
		return c, fmt.Errorf("stages: %w", err)
	}
	channels, err := parseList(m.value(FieldChannels))
	if err != nil {
		return c, fmt.Errorf("channels: %w", err)
	}
	capacity, err := parseList(m.value(FieldCapacity))
	if err != nil {
		return c, fmt.Errorf("capacity: %w", err)
	}
	if c.Stages, err = runner.BuildStages(n, channels, capacity); err != nil {
		return c, err
	}

	durations := []struct {
		field int
		dst   *time.Duration
	}{
		{FieldInterval, &c.GenerationInterval},
		{FieldMinProcessing, &c.MinProcessing},
		{FieldMaxProcessing, &c.MaxProcessing},
		{FieldDuration, &c.Duration},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(strings.TrimSpace(m.value(d.field)))
		if err != nil {
			return c, fmt.Errorf("%s: %w", strings.ToLower(m.Fields[d.field].Label), err)
		}
		*d.dst = v
	}

	return c, c.Validate()
}

func (m Model) value(i int) string {
	return m.Fields[i].Input.Value()
}

func parseList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("Topology"))
	s.WriteString("\n\n")

	for i := range m.Fields {
		s.WriteString(styles.Subtle.Render(m.Fields[i].Label))
		s.WriteString("\n")
		s.WriteString(m.Fields[i].Input.View())
		s.WriteString("\n\n")
	}

	if m.Err != nil {
		s.WriteString(styles.Error.Render(m.Err.Error()))
		s.WriteString("\n\n")
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Center,
		styles.RenderKey("Enter", "Start"), "   ",
		styles.RenderKey("Tab", "Next field"), "   ",
		styles.RenderKey("Esc", "Quit"),
	))

	return styles.Box.Render(s.String())
}
