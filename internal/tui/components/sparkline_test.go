package components

import (
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparklineWindow(t *testing.T) {
	s := NewSparkline(3, "x", lipgloss.NewStyle())
	for _, v := range []uint64{9, 1, 2, 4} {
		s.Add(v)
	}

	assert.Equal(t, []uint64{1, 2, 4}, s.Data)
	assert.Equal(t, uint64(4), s.Max, "max follows the visible window")
}

func TestSparklineGraph(t *testing.T) {
	s := NewSparkline(5, "x", lipgloss.NewStyle())
	s.Add(0)
	s.Add(4)
	s.Add(8)

	g := s.Graph()
	assert.Equal(t, 5, utf8.RuneCountInString(g))
	assert.Equal(t, " ▄█  ", g)
}

func TestSparklineAllZero(t *testing.T) {
	s := NewSparkline(2, "x", lipgloss.NewStyle())
	s.Add(0)
	s.Add(0)
	assert.Equal(t, "  ", s.Graph())
}

func TestSparklineZeroWidthView(t *testing.T) {
	s := NewSparkline(0, "x", lipgloss.NewStyle())
	assert.Empty(t, s.View())
}
