package banner

import (
	"github.com/charmbracelet/lipgloss"

	"queuelab/internal/tui/styles"
)

const ascii = `
                          __      __  
  ___ ___ _____ ___ _____/ /___ _/ /_ 
 / _ '/ // / -_) // / -_) / _ '/ _ \
 \_, /\_,_/\__/\_,_/\__/_/\_,_/_.__/
  /_/                                `

// GetString renders the banner for help output.
func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
