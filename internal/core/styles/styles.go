// Package styles provides shared lipgloss styles for CLI output.
package styles

import "github.com/charmbracelet/lipgloss"

// Semantic colors used across command output.
var (
	ColorPrimary = lipgloss.Color("#7aa2f7")
	ColorMuted   = lipgloss.Color("#565f89")
	ColorSuccess = lipgloss.Color("#9ece6a")
	ColorWarning = lipgloss.Color("#e0af68")
	ColorError   = lipgloss.Color("#f7768e")
)

// Shared styles.
var (
	Header  = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	Muted   = lipgloss.NewStyle().Foreground(ColorMuted)
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)
	Accent  = lipgloss.NewStyle().Foreground(ColorPrimary)
)

// Outcome returns the style for a sync outcome string.
func Outcome(outcome string) lipgloss.Style {
	switch outcome {
	case "created", "updated":
		return Success
	case "skipped":
		return Warning
	default:
		return Error
	}
}
