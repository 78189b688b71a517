// Package styles provides centralized color definitions for terminal output.
// It uses lipgloss.AdaptiveColor so output stays readable on both light and
// dark terminal backgrounds.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// ColorError marks denied commands and failed projects.
	ColorError = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}
	// ColorWarning marks skipped or degraded results.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#E67E22", Dark: "#FFB86C"}
	// ColorSuccess marks clean/allowed/restored results.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}
	// ColorInfo marks informational output.
	ColorInfo = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}
	// ColorMuted marks secondary/dimmed text such as durations and paths.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#7F8C8D", Dark: "#6272A4"}
)

// HeaderStyle is the bold section-header style console.FormatHeader applies.
var HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)
