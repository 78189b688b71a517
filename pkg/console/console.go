// Package console renders human-facing output: status messages, tables, and
// per-project headers. Styling is skipped automatically when stdout is not
// a terminal so piped and CI output stays plain text; the check looks at
// stdout even for text that is written to stderr.
package console

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/metaworkspace/meta/pkg/styles"
)

// IsStdoutTTY reports whether standard output is attached to a terminal.
func IsStdoutTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func applyStyle(style lipgloss.Style, text string) string {
	if !IsStdoutTTY() {
		return text
	}
	return style.Render(text)
}

// FormatSuccessMessage formats a success line ("✓ ...").
func FormatSuccessMessage(message string) string {
	return applyStyle(lipgloss.NewStyle().Foreground(styles.ColorSuccess).Bold(true), "✓ "+message)
}

// FormatErrorMessage formats an error line ("✗ ...").
func FormatErrorMessage(message string) string {
	return applyStyle(lipgloss.NewStyle().Foreground(styles.ColorError).Bold(true), "✗ "+message)
}

// FormatWarningMessage formats a warning line ("⚠ ...").
func FormatWarningMessage(message string) string {
	return applyStyle(lipgloss.NewStyle().Foreground(styles.ColorWarning), "⚠ "+message)
}

// FormatInfoMessage formats an informational line.
func FormatInfoMessage(message string) string {
	return applyStyle(lipgloss.NewStyle().Foreground(styles.ColorInfo), message)
}

// FormatMuted formats secondary/dim text such as paths and durations.
func FormatMuted(message string) string {
	return applyStyle(lipgloss.NewStyle().Foreground(styles.ColorMuted), message)
}

// FormatHeader formats a bold section header.
func FormatHeader(message string) string {
	return applyStyle(styles.HeaderStyle, message)
}

// Table renders rows under the given headers. When stdout is not a
// terminal, plain tab-separated text is emitted instead of a boxed table.
func Table(headers []string, rows [][]string) string {
	if !IsStdoutTTY() {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		b.WriteByte('\n')
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		return b.String()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorMuted)).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// TruncateString truncates s to maxLen, appending an ellipsis if truncated.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}

// ProjectHeader prints a per-project header line for non-silent fan-out
// output (e.g. "── backend ──").
func ProjectHeader(name string) string {
	return FormatMuted(fmt.Sprintf("── %s ──", name))
}
