package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Console renders user-facing status lines. Every pipeline stage reports
// its action and outcome here; the structured Logger carries the same
// information for the log file.
type Console struct {
	out io.Writer

	infoStyle    lipgloss.Style
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
}

// NewConsole creates a console reporter writing to stdout.
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter creates a console reporter writing to the given writer.
func NewConsoleWriter(out io.Writer) *Console {
	return &Console{
		out:          out,
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#87d787")).Bold(true),
		warnStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd700")),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
	}
}

// Info prints an informational status line.
func (c *Console) Info(format string, args ...interface{}) {
	c.print(c.infoStyle, "•", format, args...)
}

// Success prints a success status line.
func (c *Console) Success(format string, args ...interface{}) {
	c.print(c.successStyle, "✓", format, args...)
}

// Warn prints a warning status line.
func (c *Console) Warn(format string, args ...interface{}) {
	c.print(c.warnStyle, "⚠", format, args...)
}

// Error prints an error status line.
func (c *Console) Error(format string, args ...interface{}) {
	c.print(c.errorStyle, "✗", format, args...)
}

func (c *Console) print(style lipgloss.Style, prefix, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintln(c.out, style.Render(prefix+" "+line))
}
