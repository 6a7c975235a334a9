// Package ui styles command output. Styling degrades to plain text when
// the output is not a terminal or the terminal reports no color
// support, so piped output stays script-friendly.
package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Palette holds the lipgloss styles for command output. All colors are
// ANSI 256 codes for broad terminal compatibility.
type Palette struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Good  lipgloss.Style
	Bad   lipgloss.Style
	Warn  lipgloss.Style
	Faint lipgloss.Style
}

// New builds the palette for out. A nil file, a non-terminal, or a
// colorless terminal all yield unstyled text.
func New(out *os.File) Palette {
	if out == nil || !term.IsTerminal(int(out.Fd())) {
		return plainPalette()
	}
	if termenv.EnvColorProfile() == termenv.Ascii {
		return plainPalette()
	}
	return colorPalette()
}

func colorPalette() Palette {
	return Palette{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")), // blue
		Label: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),           // gray
		Good:  lipgloss.NewStyle().Foreground(lipgloss.Color("114")),           // green
		Bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),           // red
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),           // amber
		Faint: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),           // dim gray
	}
}

func plainPalette() Palette {
	none := lipgloss.NewStyle()
	return Palette{Title: none, Label: none, Good: none, Bad: none, Warn: none, Faint: none}
}

// KeyValue renders an aligned "label: value" line.
func (p Palette) KeyValue(label, value string) string {
	return fmt.Sprintf("  %s %s", p.Label.Render(label+":"), value)
}

var stdout = New(os.Stdout)

// RenderAccent styles s in the accent color for stdout.
func RenderAccent(s string) string { return stdout.Title.Render(s) }

// RenderPass styles s as success for stdout.
func RenderPass(s string) string { return stdout.Good.Render(s) }

// RenderFail styles s as failure for stdout.
func RenderFail(s string) string { return stdout.Bad.Render(s) }

// RenderWarn styles s as a warning for stdout.
func RenderWarn(s string) string { return stdout.Warn.Render(s) }

// RenderFaint styles s dimmed for stdout.
func RenderFaint(s string) string { return stdout.Faint.Render(s) }

// FormatSyncTime renders an epoch-milliseconds sync stamp for humans.
// Zero means no sync has completed yet.
func FormatSyncTime(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// FormatResultTime shortens a search result's RFC 3339 creation stamp
// to the date. Unparsable stamps are shown as-is.
func FormatResultTime(createdAt string) string {
	if createdAt == "" {
		return ""
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return createdAt
	}
	return ts.Local().Format("2006-01-02")
}
