// Package ui renders command output for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive colors pick a variant for light or dark terminals.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#5f8700", Dark: "#87d75f"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#af8700", Dark: "#ffd75f"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#d70000", Dark: "#ff5f5f"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#005fd7", Dark: "#5fafff"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6c6c6c", Dark: "#8a8a8a"}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	BoldStyle   = lipgloss.NewStyle().Bold(true)

	labelStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderBold(s string) string   { return BoldStyle.Render(s) }

// Field is one row of a key/value listing.
type Field struct {
	Label string
	Value string
}

// RenderFields aligns labels in a column:
//
//	Database:  .filesync/content.db
//	Records:   42
func RenderFields(fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Label)+1)
	}

	var b strings.Builder
	for _, f := range fields {
		label := labelStyle.Width(width + 1).Render(f.Label + ":")
		fmt.Fprintf(&b, "   %s %s\n", label, f.Value)
	}
	return b.String()
}

// FormatSize renders a byte count for humans.
func FormatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
