package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Color palette
var (
	colorGreen  = lipgloss.Color("76")  // completed
	colorRed    = lipgloss.Color("196") // failed
	colorOrange = lipgloss.Color("214") // awaiting input, timed out
	colorBlue   = lipgloss.Color("39")  // running
	colorMuted  = lipgloss.Color("242") // cancelled, secondary text
)

// Shared CLI styles
var (
	Bold = lipgloss.NewStyle().Bold(true)

	Dim = lipgloss.NewStyle().Foreground(colorMuted)

	Success = lipgloss.NewStyle().Foreground(colorGreen)

	Failure = lipgloss.NewStyle().Foreground(colorRed)

	Warning = lipgloss.NewStyle().Foreground(colorOrange)

	Active = lipgloss.NewStyle().Foreground(colorBlue)
)

// ConfigureColor syncs lipgloss rendering with the CLI color rules, so
// NO_COLOR and friends apply to every styled string. Call once at
// startup, before anything renders.
func ConfigureColor() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// CheckMark is the success glyph, degraded to ASCII for piped or
// agent-driven output.
func CheckMark() string {
	return mark("✓", "+")
}

// StepMark introduces a plan step banner.
func StepMark() string {
	return mark("▶", ">")
}

func mark(symbol, fallback string) string {
	if ShouldUseEmoji() {
		return symbol
	}
	return fallback
}

// StatusStyle returns the style for a run status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return Success
	case "failed", "timed_out":
		return Failure
	case "awaiting_input":
		return Warning
	case "running", "spawned":
		return Active
	default:
		return Dim
	}
}

var titleCaser = cases.Title(language.English)

// StatusLabel renders a status for humans: underscores become spaces
// and words are title-cased, e.g. "awaiting_input" -> "Awaiting Input".
func StatusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

// StyledStatus renders a status label in its status color.
func StyledStatus(status string) string {
	return StatusStyle(status).Render(StatusLabel(status))
}
