package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorTitle     = lipgloss.Color("12")  // bright blue
	colorSelected  = lipgloss.Color("229") // pale yellow
	colorSelectBg  = lipgloss.Color("57")  // violet
	colorRunning   = lipgloss.Color("39")  // blue
	colorAwaiting  = lipgloss.Color("214") // orange
	colorCompleted = lipgloss.Color("76")  // green
	colorFailed    = lipgloss.Color("196") // bright red
	colorMuted     = lipgloss.Color("242") // gray
)

// Styles for the run monitor
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTitle)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorSelected).
			Background(colorSelectBg)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorFailed)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorRunning)

	runningStyle   = lipgloss.NewStyle().Foreground(colorRunning)
	awaitingStyle  = lipgloss.NewStyle().Foreground(colorAwaiting).Bold(true)
	completedStyle = lipgloss.NewStyle().Foreground(colorCompleted)
	failedStyle    = lipgloss.NewStyle().Foreground(colorFailed)
	cancelledStyle = lipgloss.NewStyle().Foreground(colorMuted)
)
