package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a TTY.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor reports whether output gets ANSI color. Agent mode
// forces it off; otherwise NO_COLOR (https://no-color.org/), CLICOLOR,
// and CLICOLOR_FORCE apply, falling back to TTY detection.
func ShouldUseColor() bool {
	if IsAgentMode() {
		return false
	}
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if _, exists := os.LookupEnv("CLICOLOR_FORCE"); exists {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether output gets symbol glyphs. Piped and
// agent-driven output stays ASCII so it is trivially parseable;
// DROVER_NO_EMOJI turns glyphs off unconditionally.
func ShouldUseEmoji() bool {
	if IsAgentMode() {
		return false
	}
	if _, exists := os.LookupEnv("DROVER_NO_EMOJI"); exists {
		return false
	}
	return IsTerminal()
}

// IsAgentMode reports whether drover is itself being driven by a coding
// agent. Set DROVER_AGENT_MODE=1 to force it; a CLAUDE_CODE environment
// variable marks an agent session and is detected automatically. Agent
// mode keeps all output plain to save the model from escape-code noise.
func IsAgentMode() bool {
	if os.Getenv("DROVER_AGENT_MODE") == "1" {
		return true
	}
	return os.Getenv("CLAUDE_CODE") != ""
}
