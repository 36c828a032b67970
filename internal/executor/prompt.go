package executor

import (
	"regexp"
	"strings"
)

// Prompt is an interactive choice detected in a run's output, waiting
// for an externally supplied response.
type Prompt struct {
	// Raw is the prompt text as it appeared, cue and option list included.
	Raw string

	// Options holds the bracketed choices in presentation order.
	Options []string
}

// promptPattern matches a cue followed by a bracketed slash-separated
// option list and a trailing colon at the end of the scanned window,
// where the child is presumably blocked waiting for a reply. Detection
// is a heuristic over free-form text, not a protocol: a tool that
// happens to print this shape mid-run will false-positive, and one that
// restyles its prompts will stop matching. Known weak point.
var promptPattern = regexp.MustCompile(`([^\n]*\[([^\n\[\]]*/[^\n\[\]]*)\][^\n\[\]]*:)[ \t]*$`)

// detectPrompt scans the rolling output window for an interactive
// prompt. At least two non-empty options are required, so bracketed
// text that merely contains a slash (paths, dates) does not match.
func detectPrompt(window string) (*Prompt, bool) {
	m := promptPattern.FindStringSubmatch(window)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[2], "/")
	if len(parts) < 2 {
		return nil, false
	}
	options := make([]string, 0, len(parts))
	for _, part := range parts {
		opt := strings.TrimSpace(part)
		if opt == "" {
			return nil, false
		}
		options = append(options, opt)
	}
	return &Prompt{
		Raw:     strings.TrimSpace(m[1]),
		Options: options,
	}, true
}
