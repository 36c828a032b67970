package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// opencodeExtractor understands opencode's ndjson events. Text parts
// live under part.text; error details are nested in error.data.message
// with error.message as the fallback.
type opencodeExtractor struct{}

func (opencodeExtractor) Name() string { return "opencode" }

func (opencodeExtractor) Extract(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return "", false
	}

	event := gjson.Parse(trimmed)
	switch event.Get("type").String() {
	case "text":
		text := event.Get("part.text").String()
		return text, text != ""

	case "error":
		msg := event.Get("error.data.message").String()
		if msg == "" {
			msg = event.Get("error.message").String()
		}
		return msg, msg != ""

	default:
		// step_start, tool_use, step_finish, reasoning.
		return "", false
	}
}
