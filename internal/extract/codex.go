package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// codexExtractor understands codex exec's JSONL events: thread/turn
// lifecycle markers wrapping item.* events. Only completed agent
// messages and failures carry prose.
type codexExtractor struct{}

func (codexExtractor) Name() string { return "codex" }

func (codexExtractor) Extract(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return "", false
	}

	event := gjson.Parse(trimmed)
	switch event.Get("type").String() {
	case "item.completed":
		item := event.Get("item")
		if item.Get("type").String() != "agent_message" {
			return "", false
		}
		text := item.Get("text").String()
		return text, text != ""

	case "turn.failed":
		msg := event.Get("error.message").String()
		return msg, msg != ""

	case "error":
		msg := event.Get("message").String()
		return msg, msg != ""

	default:
		return "", false
	}
}
