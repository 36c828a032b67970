package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

// claudeExtractor understands claude's stream-json output: one JSON
// object per line with a "type" discriminator. Assistant turns carry a
// nested message.content array; the final "result" event repeats the
// last response as a flat field.
type claudeExtractor struct{}

func (claudeExtractor) Name() string { return "claude" }

func (claudeExtractor) Extract(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return "", false
	}

	event := gjson.Parse(trimmed)
	switch event.Get("type").String() {
	case "assistant":
		var b strings.Builder
		for _, block := range event.Get("message.content").Array() {
			if text := block.Get("text"); text.Exists() {
				b.WriteString(text.String())
			}
		}
		if b.Len() == 0 {
			return "", false
		}
		return b.String(), true

	case "result":
		// "result" takes precedence over "text" when both are present.
		if res := event.Get("result"); res.Exists() {
			return res.String(), true
		}
		if text := event.Get("text"); text.Exists() {
			return text.String(), true
		}
		return "", false

	default:
		// system, tool, stream_event and friends carry no standalone prose.
		return "", false
	}
}
