// Package extract turns raw output lines from agent CLIs into
// human-readable text. Each supported tool's structured event schema
// gets one extractor implementation; the runner and executor stay
// schema-agnostic and just apply whichever extractor they are handed.
package extract

import (
	"fmt"
	"sort"
	"strings"
)

// Extractor maps one raw output line to an optional text fragment.
type Extractor interface {
	// Name returns the tool name this extractor handles.
	Name() string

	// Extract returns the human-readable payload of a raw output line.
	// ok is false when the line carries nothing worth showing (tool
	// chatter, lifecycle events, malformed JSON).
	Extract(line string) (text string, ok bool)
}

// extractors is the closed set of supported tools. Adding a tool means
// one new implementation file and one entry here.
var extractors = map[string]Extractor{
	"claude":   claudeExtractor{},
	"codex":    codexExtractor{},
	"opencode": opencodeExtractor{},
	"plain":    plainExtractor{},
}

// ForTool resolves the extractor for a tool name.
func ForTool(tool string) (Extractor, error) {
	ex, ok := extractors[strings.ToLower(tool)]
	if !ok {
		return nil, fmt.Errorf("unsupported tool %q (supported: %s)", tool, strings.Join(Tools(), ", "))
	}
	return ex, nil
}

// Plain returns the passthrough extractor.
func Plain() Extractor {
	return plainExtractor{}
}

// Tools lists the supported tool names in sorted order.
func Tools() []string {
	names := make([]string, 0, len(extractors))
	for name := range extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
