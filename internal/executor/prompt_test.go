package executor

import (
	"reflect"
	"testing"
)

func TestDetectPrompt(t *testing.T) {
	tests := []struct {
		name    string
		window  string
		wantRaw string
		wantOpt []string
	}{
		{
			"numbered options",
			"Select [1/2/3]...:",
			"Select [1/2/3]...:",
			[]string{"1", "2", "3"},
		},
		{
			"yes no with trailing space",
			"Continue? [y/n]: ",
			"Continue? [y/n]:",
			[]string{"y", "n"},
		},
		{
			"text between brackets and colon",
			"Pick one [a/b/c] to proceed:",
			"Pick one [a/b/c] to proceed:",
			[]string{"a", "b", "c"},
		},
		{
			"prompt after earlier output",
			"compiling...\nall good\nApply changes? [yes/no]:",
			"Apply changes? [yes/no]:",
			[]string{"yes", "no"},
		},
		{
			"no cue text",
			"[up/down]:",
			"[up/down]:",
			[]string{"up", "down"},
		},
		{
			"spaces around options",
			"Choose [ a / b ]:",
			"Choose [ a / b ]:",
			[]string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, ok := detectPrompt(tt.window)
			if !ok {
				t.Fatal("detectPrompt did not match")
			}
			if prompt.Raw != tt.wantRaw {
				t.Errorf("Raw = %q, want %q", prompt.Raw, tt.wantRaw)
			}
			if !reflect.DeepEqual(prompt.Options, tt.wantOpt) {
				t.Errorf("Options = %v, want %v", prompt.Options, tt.wantOpt)
			}
		})
	}
}

func TestDetectPromptRejects(t *testing.T) {
	tests := []struct {
		name   string
		window string
	}{
		{"array index", "values are in array[3]:"},
		{"single option", "see [readme]:"},
		{"path in brackets", "config lives at [/etc/drover]:"},
		{"no trailing colon", "options are [a/b]"},
		{"output after colon", "Choose [a/b]: already answered\nmore output"},
		{"newline after colon", "Choose [a/b]:\n"},
		{"empty window", ""},
		{"plain text", "just some regular output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if prompt, ok := detectPrompt(tt.window); ok {
				t.Errorf("detectPrompt matched %+v, want no match", prompt)
			}
		})
	}
}

func TestDetectPromptPicksLastBracketGroup(t *testing.T) {
	prompt, ok := detectPrompt("progress [3/10] done. Continue? [y/n]:")
	if !ok {
		t.Fatal("detectPrompt did not match")
	}
	if !reflect.DeepEqual(prompt.Options, []string{"y", "n"}) {
		t.Errorf("Options = %v, want [y n]", prompt.Options)
	}
	// Raw keeps the whole tail line as the cue.
	if prompt.Raw != "progress [3/10] done. Continue? [y/n]:" {
		t.Errorf("Raw = %q", prompt.Raw)
	}
}
