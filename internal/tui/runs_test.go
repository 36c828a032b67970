package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/droverhq/drover/internal/store"
)

func newTestApp(t *testing.T) (*App, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	app := NewApp(st)
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return app, st
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func fakeRuns(n int) []*store.Run {
	runs := make([]*store.Run, n)
	for i := range runs {
		runs[i] = &store.Run{
			ID:        int64(i + 1),
			Tool:      "claude",
			Status:    store.StatusRunning,
			StartedAt: time.Now(),
		}
	}
	return runs
}

func TestNavigationClampsToBounds(t *testing.T) {
	app, _ := newTestApp(t)
	app.runs = fakeRuns(3)

	app.Update(keyMsg("k"))
	if app.selectedIdx != 0 {
		t.Errorf("k at top moved selection to %d", app.selectedIdx)
	}

	app.Update(keyMsg("j"))
	app.Update(keyMsg("j"))
	app.Update(keyMsg("j"))
	if app.selectedIdx != 2 {
		t.Errorf("selectedIdx = %d, want 2 (clamped)", app.selectedIdx)
	}

	app.Update(keyMsg("k"))
	if app.selectedIdx != 1 {
		t.Errorf("selectedIdx = %d, want 1", app.selectedIdx)
	}
}

func TestQuitKey(t *testing.T) {
	app, _ := newTestApp(t)

	_, cmd := app.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce a quit message")
	}
}

func TestRunsLoadedClampsSelection(t *testing.T) {
	app, _ := newTestApp(t)
	app.selectedIdx = 5

	app.Update(runsLoadedMsg{runs: fakeRuns(2)})
	if app.selectedIdx != 1 {
		t.Errorf("selectedIdx = %d, want 1", app.selectedIdx)
	}

	app.Update(runsLoadedMsg{runs: nil})
	if app.selectedIdx != 0 {
		t.Errorf("selectedIdx = %d, want 0 for empty list", app.selectedIdx)
	}
}

func TestTickKeepsPolling(t *testing.T) {
	app, _ := newTestApp(t)

	_, cmd := app.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick on the list view should schedule a reload")
	}

	app.view = ViewTranscript
	_, cmd = app.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick should keep ticking on the transcript view")
	}
}

func TestEnterOpensTranscript(t *testing.T) {
	app, st := newTestApp(t)

	path := filepath.Join(t.TempDir(), "tok.log")
	if err := os.WriteFile(path, []byte("agent output here\n"), 0o644); err != nil {
		t.Fatalf("writing transcript: %v", err)
	}
	id, err := st.CreateRun(&store.Run{Tool: "claude", Command: "claude", TranscriptPath: path})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	run, err := st.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	app.runs = []*store.Run{run}

	_, cmd := app.Update(keyMsg("enter"))
	if cmd == nil {
		t.Fatal("enter should load the transcript")
	}
	msg, ok := cmd().(transcriptLoadedMsg)
	if !ok {
		t.Fatalf("cmd produced %T, want transcriptLoadedMsg", msg)
	}
	if msg.content != "agent output here\n" {
		t.Errorf("content = %q, want transcript text", msg.content)
	}

	app.Update(msg)
	if app.view != ViewTranscript {
		t.Errorf("view = %v, want ViewTranscript", app.view)
	}
	if !strings.Contains(app.View(), "Run #1") {
		t.Errorf("transcript view missing header: %q", app.View())
	}

	app.Update(keyMsg("esc"))
	if app.view != ViewRunList {
		t.Errorf("view = %v, want ViewRunList after esc", app.view)
	}
}

func TestTranscriptMissingFile(t *testing.T) {
	app, st := newTestApp(t)

	id, err := st.CreateRun(&store.Run{Tool: "claude", Command: "claude"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	msg, ok := app.loadTranscript(id)().(transcriptLoadedMsg)
	if !ok {
		t.Fatal("expected transcriptLoadedMsg")
	}
	if msg.err != nil {
		t.Fatalf("err = %v", msg.err)
	}
	if !strings.Contains(msg.content, "no transcript") {
		t.Errorf("content = %q, want placeholder", msg.content)
	}
}

func TestViewRunList(t *testing.T) {
	app, _ := newTestApp(t)

	if !strings.Contains(app.View(), "No runs yet") {
		t.Error("empty list should show a hint")
	}

	app.runs = []*store.Run{{
		ID:        1,
		Tool:      "codex",
		Status:    store.StatusAwaitingInput,
		Prompt:    "wire the API",
		StartedAt: time.Now(),
	}}
	out := app.View()
	if !strings.Contains(out, "#1") || !strings.Contains(out, "wire the API") {
		t.Errorf("run list missing run line: %q", out)
	}
	if !strings.Contains(out, "▶") {
		t.Errorf("run list missing selection marker: %q", out)
	}
}

func TestStatusBadge(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{store.StatusRunning, "running"},
		{store.StatusAwaitingInput, "awaiting input"},
		{store.StatusCompleted, "completed"},
		{store.StatusFailed, "failed"},
		{store.StatusTimedOut, "timed out"},
		{store.StatusCancelled, "cancelled"},
		{"mystery", "mystery"},
	}
	for _, tt := range tests {
		if got := statusBadge(tt.status); !strings.Contains(got, tt.want) {
			t.Errorf("statusBadge(%q) = %q, want it to contain %q", tt.status, got, tt.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-49 * time.Hour), "2d"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.t); got != tt.want {
			t.Errorf("formatAge = %q, want %q", got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("a very long prompt indeed", 10); got != "a very ..." {
		t.Errorf("truncate = %q, want %q", got, "a very ...")
	}
}
