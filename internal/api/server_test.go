package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/store"
)

// writeTool writes an executable shell script standing in for an agent
// CLI and returns its path.
func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing tool script: %v", err)
	}
	return path
}

// newTestServer starts an in-process run service over the given tool
// table and returns a client for it plus the backing store.
func newTestServer(t *testing.T, tools map[string]config.Tool, defaultTool string) (*Client, *store.Store) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test tools are shell scripts")
	}

	dataDir := t.TempDir()
	st, err := store.Open(dataDir)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Tools = tools
	cfg.DefaultTool = defaultTool
	cfg.Run.GraceSeconds = 1

	srv := NewServer("127.0.0.1:0", dataDir, cfg, st, WithLogger(log.New(io.Discard, "", 0)))
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL), st
}

// waitForStatus polls the service until the run reaches the wanted
// status or the deadline passes.
func waitForStatus(t *testing.T, client *Client, id int64, want string) *RunResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		run, err := client.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRun(%d): %v", id, err)
		}
		if run.Status == want {
			return run
		}
		last = run.Status
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %d stuck at status %q, want %q", id, last, want)
	return nil
}

func TestHealth(t *testing.T) {
	client, _ := newTestServer(t, map[string]config.Tool{}, "claude")

	resp, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("Timestamp %q not RFC3339: %v", resp.Timestamp, err)
	}
}

func TestStartRunCompletes(t *testing.T) {
	dir := t.TempDir()
	script := writeTool(t, dir, "fake-agent", "echo hello\necho world")
	client, _ := newTestServer(t, map[string]config.Tool{
		"fake": {Command: script},
	}, "fake")

	resp, err := client.StartRun(context.Background(), StartRunRequest{
		Prompt: "say hello",
		UnitID: "plan.md#1",
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if resp.ID == 0 {
		t.Fatal("expected a run id")
	}
	if resp.Token == "" {
		t.Error("expected a run token")
	}
	if resp.Status != store.StatusRunning {
		t.Errorf("Status = %q, want running", resp.Status)
	}
	if resp.Tool != "fake" {
		t.Errorf("Tool = %q, want fake", resp.Tool)
	}
	if resp.UnitID != "plan.md#1" {
		t.Errorf("UnitID = %q, want plan.md#1", resp.UnitID)
	}

	done := waitForStatus(t, client, resp.ID, store.StatusCompleted)
	if done.ExitCode == nil || *done.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", done.ExitCode)
	}
	if done.FinishedAt == "" {
		t.Error("expected finished_at to be set")
	}

	out, err := client.Output(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if out != "hello\nworld\n" {
		t.Errorf("Output = %q, want hello/world lines", out)
	}
}

func TestStartRunRequiresPrompt(t *testing.T) {
	client, _ := newTestServer(t, map[string]config.Tool{}, "claude")

	_, err := client.StartRun(context.Background(), StartRunRequest{Tool: "claude"})
	if err == nil || !strings.Contains(err.Error(), "prompt is required") {
		t.Errorf("err = %v, want prompt-is-required error", err)
	}
}

func TestStartRunUnknownTool(t *testing.T) {
	dir := t.TempDir()
	script := writeTool(t, dir, "fake-agent", "true")
	client, _ := newTestServer(t, map[string]config.Tool{
		"fake": {Command: script},
	}, "fake")

	_, err := client.StartRun(context.Background(), StartRunRequest{Tool: "nope", Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("err = %v, want not-configured error", err)
	}
}

func TestStartRunSpawnFailure(t *testing.T) {
	client, _ := newTestServer(t, map[string]config.Tool{
		"ghost": {Command: "drover-missing-tool-xyzzy"},
	}, "ghost")

	_, err := client.StartRun(context.Background(), StartRunRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "executable not found") {
		t.Fatalf("err = %v, want executable-not-found error", err)
	}

	// The row is still recorded, marked failed.
	runs, err := client.ListRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].Status != store.StatusFailed {
		t.Errorf("Status = %q, want failed", runs[0].Status)
	}
	if runs[0].FinishedAt == "" {
		t.Error("expected finished_at to be set")
	}
}

func TestPromptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	script := writeTool(t, dir, "fake-agent",
		`echo "About to change files"
printf 'Proceed? [yes/no]: '
read answer
echo "answer=$answer"`)
	client, _ := newTestServer(t, map[string]config.Tool{
		"fake": {Command: script},
	}, "fake")

	resp, err := client.StartRun(context.Background(), StartRunRequest{Prompt: "do it"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	waitForStatus(t, client, resp.ID, store.StatusAwaitingInput)

	delivered, err := client.SendInput(context.Background(), resp.ID, "yes")
	if err != nil {
		t.Fatalf("SendInput: %v", err)
	}
	if !delivered {
		t.Fatal("SendInput = false, want true")
	}

	waitForStatus(t, client, resp.ID, store.StatusCompleted)

	out, err := client.Output(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if !strings.Contains(out, "answer=yes") {
		t.Errorf("Output = %q, want it to contain answer=yes", out)
	}
}

func TestSendInputAfterFinish(t *testing.T) {
	dir := t.TempDir()
	script := writeTool(t, dir, "fake-agent", "true")
	client, _ := newTestServer(t, map[string]config.Tool{
		"fake": {Command: script},
	}, "fake")

	resp, err := client.StartRun(context.Background(), StartRunRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	waitForStatus(t, client, resp.ID, store.StatusCompleted)

	delivered, err := client.SendInput(context.Background(), resp.ID, "too late")
	if err != nil {
		t.Fatalf("SendInput: %v", err)
	}
	if delivered {
		t.Error("SendInput = true for a finished run, want false")
	}
}

func TestCancelRun(t *testing.T) {
	dir := t.TempDir()
	script := writeTool(t, dir, "fake-agent", "sleep 30")
	client, _ := newTestServer(t, map[string]config.Tool{
		"fake": {Command: script},
	}, "fake")

	resp, err := client.StartRun(context.Background(), StartRunRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	cancelled, err := client.Cancel(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("Cancel = false, want true")
	}

	done := waitForStatus(t, client, resp.ID, store.StatusCancelled)
	if done.ExitCode != nil {
		t.Errorf("ExitCode = %v, want nil for a cancelled run", *done.ExitCode)
	}

	// Nothing left to cancel.
	cancelled, err = client.Cancel(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if cancelled {
		t.Error("second Cancel = true, want false")
	}
}

func TestCancelUnknownRun(t *testing.T) {
	client, _ := newTestServer(t, map[string]config.Tool{}, "claude")

	_, err := client.Cancel(context.Background(), 424242)
	if err == nil || !strings.Contains(err.Error(), "run not found") {
		t.Errorf("err = %v, want run-not-found error", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	client, _ := newTestServer(t, map[string]config.Tool{}, "claude")

	_, err := client.GetRun(context.Background(), 424242)
	if err == nil || !strings.Contains(err.Error(), "run not found") {
		t.Errorf("err = %v, want run-not-found error", err)
	}

	// Non-numeric ids are rejected before the store is consulted.
	resp, err := http.Get(client.baseURL + "/api/runs/abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListRuns(t *testing.T) {
	client, st := newTestServer(t, map[string]config.Tool{}, "claude")

	for _, prompt := range []string{"first", "second", "third"} {
		if _, err := st.CreateRun(&store.Run{Tool: "claude", Command: "claude", Prompt: prompt}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := client.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].Prompt != "third" || runs[1].Prompt != "second" {
		t.Errorf("runs out of order: %q, %q", runs[0].Prompt, runs[1].Prompt)
	}

	resp, err := http.Get(client.baseURL + "/api/runs?limit=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestOutputBeforeAnyTranscript(t *testing.T) {
	client, st := newTestServer(t, map[string]config.Tool{}, "claude")

	id, err := st.CreateRun(&store.Run{Tool: "claude", Command: "claude"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	_, err = client.Output(context.Background(), id)
	if err == nil || !strings.Contains(err.Error(), "no output recorded") {
		t.Errorf("err = %v, want no-output error", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	client, _ := newTestServer(t, map[string]config.Tool{}, "claude")

	req, err := http.NewRequest("OPTIONS", client.baseURL+"/api/runs", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
