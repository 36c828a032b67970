package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}
	return path
}

func TestLoadWithFrontmatter(t *testing.T) {
	path := writePlan(t, `---
title: Ship the widget
tool: codex
branch: widget-work
---

# Some heading

Intro prose.

- [x] scaffold the package
- [ ] wire the API
- [ ] write tests

Notes after.
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if p.Title != "Ship the widget" {
		t.Errorf("Title = %q, want Ship the widget", p.Title)
	}
	if p.Tool != "codex" {
		t.Errorf("Tool = %q, want codex", p.Tool)
	}
	if p.Branch != "widget-work" {
		t.Errorf("Branch = %q, want widget-work", p.Branch)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(p.Steps))
	}
	if !p.Steps[0].Done || p.Steps[1].Done || p.Steps[2].Done {
		t.Errorf("Done flags = %v %v %v, want true false false",
			p.Steps[0].Done, p.Steps[1].Done, p.Steps[2].Done)
	}
	if p.Steps[1].Text != "wire the API" {
		t.Errorf("Steps[1].Text = %q, want wire the API", p.Steps[1].Text)
	}
	if p.Steps[2].Index != 2 {
		t.Errorf("Steps[2].Index = %d, want 2", p.Steps[2].Index)
	}
}

func TestLoadWithoutFrontmatter(t *testing.T) {
	path := writePlan(t, `# Cleanup pass

- [ ] remove dead code
* [ ] tidy imports
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Title != "Cleanup pass" {
		t.Errorf("Title = %q, want heading fallback", p.Title)
	}
	if p.Tool != "" {
		t.Errorf("Tool = %q, want empty", p.Tool)
	}
	if len(p.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2 (both bullet styles)", len(p.Steps))
	}
}

func TestLoadTitleFallsBackToFilename(t *testing.T) {
	path := writePlan(t, "- [ ] only step\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Title != "plan" {
		t.Errorf("Title = %q, want plan (filename stem)", p.Title)
	}
}

func TestLoadRejectsStepless(t *testing.T) {
	path := writePlan(t, "# Nothing to do\n\njust prose\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for plan without steps")
	}
	if !strings.Contains(err.Error(), "no steps") {
		t.Errorf("error = %v, want no steps", err)
	}
}

func TestLoadRejectsUnterminatedFrontmatter(t *testing.T) {
	path := writePlan(t, "---\ntitle: broken\n\n- [ ] step\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unterminated frontmatter")
	}
	if !strings.Contains(err.Error(), "unterminated") {
		t.Errorf("error = %v, want unterminated", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.md"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNext(t *testing.T) {
	path := writePlan(t, "- [x] first\n- [ ] second\n- [ ] third\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	step, ok := p.Next()
	if !ok {
		t.Fatal("Next() = false, want pending step")
	}
	if step.Index != 1 || step.Text != "second" {
		t.Errorf("Next() = index %d text %q, want 1 second", step.Index, step.Text)
	}
}

func TestNextAllDone(t *testing.T) {
	path := writePlan(t, "- [x] first\n- [X] second\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if step, ok := p.Next(); ok {
		t.Errorf("Next() = %+v, want none", step)
	}
}

func TestMarkDoneRewritesFile(t *testing.T) {
	path := writePlan(t, `# Plan

Intro prose stays put.

- [x] first
- [ ] second [with brackets]
- [ ] third
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.MarkDone(1); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading plan back: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "- [x] second [with brackets]") {
		t.Errorf("second step not checked off:\n%s", content)
	}
	if !strings.Contains(content, "- [ ] third") {
		t.Errorf("third step should stay pending:\n%s", content)
	}
	if !strings.Contains(content, "Intro prose stays put.") {
		t.Errorf("prose lost in rewrite:\n%s", content)
	}

	// Reload sees the updated state.
	p2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !p2.Steps[1].Done {
		t.Error("reloaded plan does not show step 1 done")
	}
	step, ok := p2.Next()
	if !ok || step.Index != 2 {
		t.Errorf("Next() after reload = %v %v, want step 2", step, ok)
	}
}

func TestMarkDoneIdempotent(t *testing.T) {
	path := writePlan(t, "- [x] first\n- [ ] second\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.MarkDone(0); err != nil {
		t.Errorf("MarkDone on done step: %v, want nil", err)
	}
}

func TestMarkDoneOutOfRange(t *testing.T) {
	path := writePlan(t, "- [ ] only\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.MarkDone(5); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if err := p.MarkDone(-1); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestProgress(t *testing.T) {
	path := writePlan(t, "- [x] a\n- [ ] b\n- [x] c\n- [ ] d\n")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	done, total := p.Progress()
	if done != 2 || total != 4 {
		t.Errorf("Progress() = %d/%d, want 2/4", done, total)
	}
}
