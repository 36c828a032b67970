package promptgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droverhq/drover/internal/plan"
)

func TestRenderDefaultTemplate(t *testing.T) {
	out, err := Render("", StepContext{
		PlanTitle: "Ship it",
		StepText:  "write tests",
		StepIndex: 3,
		StepTotal: 4,
		Completed: []string{"scaffold", "wire api"},
		WorkDir:   "/repo",
	})
	require.NoError(t, err)

	want := `You are working through the plan "Ship it", step 3 of 4.

Completed so far:
- scaffold
- wire api

Your task:
write tests

Work in /repo. Keep the change scoped to this step and stop when it is done.`
	assert.Equal(t, want, out)
}

func TestRenderDefaultNoCompleted(t *testing.T) {
	out, err := Render("", StepContext{
		PlanTitle: "First pass",
		StepText:  "scaffold the package",
		StepIndex: 1,
		StepTotal: 2,
		WorkDir:   "/repo",
	})
	require.NoError(t, err)

	assert.NotContains(t, out, "Completed so far", "recap section present with no completed steps")
	assert.Contains(t, out, "step 1 of 2")
	assert.Contains(t, out, "scaffold the package")
}

func TestRenderCustomTemplate(t *testing.T) {
	out, err := Render("{{.StepText}} @ {{.WorkDir}}", StepContext{
		StepText: "do the thing",
		WorkDir:  "/tmp/w",
	})
	require.NoError(t, err)
	assert.Equal(t, "do the thing @ /tmp/w", out)
}

func TestRenderParseError(t *testing.T) {
	_, err := Render("{{.Unclosed", StepContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing prompt template")
}

func TestRenderExecuteError(t *testing.T) {
	_, err := Render("{{.NoSuchField}}", StepContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendering prompt template")
}

func TestContextFromPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.md")
	content := `---
title: Widget work
---

- [x] scaffold
- [ ] wire the API
- [ ] write tests
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := plan.Load(path)
	require.NoError(t, err)
	step, ok := p.Next()
	require.True(t, ok, "expected a pending step")

	ctx := Context(p, step, "/work")
	assert.Equal(t, "Widget work", ctx.PlanTitle)
	assert.Equal(t, 2, ctx.StepIndex)
	assert.Equal(t, 3, ctx.StepTotal)
	assert.Equal(t, "wire the API", ctx.StepText)
	assert.Equal(t, []string{"scaffold"}, ctx.Completed)
	assert.Equal(t, "/work", ctx.WorkDir)
}
