// Package promptgen renders the per-step instruction handed to an
// agent CLI when drover runs a plan step.
package promptgen

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/droverhq/drover/internal/plan"
)

// StepContext carries everything a prompt template can reference for
// one plan step.
type StepContext struct {
	PlanTitle string   // plan title from frontmatter or heading
	StepText  string   // the task-list item being run
	StepIndex int      // one-based position shown to the agent
	StepTotal int      // total number of steps in the plan
	Completed []string // texts of already-completed steps, in order
	WorkDir   string   // directory the agent runs in
}

// DefaultTemplate is the built-in per-step prompt. A custom template
// can be pointed at via the [plan] config section.
const DefaultTemplate = `You are working through the plan "{{.PlanTitle}}", step {{.StepIndex}} of {{.StepTotal}}.
{{- if .Completed}}

Completed so far:
{{- range .Completed}}
- {{.}}
{{- end}}
{{- end}}

Your task:
{{.StepText}}

Work in {{.WorkDir}}. Keep the change scoped to this step and stop when it is done.`

// Render executes tmpl with ctx. An empty tmpl selects
// DefaultTemplate.
func Render(tmpl string, ctx StepContext) (string, error) {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}

	t, err := template.New("step").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("rendering prompt template: %w", err)
	}
	return buf.String(), nil
}

// Context assembles the template context for running step within p.
func Context(p *plan.Plan, step *plan.Step, workDir string) StepContext {
	var completed []string
	for _, s := range p.Steps {
		if s.Done {
			completed = append(completed, s.Text)
		}
	}
	return StepContext{
		PlanTitle: p.Title,
		StepText:  step.Text,
		StepIndex: step.Index + 1,
		StepTotal: len(p.Steps),
		Completed: completed,
		WorkDir:   workDir,
	}
}
