// Package plan parses markdown plan files: an optional YAML
// frontmatter block (title, tool, branch) followed by a GitHub-style
// task list. Each unchecked item is a step waiting to be run; checking
// it off rewrites the file in place so the plan doubles as its own
// progress record.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/droverhq/drover/internal/util"
)

// Step is one task-list item from a plan file.
type Step struct {
	Index int
	Text  string
	Done  bool
}

// Plan is a parsed plan file. The raw lines are retained so MarkDone
// can rewrite a single checkbox without disturbing the rest of the
// document.
type Plan struct {
	Path   string
	Title  string
	Tool   string
	Branch string
	Steps  []Step

	lines     []string
	stepLines []int
}

type frontmatter struct {
	Title  string `yaml:"title"`
	Tool   string `yaml:"tool"`
	Branch string `yaml:"branch"`
}

var stepPattern = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.+)$`)

// Load reads and parses the plan file at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}

	p := &Plan{
		Path:  path,
		lines: strings.Split(string(data), "\n"),
	}

	body := p.lines
	if len(body) > 0 && strings.TrimRight(body[0], "\r") == "---" {
		end := -1
		for i := 1; i < len(body); i++ {
			if strings.TrimRight(body[i], "\r") == "---" {
				end = i
				break
			}
		}
		if end == -1 {
			return nil, fmt.Errorf("parsing plan: unterminated frontmatter in %s", path)
		}
		var fm frontmatter
		if err := yaml.Unmarshal([]byte(strings.Join(body[1:end], "\n")), &fm); err != nil {
			return nil, fmt.Errorf("parsing plan frontmatter: %w", err)
		}
		p.Title = fm.Title
		p.Tool = fm.Tool
		p.Branch = fm.Branch
		body = body[end+1:]
	}

	offset := len(p.lines) - len(body)
	for i, line := range body {
		if p.Title == "" {
			if heading, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
				p.Title = strings.TrimSpace(heading)
			}
		}
		m := stepPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		p.Steps = append(p.Steps, Step{
			Index: len(p.Steps),
			Text:  strings.TrimSpace(m[2]),
			Done:  m[1] == "x" || m[1] == "X",
		})
		p.stepLines = append(p.stepLines, offset+i)
	}

	if p.Title == "" {
		p.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(p.Steps) == 0 {
		return nil, fmt.Errorf("plan %s contains no steps (expected '- [ ]' task lines)", path)
	}

	return p, nil
}

// Next returns the first pending step. The second result is false
// when every step is done.
func (p *Plan) Next() (*Step, bool) {
	for i := range p.Steps {
		if !p.Steps[i].Done {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// MarkDone checks off the step at index and rewrites the plan file
// atomically. Marking an already-done step is a no-op.
func (p *Plan) MarkDone(index int) error {
	if index < 0 || index >= len(p.Steps) {
		return fmt.Errorf("step %d out of range (plan has %d steps)", index, len(p.Steps))
	}
	if p.Steps[index].Done {
		return nil
	}

	lineNo := p.stepLines[index]
	p.lines[lineNo] = strings.Replace(p.lines[lineNo], "[ ]", "[x]", 1)
	p.Steps[index].Done = true

	content := strings.Join(p.lines, "\n")
	if err := util.AtomicWriteFile(p.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("updating plan: %w", err)
	}
	return nil
}

// Progress reports how many steps are done out of the total.
func (p *Plan) Progress() (done, total int) {
	for _, s := range p.Steps {
		if s.Done {
			done++
		}
	}
	return done, len(p.Steps)
}
