// ABOUTME: Plan commands for drover.
// ABOUTME: Shows markdown plans and drives agent runs through their steps.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/git"
	"github.com/droverhq/drover/internal/plan"
	"github.com/droverhq/drover/internal/promptgen"
	"github.com/droverhq/drover/internal/ui"
	"github.com/droverhq/drover/internal/util"
)

var (
	planTool    string
	planDir     string
	planTimeout int
	planAll     bool
	planCommit  bool
	planNoLock  bool
)

var planCmd = &cobra.Command{
	Use:     "plan",
	Short:   "Work through a markdown plan file",
	GroupID: GroupWork,
	RunE:    requireSubcommand,
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan-file>",
	Short: "Render a plan with its progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanShow,
}

var planNextCmd = &cobra.Command{
	Use:   "next <plan-file>",
	Short: "Print the next pending step",
	Long: `Print the next pending step of a plan.

Exits 0 when a pending step exists and 1 when the plan is complete,
so scripts can loop with 'while drover plan next ...'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanNext,
}

var planRunCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Run the next pending step with an agent",
	Long: `Run the next pending step of a plan through an agent CLI.

The step is rendered into a prompt (with plan title and completed-step
context), executed like 'drover run', and checked off in the plan file
when the agent exits cleanly.

The tool comes from --tool, then the plan's frontmatter, then the
config default. A 'branch' key in the frontmatter pins the working
directory to that git branch before any step runs.

Examples:
  drover plan run docs/plan.md
  drover plan run --all --commit docs/plan.md
  drover plan run --tool codex --dir ~/src/app docs/plan.md`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanRun,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planNextCmd)
	planCmd.AddCommand(planRunCmd)

	planRunCmd.Flags().StringVar(&planTool, "tool", "", "Agent tool to run (default: plan frontmatter, then config)")
	planRunCmd.Flags().StringVar(&planDir, "dir", "", "Working directory for the agent (default: current directory)")
	planRunCmd.Flags().IntVar(&planTimeout, "timeout", 0, "Per-step timeout in seconds (default: config timeout)")
	planRunCmd.Flags().BoolVar(&planAll, "all", false, "Keep running steps until the plan is complete")
	planRunCmd.Flags().BoolVar(&planCommit, "commit", false, "Commit the working tree after each completed step")
	planRunCmd.Flags().BoolVar(&planNoLock, "no-lock", false, "Skip the working-directory lock")
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	if ui.IsTerminal() {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return fmt.Errorf("creating renderer: %w", err)
		}
		out, err := renderer.Render(string(data))
		if err != nil {
			return fmt.Errorf("rendering plan: %w", err)
		}
		fmt.Print(out)
	} else {
		fmt.Print(string(data))
		if !strings.HasSuffix(string(data), "\n") {
			fmt.Println()
		}
	}

	done, total := p.Progress()
	fmt.Printf("%s\n", ui.Dim.Render(fmt.Sprintf("%d/%d steps done", done, total)))
	return nil
}

func runPlanNext(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	step, ok := p.Next()
	if !ok {
		done, total := p.Progress()
		fmt.Printf("Plan complete (%d/%d steps done).\n", done, total)
		return NewSilentExit(1)
	}

	fmt.Printf("Step %d of %d: %s\n", step.Index+1, len(p.Steps), step.Text)
	return nil
}

func runPlanRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := resolveDir(planDir)
	if err != nil {
		return err
	}

	timeout := cfg.Timeout()
	if planTimeout > 0 {
		timeout = time.Duration(planTimeout) * time.Second
	}

	var template string
	if cfg.Plan.Template != "" {
		data, err := os.ReadFile(cfg.Plan.Template)
		if err != nil {
			return fmt.Errorf("reading prompt template: %w", err)
		}
		template = string(data)
	}

	first, err := plan.Load(args[0])
	if err != nil {
		return err
	}
	if first.Branch != "" {
		if err := ensureBranch(dir, first.Branch); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		// Reload each iteration so concurrent edits (or the agent itself
		// touching the plan) are picked up before the next step.
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		step, ok := p.Next()
		if !ok {
			done, total := p.Progress()
			fmt.Printf("%s plan complete (%d/%d steps done)\n", ui.Success.Render(ui.CheckMark()), done, total)
			return nil
		}

		toolName := planTool
		if toolName == "" {
			toolName = p.Tool
		}

		prompt, err := promptgen.Render(template, promptgen.Context(p, step, dir))
		if err != nil {
			return err
		}

		fmt.Printf("%s step %d/%d: %s\n\n",
			ui.Active.Render(ui.StepMark()), step.Index+1, len(p.Steps), step.Text)

		if _, err := executeAgentRun(ctx, cfg, agentRun{
			tool:    toolName,
			prompt:  prompt,
			dir:     dir,
			timeout: timeout,
			unitID:  util.Slug(p.Title),
			noLock:  planNoLock,
		}); err != nil {
			return err
		}

		if err := p.MarkDone(step.Index); err != nil {
			return err
		}

		if planCommit {
			if err := commitStep(dir, step); err != nil {
				return err
			}
		}

		if !planAll {
			done, total := p.Progress()
			fmt.Printf("%s\n", ui.Dim.Render(fmt.Sprintf("%d/%d steps done", done, total)))
			return nil
		}
	}
}

// ensureBranch puts the work tree on the plan's declared branch,
// creating it at HEAD when it does not exist yet.
func ensureBranch(dir, branch string) error {
	g := git.NewGit(dir)
	if !g.IsRepo() {
		return fmt.Errorf("plan declares branch %q but %s is not a git repository", branch, dir)
	}

	current, err := g.CurrentBranch()
	if err != nil {
		return err
	}
	if current == branch {
		return nil
	}

	// Create fails harmlessly when the branch already exists; the
	// checkout surfaces anything real (dirty tree, bad ref).
	_ = g.CreateBranch(branch)
	if err := g.Checkout(branch); err != nil {
		return err
	}
	fmt.Printf("%s\n", ui.Dim.Render("switched to branch "+branch))
	return nil
}

// commitStep commits the working tree after a completed plan step. A
// clean tree is fine: the step may have been a no-op or the agent may
// have committed its own work.
func commitStep(dir string, step *plan.Step) error {
	g := git.NewGit(dir)
	if !g.IsRepo() {
		return fmt.Errorf("--commit requires a git repository at %s", dir)
	}

	clean, err := g.IsClean()
	if err != nil {
		return err
	}
	if clean {
		fmt.Printf("%s\n", ui.Dim.Render("nothing to commit"))
		return nil
	}

	if err := g.Add(); err != nil {
		return err
	}
	if stat, err := g.DiffStat(); err == nil && stat != "" {
		fmt.Println(ui.Dim.Render(stat))
	}

	message := fmt.Sprintf("Step %d: %s", step.Index+1, step.Text)
	if err := g.Commit(message); err != nil {
		return err
	}
	fmt.Printf("%s committed %q\n", ui.Success.Render(ui.CheckMark()), message)
	return nil
}
