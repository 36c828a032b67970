// ABOUTME: Synchronous agent run command for drover.
// ABOUTME: Spawns a configured agent CLI with a prompt and streams readable output.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/extract"
	"github.com/droverhq/drover/internal/lock"
	"github.com/droverhq/drover/internal/runfail"
	"github.com/droverhq/drover/internal/runner"
	"github.com/droverhq/drover/internal/store"
	"github.com/droverhq/drover/internal/ui"
	"github.com/droverhq/drover/internal/util"
)

// lockHeartbeatInterval is how often a running command refreshes the
// advisory lock. Well under the stale timeout so a healthy run is never
// mistaken for an abandoned one.
const lockHeartbeatInterval = 60 * time.Second

var (
	runTool    string
	runDir     string
	runTimeout int
	runUnit    string
	runNoLock  bool
	runPlain   bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt...>",
	Short: "Run an agent CLI with a prompt",
	Long: `Run a configured agent CLI with the given prompt and stream its
output to the terminal.

The agent's JSON event stream is reduced to readable text. The working
directory is guarded by an advisory lock for the duration of the run,
and the run is recorded in the local database (see 'drover runs').

Examples:
  drover run "fix the failing auth tests"
  drover run --tool codex "add pagination to /api/items"
  drover run --dir ~/src/app --timeout 120 "bump deps"`,
	GroupID: GroupWork,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runTool, "tool", "", "Agent tool to run (default: config default_tool)")
	runCmd.Flags().StringVar(&runDir, "dir", "", "Working directory for the agent (default: current directory)")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0, "Run timeout in seconds (default: config timeout)")
	runCmd.Flags().StringVar(&runUnit, "unit", "", "Unit-of-work id to record with the run")
	runCmd.Flags().BoolVar(&runNoLock, "no-lock", false, "Skip the working-directory lock")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Pass output through without extraction")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return fmt.Errorf("prompt is required")
	}

	dir, err := resolveDir(runDir)
	if err != nil {
		return err
	}

	timeout := cfg.Timeout()
	if runTimeout > 0 {
		timeout = time.Duration(runTimeout) * time.Second
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = executeAgentRun(ctx, cfg, agentRun{
		tool:    runTool,
		prompt:  prompt,
		dir:     dir,
		timeout: timeout,
		unitID:  runUnit,
		noLock:  runNoLock,
		plain:   runPlain,
	})
	return err
}

// agentRun describes one synchronous agent invocation.
type agentRun struct {
	tool    string // tool name; empty selects the config default
	prompt  string
	dir     string
	timeout time.Duration
	unitID  string
	noLock  bool
	plain   bool
}

// executeAgentRun performs one locked, recorded agent run: it resolves
// the tool, takes the working-directory lock, streams the run to stdout,
// saves the transcript, and finalizes the bookkeeping row. It returns
// the accumulated transcript text so callers (plan run) can post-process
// it.
func executeAgentRun(ctx context.Context, cfg *config.Config, opts agentRun) (string, error) {
	toolName := opts.tool
	if toolName == "" {
		toolName = cfg.DefaultTool
	}
	tool, err := cfg.Tool(toolName)
	if err != nil {
		return "", err
	}

	// Custom tools without a known stream format get plain passthrough.
	extractor := extract.Plain()
	if !opts.plain {
		if ex, err := extract.ForTool(toolName); err == nil {
			extractor = ex
		}
	}

	token := uuid.NewString()

	if !opts.noLock {
		guard := lock.NewGuard(opts.dir)
		if _, err := guard.Acquire(token, tool.Command); err != nil {
			var busy *lock.BusyError
			if errors.As(err, &busy) {
				return "", fmt.Errorf("%s is busy: %w", opts.dir, err)
			}
			return "", err
		}
		defer func() {
			if err := guard.Release(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: releasing lock: %v\n", err)
			}
		}()

		stopBeat := make(chan struct{})
		defer close(stopBeat)
		go heartbeatLoop(guard, stopBeat)
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return "", err
	}
	st, err := store.Open(dataDir)
	if err != nil {
		return "", err
	}
	defer st.Close()

	if err := os.MkdirAll(constants.RunsDir(dataDir), 0o755); err != nil {
		return "", fmt.Errorf("creating runs dir: %w", err)
	}
	transcriptPath := filepath.Join(constants.RunsDir(dataDir), token+".log")
	row := &store.Run{
		Token:          token,
		UnitID:         opts.unitID,
		Tool:           toolName,
		Command:        tool.Command,
		Prompt:         opts.prompt,
		Status:         store.StatusRunning,
		TranscriptPath: transcriptPath,
	}
	id, err := st.CreateRun(row)
	if err != nil {
		return "", err
	}

	toolArgs := append(append([]string{}, tool.Args...), opts.prompt)

	start := time.Now()
	text, runErr := runner.Run(ctx, runner.Spec{
		Command:   tool.Command,
		Args:      toolArgs,
		Dir:       opts.dir,
		Timeout:   opts.timeout,
		Extractor: extractor,
		Console:   os.Stdout,
	})
	elapsed := time.Since(start).Round(time.Second)

	if text != "" {
		if err := util.AtomicWriteFile(transcriptPath, []byte(text), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: saving transcript: %v\n", err)
		}
	}

	status, exitCode := finishState(runErr)
	if err := st.FinishRun(id, status, exitCode); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: recording run: %v\n", err)
	}

	if runErr != nil {
		return text, fmt.Errorf("run %d: %w", id, runErr)
	}

	if !strings.HasSuffix(text, "\n") {
		fmt.Println()
	}
	fmt.Printf("%s run %d completed in %s\n", ui.Success.Render(ui.CheckMark()), id, elapsed)
	return text, nil
}

// finishState maps a runner error to the stored status and exit code.
func finishState(err error) (string, *int) {
	switch {
	case err == nil:
		zero := 0
		return store.StatusCompleted, &zero
	case errors.Is(err, runfail.ErrTimedOut):
		return store.StatusTimedOut, nil
	case errors.Is(err, runfail.ErrCancelled):
		return store.StatusCancelled, nil
	default:
		if code, ok := runfail.ExitCode(err); ok {
			return store.StatusFailed, &code
		}
		return store.StatusFailed, nil
	}
}

// heartbeatLoop refreshes the lock until stop is closed.
func heartbeatLoop(guard *lock.Guard, stop <-chan struct{}) {
	ticker := time.NewTicker(lockHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := guard.Heartbeat(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: lock heartbeat: %v\n", err)
			}
		case <-stop:
			return
		}
	}
}
