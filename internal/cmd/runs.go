// ABOUTME: Run listing command for drover.
// ABOUTME: Shows recent runs as a table or as a live TUI monitor.

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/tui"
	"github.com/droverhq/drover/internal/ui"
)

var (
	runsLimit int
	runsWatch bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long: `List recent runs from the local database, newest first.

With --watch, opens an interactive monitor that refreshes live and can
show each run's transcript.`,
	GroupID: GroupRuns,
	Args:    cobra.NoArgs,
	RunE:    runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().BoolVar(&runsWatch, "watch", false, "Open the interactive run monitor")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if runsWatch {
		return tui.Run(st)
	}

	runs, err := st.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded. Start one with 'drover run'.")
		return nil
	}

	table := ui.NewTable(
		ui.Column{Name: "ID", Width: 4, Align: ui.AlignRight},
		ui.Column{Name: "TOOL", Width: 8},
		ui.Column{Name: "STATUS", Width: 15},
		ui.Column{Name: "STARTED", Width: 8},
		ui.Column{Name: "PROMPT", Width: 44},
	)
	for _, run := range runs {
		table.AddRow(
			strconv.FormatInt(run.ID, 10),
			run.Tool,
			ui.StyledStatus(run.Status),
			formatStarted(run.StartedAt),
			run.Prompt,
		)
	}
	fmt.Print(table.Render())
	return nil
}

// formatStarted renders a start time as a compact age, matching the
// monitor's style.
func formatStarted(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
