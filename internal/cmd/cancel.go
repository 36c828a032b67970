// ABOUTME: Run cancellation command for drover.
// ABOUTME: Asks the run service to stop a run, graceful first then forced.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/api"
	"github.com/droverhq/drover/internal/ui"
)

var cancelAddr string

var cancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel a run",
	Long: `Cancel a run managed by the run service.

The agent process is asked to exit cleanly and killed if it has not
done so within the grace window.`,
	GroupID: GroupRuns,
	Args:    cobra.ExactArgs(1),
	RunE:    runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().StringVar(&cancelAddr, "addr", "", "Run service address (default: config serve.addr)")
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cancelAddr
	if addr == "" {
		addr = cfg.Addr()
	}

	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}

	client := api.NewClient(serviceURL(addr))
	cancelled, err := client.Cancel(context.Background(), id)
	if err != nil {
		return err
	}
	if !cancelled {
		return fmt.Errorf("run %d is not running", id)
	}

	fmt.Printf("%s run %d cancelled\n", ui.Success.Render(ui.CheckMark()), id)
	return nil
}
