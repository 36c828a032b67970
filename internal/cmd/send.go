// ABOUTME: Input delivery command for drover.
// ABOUTME: Sends a line of text to a run waiting on an interactive prompt.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/api"
	"github.com/droverhq/drover/internal/ui"
)

var sendAddr string

var sendCmd = &cobra.Command{
	Use:   "send <run-id> <text...>",
	Short: "Send input to a run",
	Long: `Send a line of input to a run managed by the run service.

The text is delivered to the agent's stdin when it is waiting on an
interactive prompt, or held for the next prompt if the agent is still
working.

Examples:
  drover send 42 yes
  drover send 42 "use the staging database"`,
	GroupID: GroupRuns,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "Run service address (default: config serve.addr)")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := sendAddr
	if addr == "" {
		addr = cfg.Addr()
	}

	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")

	client := api.NewClient(serviceURL(addr))
	delivered, err := client.SendInput(context.Background(), id, text)
	if err != nil {
		return err
	}
	if !delivered {
		return fmt.Errorf("run %d is not accepting input", id)
	}

	fmt.Printf("%s input sent to run %d\n", ui.Success.Render(ui.CheckMark()), id)
	return nil
}
