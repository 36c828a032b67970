package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the drover release version. Overridden at build time via
// -ldflags "-X github.com/droverhq/drover/internal/cmd.Version=...".
var Version = "0.3.0-dev"

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the drover version",
	GroupID: GroupDiag,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("drover %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
