// Package cmd provides CLI commands for the drover tool.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:     "drover",
	Short:   "Drover - plan-driven runner for coding agents",
	Version: Version,
	Long: `Drover runs coding-agent CLIs (claude, codex, opencode) against your
repository, one prompt or one plan step at a time.

It streams readable output from the agent's JSON firehose, guards each
working directory with an advisory lock, and keeps a local record of
every run. The serve command exposes runs over HTTP so they can be
started, fed input, and cancelled remotely.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.ConfigureColor()
	},
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		// Check for silent exit (scripting commands that signal status via exit code)
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		// Other errors already printed by cobra
		return 1
	}
	return 0
}

// Command group IDs - used by subcommands to organize help output
const (
	GroupWork     = "work"
	GroupRuns     = "runs"
	GroupServices = "services"
	GroupDiag     = "diag"
)

func init() {
	// Enable prefix matching for subcommands (e.g., "drover pl ru" -> "drover plan run")
	cobra.EnablePrefixMatching = true

	// Define command groups (order determines help output order)
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWork, Title: "Work:"},
		&cobra.Group{ID: GroupRuns, Title: "Run Management:"},
		&cobra.Group{ID: GroupServices, Title: "Services:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)

	// Put help and completion in a sensible group
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)
}

// buildCommandPath walks the command hierarchy to build the full command path.
// For example: "drover plan run", "drover lock status", etc.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands like "drover plan foobar", masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
