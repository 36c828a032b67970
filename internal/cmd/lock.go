// ABOUTME: Lock inspection commands for drover.
// ABOUTME: Shows and clears the advisory lock guarding a working directory.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/lock"
	"github.com/droverhq/drover/internal/proc"
	"github.com/droverhq/drover/internal/ui"
)

var (
	lockDir   string
	lockForce bool
)

var lockCmd = &cobra.Command{
	Use:     "lock",
	Short:   "Inspect the working-directory lock",
	GroupID: GroupDiag,
	RunE:    requireSubcommand,
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who holds the lock",
	Long: `Show the holder of a working directory's advisory lock.

Exits 0 when the lock is held and 1 when it is free, so scripts can
gate on it without parsing output.`,
	Args: cobra.NoArgs,
	RunE: runLockStatus,
}

var lockReleaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Clear a stale lock",
	Long: `Remove the advisory lock from a working directory.

Refuses to touch a lock whose owner is still alive and heartbeating
unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runLockRelease,
}

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockReleaseCmd)

	lockCmd.PersistentFlags().StringVar(&lockDir, "dir", "", "Working directory to inspect (default: current directory)")
	lockReleaseCmd.Flags().BoolVar(&lockForce, "force", false, "Release even if the owner is alive")
}

func runLockStatus(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(lockDir)
	if err != nil {
		return err
	}

	guard := lock.NewGuard(dir)
	lk, err := guard.Current()
	if err != nil {
		return err
	}
	if lk == nil {
		fmt.Printf("%s is not locked\n", dir)
		return NewSilentExit(1)
	}

	fmt.Printf("Locked by pid %d (%s)\n", lk.PID, lk.Command)
	fmt.Printf("  run:       %s\n", lk.RunID)
	fmt.Printf("  started:   %s\n", lk.StartedAt.Format(time.RFC3339))
	fmt.Printf("  heartbeat: %s ago\n", time.Since(lk.LastHeartbeat).Round(time.Second))

	if !proc.Alive(lk.PID) {
		fmt.Printf("  %s\n", ui.Warning.Render("stale: owner is dead"))
	} else if age := time.Since(lk.LastHeartbeat); age > constants.LockStaleTimeout {
		fmt.Printf("  %s\n", ui.Warning.Render(fmt.Sprintf("stale: no heartbeat for %s", age.Round(time.Second))))
	}
	return nil
}

func runLockRelease(cmd *cobra.Command, args []string) error {
	dir, err := resolveDir(lockDir)
	if err != nil {
		return err
	}

	guard := lock.NewGuard(dir)
	lk, err := guard.Current()
	if err != nil {
		return err
	}
	if lk == nil {
		fmt.Printf("%s is not locked\n", dir)
		return nil
	}

	stale := !proc.Alive(lk.PID) || time.Since(lk.LastHeartbeat) > constants.LockStaleTimeout
	if !stale && !lockForce {
		return fmt.Errorf("lock is held by live pid %d (%s); use --force to release anyway",
			lk.PID, lk.Command)
	}

	if err := os.Remove(guard.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	fmt.Printf("%s released lock at %s\n", ui.Success.Render(ui.CheckMark()), guard.Path())
	return nil
}
