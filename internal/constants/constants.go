// Package constants defines shared limits and well-known paths for drover.
package constants

import (
	"path/filepath"
	"time"
)

// Run execution limits.
const (
	// DefaultRunTimeout bounds a run's total wall-clock time, covering
	// output consumption and any waits for interactive input.
	DefaultRunTimeout = 600 * time.Second

	// CancelGraceWindow is how long a terminated process gets to exit
	// cleanly before it is forcefully killed.
	CancelGraceWindow = 5 * time.Second
)

// Advisory lock behavior.
const (
	// LockFileName is the lock file kept at the root of a unit of work.
	LockFileName = "drover.lock"

	// LockStaleTimeout is the heartbeat age beyond which a lock is
	// considered abandoned even when its owner pid is still alive.
	LockStaleTimeout = 3600 * time.Second

	// LockMaxAttempts bounds the acquire loop when clearing corrupt or
	// stale lock files, so racing stale-clearers cannot spin forever.
	LockMaxAttempts = 3
)

// Stream handling.
const (
	// MaxLineBytes is the largest single output line the scanners accept.
	MaxLineBytes = 1 << 20 // 1 MiB

	// StderrTailBytes caps how much trailing stderr is kept for failure
	// reports.
	StderrTailBytes = 4096

	// PromptWindowBytes caps the rolling output buffer used for
	// interactive prompt detection.
	PromptWindowBytes = 8192
)

// Serve defaults.
const (
	// DefaultServeAddr is where the remote-control API listens.
	DefaultServeAddr = "127.0.0.1:7433"
)

// LockPath returns the advisory lock path for a unit-of-work root.
func LockPath(root string) string {
	return filepath.Join(root, LockFileName)
}

// DBPath returns the run bookkeeping database path under a data dir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "drover.db")
}

// RunsDir returns the directory holding run transcripts under a data dir.
func RunsDir(dataDir string) string {
	return filepath.Join(dataDir, "runs")
}

// ServeLockPath returns the single-instance guard path for the serve
// process under a data dir.
func ServeLockPath(dataDir string) string {
	return filepath.Join(dataDir, "serve.lock")
}

// ServeLogPath returns the default serve log file path under a data dir.
func ServeLogPath(dataDir string) string {
	return filepath.Join(dataDir, "serve.log")
}
