//go:build !windows

package proc

import (
	"os"

	"golang.org/x/sys/unix"
)

// Terminate asks a process to shut down gracefully (SIGTERM). Callers
// that need a hard stop escalate to Kill after a grace window.
func Terminate(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}

// Kill forcefully kills a process (SIGKILL).
func Kill(p *os.Process) error {
	return p.Kill()
}
