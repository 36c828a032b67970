//go:build windows

package proc

import "os"

// Terminate stops a process. Windows has no graceful termination signal
// for arbitrary processes, so this kills outright.
func Terminate(p *os.Process) error {
	return p.Kill()
}

// Kill forcefully kills a process.
func Kill(p *os.Process) error {
	return p.Kill()
}
