// Package runfail defines the typed failures shared by the streaming
// runner and the run executor. Callers get exactly one of these per
// invocation; partial output is never silently passed off as success.
package runfail

import (
	"errors"
	"fmt"
)

// Sentinel failures for external command runs.
var (
	// ErrNotFound means the executable could not be located.
	ErrNotFound = errors.New("executable not found")

	// ErrTimedOut means the run exceeded its wall-clock timeout and the
	// process was terminated.
	ErrTimedOut = errors.New("run timed out")

	// ErrCancelled means the run was cancelled from outside before it
	// finished.
	ErrCancelled = errors.New("run cancelled")
)

// ExitError reports a process that exited with a non-zero code. The
// stderr tail carries the last few KB of the error stream for context.
type ExitError struct {
	Code       int
	StderrTail string
}

func (e *ExitError) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("command exited with code %d", e.Code)
	}
	return fmt.Sprintf("command exited with code %d: %s", e.Code, e.StderrTail)
}

// ExitCode extracts the exit code from an error chain. The second
// return is false when the error is not an ExitError.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
