// Package proc provides small platform-specific probes and signals for
// local processes. The rest of the codebase stays platform-free by going
// through these helpers.
package proc

// Alive reports whether a process with the given pid currently exists.
// It never blocks and does not require the process to be a child of the
// caller.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return alive(pid)
}
