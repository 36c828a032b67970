//go:build !windows

package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// alive sends signal 0, which performs existence and permission checks
// without delivering anything. EPERM means the process exists but belongs
// to another user, so it still counts as alive.
func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
