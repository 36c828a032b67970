//go:build windows

package proc

import "golang.org/x/sys/windows"

// alive opens the process handle and checks its exit status. Windows has
// no signal-0 equivalent, so this is the closest existence probe.
func alive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == windows.STILL_ACTIVE
}
