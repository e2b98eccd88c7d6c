//go:build windows

package recorder

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// sysProcAttr places the recorder child in its own process group so a
// console control event can target it without hitting this process.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// interrupt delivers CTRL_BREAK to the recorder's process group, the closest
// Windows equivalent to Ctrl-C for a child console process.
func interrupt(p *os.Process) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid))
}
