//go:build !windows

package recorder

import (
	"os"
	"syscall"
)

// sysProcAttr returns process attributes for the recorder child. No special
// attributes are needed on POSIX platforms.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// interrupt delivers the Ctrl-C-equivalent signal to the recorder so it can
// flush and close its output file.
func interrupt(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
