//go:build windows

package procutil

import (
	"os/exec"
	"syscall"
)

// HideWindow keeps ddcutil/nvibrant ports from flashing a console window.
// Existing SysProcAttr fields are preserved.
func HideWindow(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
}
