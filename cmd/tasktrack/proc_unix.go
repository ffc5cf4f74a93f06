//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

func configureDevchainProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
