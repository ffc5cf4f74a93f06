//go:build windows

package main

import (
	"os/exec"
)

func configureDevchainProc(cmd *exec.Cmd) {
	// Windows doesn't use Setsid.
}
