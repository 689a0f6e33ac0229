//go:build unix

package server

import (
	"os"
	"syscall"
)

// isProcessRunning reports whether pid refers to a live process.
func isProcessRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
