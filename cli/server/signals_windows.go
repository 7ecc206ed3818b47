//go:build windows

package server

import "syscall"

const (
	sighup  = syscall.SIGHUP
	sigusr1 = syscall.Signal(0xa) // doesn't exist on Windows
)
