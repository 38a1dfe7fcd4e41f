//go:build darwin

// Package unix provides platform-specific open flags for persisted files.
package unix

import "syscall"

// ONonblock keeps opens of persisted paths from hanging when a FIFO sits at
// the path on Darwin.
const ONonblock = syscall.O_NONBLOCK
