//go:build linux

package mmap

import (
	"syscall"
)

// adviseSequential wraps the madvise system call
func adviseSequential(b []byte) error {
	return syscall.Madvise(b, syscall.MADV_SEQUENTIAL)
}
