//go:build darwin

package mmap

import (
	"syscall"
	"unsafe"
)

// MADV_SEQUENTIAL on darwin
const madvSequential = 2

// adviseSequential calls madvise directly; the syscall package has no
// wrapper on macOS
func adviseSequential(b []byte) error {
	_, _, errno := syscall.Syscall(syscall.SYS_MADVISE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(madvSequential))
	if errno != 0 {
		return errno
	}
	return nil
}
