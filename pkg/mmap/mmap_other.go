//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// without mmap the file is read onto the heap
func mapFile(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func unmap([]byte) error { return nil }

func adviseSequential([]byte) error { return nil }
