// Package mmap maps source files into memory read-only, so large Parquet,
// Arrow and Avro inputs can be ingested without first copying them onto the
// Go heap.
package mmap

import (
	"fmt"
	"os"
	"sync"
)

// File is a read-only memory mapping of a whole file.
type File struct {
	file *os.File
	data []byte

	mu     sync.Mutex
	closed bool
}

// Open maps path into memory. An empty file maps to an empty slice.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()
	if size == 0 {
		return &File{file: f, data: []byte{}}, nil
	}
	if int64(int(size)) != size {
		f.Close()
		return nil, fmt.Errorf("file of %d bytes is too large to map", size)
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}
	// the advice is a hint; ignoring a failure only costs read-ahead
	_ = adviseSequential(data)

	return &File{file: f, data: data}, nil
}

// Bytes returns the mapped content. It must not be modified, and must not
// be used after Close.
func (m *File) Bytes() []byte {
	return m.data
}

// Len returns the file size.
func (m *File) Len() int {
	return len(m.data)
}

// Close unmaps the file. It is safe to call more than once.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if len(m.data) > 0 {
		err = unmap(m.data)
	}
	m.data = nil
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}
