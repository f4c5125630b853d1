// Package mmap provides read-only memory-mapped file access for local
// snapshot blobs. On platforms without mmap support the file is read
// into memory instead; callers see the same API either way.
package mmap

import (
	"fmt"
	"os"
)

// Mapping is a read-only view of a file's contents.
type Mapping struct {
	data   []byte
	mapped bool // false when data is a heap copy
}

// Open maps the named file read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size == 0 {
		return &Mapping{data: nil, mapped: false}, nil
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("mmap: file too large: %d bytes", size)
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		// Fall back to a plain read; some filesystems refuse mmap.
		buf, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, err
		}
		return &Mapping{data: buf, mapped: false}, nil
	}
	return &Mapping{data: data, mapped: true}, nil
}

// Bytes returns the mapped contents. The slice is valid until Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Close releases the mapping.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if !m.mapped {
		return nil
	}
	return unmapFile(data)
}
