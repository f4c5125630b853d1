//go:build windows

package mmap

import (
	"errors"
	"os"
)

// Windows falls back to the plain-read path in Open.
func mapFile(*os.File, int) ([]byte, error) {
	return nil, errors.New("mmap: not supported on windows")
}

func unmapFile([]byte) error { return nil }
