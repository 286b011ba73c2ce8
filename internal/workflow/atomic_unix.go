//go:build !windows

package workflow

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile writes a checkpoint file atomically so a crash mid-write
// never leaves a torn snapshot behind.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
