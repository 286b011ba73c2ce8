package workflow

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readScoped reads a file through an os.Root opened at its parent
// directory, so a crafted name cannot escape the checkpoint dir.
func readScoped(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid checkpoint path %q", path)
	}

	root, err := os.OpenRoot(filepath.Dir(cleaned))
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
