package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// DataDir expands base (which may start with ~), joins the optional parts and
// makes sure the directory exists.
func DataDir(base string, parts ...string) (string, error) {
	dir, err := homedir.Expand(filepath.Join(append([]string{base}, parts...)...))
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", base, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
