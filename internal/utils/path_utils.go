package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath resolves a path named in a settings file. Paths starting
// with a dot are relative to baseDir, "~/" expands to the home directory,
// anything else is returned as is.
func ResolvePath(baseDir, path string) string {
	switch {
	case path == "":
		return path
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	case path[0] == '.':
		if baseDir != "." && baseDir != "" {
			return filepath.Join(baseDir, path)
		}
	}
	return path
}
