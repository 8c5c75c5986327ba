package util

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandUser resolves a leading ~/ to the user's home directory. Any other
// path is returned unchanged.
func ExpandUser(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}
