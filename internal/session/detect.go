package session

import (
	"os"
	"path/filepath"
)

// StateDirName is the project-level state directory.
const StateDirName = ".superego"

// FindRoot walks up from cwd looking for a .superego directory.
// Returns the directory path and true when found.
func FindRoot(cwd string) (string, bool) {
	if cwd == "" {
		return "", false
	}
	dir := filepath.Clean(cwd)
	for {
		candidate := filepath.Join(dir, StateDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
