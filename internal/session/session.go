// Package session maps host session ids onto state directories.
//
// Layout under the project state root (normally .superego):
//
//	state.json, feedback, decisions/    legacy unscoped state
//	sessions/<id>/state.json            per-session watermark
//	sessions/<id>/feedback              per-session mailbox
//	sessions/<id>/decisions/            per-session journal
//	sessions/<id>/pending_change.txt    change proposed by PreToolUse
//	sessions/<id>/snapshots/            precompact transcript snapshots
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SessionsDir is the directory holding per-session namespaces.
const SessionsDir = "sessions"

// PendingChangeFile holds the change a PreToolUse hook asked about.
const PendingChangeFile = "pending_change.txt"

// SnapshotsDir holds precompact transcript snapshots.
const SnapshotsDir = "snapshots"

// Dir returns the state directory for id. An empty id selects the
// unscoped root itself.
func Dir(root, id string) string {
	if id == "" {
		return root
	}
	return filepath.Join(root, SessionsDir, id)
}

// ValidateID rejects ids that would escape the sessions directory.
func ValidateID(id string) error {
	if id == "" {
		return nil
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// Ensure validates id and creates its directory.
func Ensure(root, id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	dir := Dir(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// List returns the ids of all session namespaces under root, sorted.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, SessionsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
