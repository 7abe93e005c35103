package evaluate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/rs/zerolog/log"
)

// WritePendingChange stores a proposed change for the next review of the
// session in dir, replacing any earlier one.
func WritePendingChange(dir, change string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, session.PendingChangeFile), []byte(change), 0o644); err != nil {
		return fmt.Errorf("write pending change: %w", err)
	}
	return nil
}

// ReadPendingChange returns the stored change, or "" if there is none.
func ReadPendingChange(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, session.PendingChangeFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("ignoring unreadable pending change")
		}
		return ""
	}
	return string(data)
}

// ClearPendingChange removes the stored change once it has been reviewed.
func ClearPendingChange(dir string) {
	err := os.Remove(filepath.Join(dir, session.PendingChangeFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to clear pending change")
	}
}
