package evaluate

import (
	"fmt"
	"path/filepath"

	"github.com/open-horizon-labs/superego/internal/archive"
	"github.com/open-horizon-labs/superego/internal/decision"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/rs/zerolog/log"
)

// Snapshot archives the transcript before the host compacts it and journals
// a precompact_snapshot decision pointing at the archive. Returns the
// archive path.
func (e *Evaluator) Snapshot(transcriptPath, sessionID, trigger string) (string, error) {
	dir, err := session.Ensure(e.Root, sessionID)
	if err != nil {
		return "", err
	}

	at := e.now()
	path, err := archive.Snapshot(transcriptPath, filepath.Join(dir, session.SnapshotsDir), at)
	if err != nil {
		return "", fmt.Errorf("snapshot transcript: %w", err)
	}

	if _, err := decision.NewJournal(dir).Write(decision.NewPrecompactSnapshot(at, sessionID, path, trigger)); err != nil {
		log.Warn().Err(err).Str("snapshot", path).Msg("failed to journal snapshot")
	}
	return path, nil
}
