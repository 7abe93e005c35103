// Package state persists the per-session evaluation watermark.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// FileName is the watermark file inside a session directory.
const FileName = "state.json"

// Watermark records how far a session's transcript has been reviewed.
type Watermark struct {
	LastEvaluated *time.Time `json:"last_evaluated"`
	Disabled      bool       `json:"disabled"`
}

// MarkEvaluatedAt advances the cursor to readAt, the instant the transcript
// was read for the evaluation that just succeeded. Callers must pass the
// time captured before the engine call, never the completion time. The
// cursor never moves backwards.
func (w *Watermark) MarkEvaluatedAt(readAt time.Time) {
	readAt = readAt.UTC()
	if w.LastEvaluated != nil && !readAt.After(*w.LastEvaluated) {
		return
	}
	w.LastEvaluated = &readAt
}

// Cursor returns the last evaluated instant and whether one is set.
func (w Watermark) Cursor() (time.Time, bool) {
	if w.LastEvaluated == nil {
		return time.Time{}, false
	}
	return *w.LastEvaluated, true
}

// Manager reads and writes the watermark of one session directory.
type Manager struct {
	path string
}

// NewManager binds a Manager to sessionDir.
func NewManager(sessionDir string) *Manager {
	return &Manager{path: filepath.Join(sessionDir, FileName)}
}

// Path returns the watermark file path.
func (m *Manager) Path() string { return m.path }

// Load reads the watermark, returning the zero Watermark if no file exists.
func (m *Manager) Load() (Watermark, error) {
	var w Watermark
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return w, fmt.Errorf("read state: %w", err)
	}

	if err := json.Unmarshal(data, &w); err != nil {
		return Watermark{}, fmt.Errorf("parse state: %w", err)
	}
	return w, nil
}

// Save writes the watermark. The file is replaced by rename so a reader
// never sees a partial record.
func (m *Manager) Save(w Watermark) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Update loads, applies fn, and saves. There is no protection against a
// concurrent writer doing the same.
func (m *Manager) Update(fn func(*Watermark)) (Watermark, error) {
	w, err := m.Load()
	if err != nil {
		return Watermark{}, err
	}
	fn(&w)
	if err := m.Save(w); err != nil {
		return Watermark{}, err
	}
	return w, nil
}
