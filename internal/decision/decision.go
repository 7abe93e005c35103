// Package decision is the append-only audit journal: one JSON file per
// decision under a session's decisions/ directory.
package decision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// DirName is the journal directory inside a session directory.
const DirName = "decisions"

const fileLayout = "2006-01-02T15-04-05Z"

// maxSuffix bounds the same-second collision search in Write.
const maxSuffix = 1000

// Type enumerates decision kinds.
type Type string

const (
	FeedbackDelivered  Type = "feedback_delivered"
	OverrideGranted    Type = "override_granted"
	PrecompactSnapshot Type = "precompact_snapshot"
)

// Valid reports whether t is a known decision type.
func (t Type) Valid() bool {
	switch t {
	case FeedbackDelivered, OverrideGranted, PrecompactSnapshot:
		return true
	}
	return false
}

// Decision is one audit record. Records are never modified after writing.
type Decision struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID *string   `json:"session_id"`
	Type      Type      `json:"type"`
	Context   *string   `json:"context"`
	Trigger   *string   `json:"trigger"`
}

// NewFeedbackDelivered records feedback handed to the host.
func NewFeedbackDelivered(at time.Time, sessionID, feedback string) Decision {
	return Decision{
		Timestamp: at.UTC(),
		SessionID: optional(sessionID),
		Type:      FeedbackDelivered,
		Context:   &feedback,
	}
}

// NewPrecompactSnapshot records a transcript snapshot taken before compaction.
// context is the snapshot location.
func NewPrecompactSnapshot(at time.Time, sessionID, context, trigger string) Decision {
	return Decision{
		Timestamp: at.UTC(),
		SessionID: optional(sessionID),
		Type:      PrecompactSnapshot,
		Context:   optional(context),
		Trigger:   optional(trigger),
	}
}

// ContextText returns Context or fallback when unset.
func (d Decision) ContextText(fallback string) string {
	if d.Context == nil {
		return fallback
	}
	return *d.Context
}

// Session returns SessionID or "".
func (d Decision) Session() string {
	if d.SessionID == nil {
		return ""
	}
	return *d.SessionID
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Journal reads and writes the decisions of one session directory.
type Journal struct {
	dir string
}

// NewJournal binds a Journal to sessionDir.
func NewJournal(sessionDir string) *Journal {
	return &Journal{dir: filepath.Join(sessionDir, DirName)}
}

// Dir returns the decisions directory.
func (j *Journal) Dir() string { return j.dir }

// Write stores d in its own file named from its timestamp at one-second
// resolution. A second decision in the same second gets a -1, -2, ...
// suffix instead of replacing the first. Returns the file path.
func (j *Journal) Write(d Decision) (string, error) {
	if !d.Type.Valid() {
		return "", fmt.Errorf("write decision: unknown type %q", d.Type)
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return "", fmt.Errorf("create decisions dir: %w", err)
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal decision: %w", err)
	}

	stem := d.Timestamp.UTC().Format(fileLayout)
	for n := 0; n < maxSuffix; n++ {
		name := stem + ".json"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.json", stem, n)
		}
		path := filepath.Join(j.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create decision file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write decision: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close decision: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("write decision: too many decisions at %s", stem)
}

// ReadAll returns every readable decision, oldest first. Files that fail to
// parse or carry an unknown type are logged and skipped. A missing
// directory yields an empty journal.
func (j *Journal) ReadAll() ([]Decision, error) {
	dirEntries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read decisions dir: %w", err)
	}

	var decisions []Decision
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		path := filepath.Join(j.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read decision: %w", err)
		}

		var d Decision
		if err := json.Unmarshal(data, &d); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping malformed decision file")
			continue
		}
		if !d.Type.Valid() {
			log.Warn().Str("path", path).Str("type", string(d.Type)).Msg("skipping decision with unknown type")
			continue
		}
		decisions = append(decisions, d)
	}

	sortByTime(decisions)
	return decisions, nil
}

// Recent returns up to n decisions of type t, oldest first, taken from the
// newest end of the journal.
func Recent(decisions []Decision, t Type, n int) []Decision {
	if n <= 0 {
		return nil
	}
	var picked []Decision
	for i := len(decisions) - 1; i >= 0 && len(picked) < n; i-- {
		if decisions[i].Type == t {
			picked = append(picked, decisions[i])
		}
	}
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}
	return picked
}

func sortByTime(ds []Decision) {
	sort.SliceStable(ds, func(a, b int) bool {
		return ds[a].Timestamp.Before(ds[b].Timestamp)
	})
}
