// Package feedback is the single-slot mailbox that hands the latest
// blocking verdict to the host. It is not a queue: a new write replaces any
// unread message.
package feedback

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the mailbox file inside a session directory.
const FileName = "feedback"

// Mailbox is bound to one session directory.
type Mailbox struct {
	path string
}

// NewMailbox binds a Mailbox to sessionDir.
func NewMailbox(sessionDir string) *Mailbox {
	return &Mailbox{path: filepath.Join(sessionDir, FileName)}
}

// Path returns the mailbox file path.
func (m *Mailbox) Path() string { return m.path }

// HasPending reports whether a non-empty message is waiting.
func (m *Mailbox) HasPending() bool {
	info, err := os.Stat(m.path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Write replaces any pending message with msg.
func (m *Mailbox) Write(msg string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create feedback dir: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(msg), 0o644); err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	return nil
}

// Take returns the pending message and removes it. ok is false when nothing
// was pending. Safe for a single reader only.
func (m *Mailbox) Take() (msg string, ok bool, err error) {
	if !m.HasPending() {
		return "", false, nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read feedback: %w", err)
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("clear feedback: %w", err)
	}
	return string(data), true, nil
}
