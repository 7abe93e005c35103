// Package lock implements an advisory lock file with age-based staleness.
// It does not block: a fresh lock held by someone else is reported as
// ErrHeld and the caller decides whether to skip.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultStaleAfter is the age after which an existing lock is presumed
// abandoned and removed.
const DefaultStaleAfter = 5 * time.Minute

// ErrHeld is returned by Acquire when a fresh lock exists.
var ErrHeld = errors.New("lock held by another process")

type metadata struct {
	Token     string    `json:"token"`
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// Lock is an acquired lock file.
type Lock struct {
	path  string
	token string
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire creates the lock file at path. An existing file younger than
// staleAfter yields ErrHeld; an older one is removed and acquisition retried
// once.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		l, err := create(path)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock: %w", err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				continue // released between create and stat
			}
			return nil, fmt.Errorf("stat lock: %w", statErr)
		}
		if time.Since(info.ModTime()) < staleAfter {
			return nil, ErrHeld
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return nil, ErrHeld
}

func create(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := &Lock{path: path, token: uuid.NewString()}
	data, err := json.Marshal(metadata{Token: l.token, PID: os.Getpid(), CreatedAt: time.Now().UTC()})
	if err == nil {
		_, err = f.Write(append(data, '\n'))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return l, nil
}

// Release removes the lock file if it still carries this lock's token.
// A lock that was reclaimed as stale by another process is left alone.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock: %w", err)
	}
	var m metadata
	if json.Unmarshal(data, &m) != nil || m.Token != l.token {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}
