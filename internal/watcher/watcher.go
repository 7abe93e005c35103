// Package watcher notifies when a transcript file is appended to.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces bursts of appends into one callback.
const DefaultDebounce = 2 * time.Second

// Watcher calls onChange after the target file is written or created and
// then stays quiet for the debounce period. It watches the parent directory
// since editors and hosts may replace the file rather than append to it.
// Callbacks never overlap; a change seen while one runs schedules one more.
type Watcher struct {
	targetPath string
	parentPath string
	onChange   func()
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	debounce   time.Duration

	mu      sync.Mutex
	running bool

	fireMu  sync.Mutex
	busy    bool
	pending bool
}

// New creates a Watcher for targetPath. debounce <= 0 uses DefaultDebounce.
func New(targetPath string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		targetPath: filepath.Clean(targetPath),
		parentPath: filepath.Dir(filepath.Clean(targetPath)),
		onChange:   onChange,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   debounce,
	}, nil
}

// Start begins watching. The parent directory must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	if err := w.watcher.Add(w.parentPath); err != nil {
		return err
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher. A callback already running is not interrupted.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug().Str("path", w.targetPath).Stringer("op", event.Op).Msg("transcript changed")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) fire() {
	w.fireMu.Lock()
	if w.busy {
		w.pending = true
		w.fireMu.Unlock()
		return
	}
	w.busy = true
	w.fireMu.Unlock()

	for {
		if w.ctx.Err() != nil {
			break
		}
		if w.onChange != nil {
			w.onChange()
		}
		w.fireMu.Lock()
		if !w.pending {
			w.busy = false
			w.fireMu.Unlock()
			return
		}
		w.pending = false
		w.fireMu.Unlock()
	}

	w.fireMu.Lock()
	w.busy = false
	w.pending = false
	w.fireMu.Unlock()
}
