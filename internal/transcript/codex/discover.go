package codex

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// ExecOriginator marks rollouts created by `codex exec`, including our own
// review calls. Those are never reviewed.
const ExecOriginator = "codex_exec"

// Rollout is a discovered session file.
type Rollout struct {
	Path    string
	ModTime int64 // unix nanoseconds
}

// DefaultSessionsDir returns ~/.codex/sessions.
func DefaultSessionsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex", "sessions"), nil
}

// Discover walks dir recursively and returns user-initiated rollout files.
func Discover(dir string) ([]Rollout, error) {
	var results []Rollout

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if info.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if !userInitiated(path) {
			return nil
		}
		results = append(results, Rollout{Path: path, ModTime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindLatestSession returns the most recently modified user-initiated
// rollout under dir.
func FindLatestSession(dir string) (string, bool) {
	if _, err := os.Stat(dir); err != nil {
		return "", false
	}
	rollouts, err := Discover(dir)
	if err != nil || len(rollouts) == 0 {
		return "", false
	}
	latest := rollouts[0]
	for _, r := range rollouts[1:] {
		if r.ModTime > latest.ModTime {
			latest = r
		}
	}
	return latest.Path, true
}

// userInitiated looks for session_meta in the first lines. A file without
// one is assumed user-initiated.
func userInitiated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	for _, line := range headLines(f, 5) {
		var e Entry
		if json.Unmarshal([]byte(line), &e) != nil || e.Type != "session_meta" {
			continue
		}
		return e.payloadString("originator") != ExecOriginator
	}
	return true
}

// IsCodexFormat reports whether path looks like a Codex rollout rather than
// a Claude Code transcript, first by path and then by the first lines.
func IsCodexFormat(path string) bool {
	slashed := filepath.ToSlash(path)
	if strings.Contains(slashed, ".codex/sessions/") || strings.Contains(filepath.Base(path), "rollout-") {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	for _, line := range headLines(f, 5) {
		for _, marker := range []string{`"session_meta"`, `"response_item"`, `"event_msg"`, `"turn_context"`} {
			if strings.Contains(line, marker) {
				return true
			}
		}
		if strings.Contains(line, `"parentUuid"`) || strings.Contains(line, `"sessionId"`) {
			return false
		}
	}
	return false
}

func headLines(f *os.File, n int) []string {
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for len(lines) < n && sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
