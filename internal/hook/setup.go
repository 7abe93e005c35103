package hook

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const hookCommand = "sg hook"

// hookEvents are the Claude Code events sg registers for, with the tool
// matcher each uses.
var hookEvents = []struct {
	Name    string
	Matcher string
}{
	{"Stop", ""},
	{"UserPromptSubmit", ""},
	{"PreToolUse", "Edit|Write|MultiEdit"},
	{"PreCompact", ""},
}

// HostHookTimeout is the limit Claude Code applies to a command hook whose
// entry carries no "timeout" key.
const HostHookTimeout = 60 * time.Second

// timeoutMargin covers transcript reading, journal writes and process start
// on top of the engine call itself.
const timeoutMargin = 30 * time.Second

// Options control the hook entries Install writes.
type Options struct {
	// EvalTimeout is the reasoning-engine timeout. Stop and UserPromptSubmit
	// review synchronously, so each entry's timeout is set above it.
	EvalTimeout time.Duration
}

// timeoutSeconds is the "timeout" value written into each sg entry.
func (o Options) timeoutSeconds() int {
	d := o.EvalTimeout + timeoutMargin
	if d < HostHookTimeout {
		d = HostHookTimeout
	}
	return int(math.Ceil(d.Seconds()))
}

// SettingsPath returns the project settings file under baseDir.
func SettingsPath(baseDir string) string {
	return filepath.Join(baseDir, ".claude", "settings.json")
}

// Install adds sg hook entries to the project's .claude/settings.json, or
// refreshes their timeout when the engine timeout changed.
// Idempotent: returns nil even when already installed.
func Install(baseDir string, opts Options, w io.Writer) error {
	path := SettingsPath(baseDir)
	settings, err := readSettings(path)
	if err != nil {
		return err
	}

	timeout := opts.timeoutSeconds()
	if isInstalled(settings, timeout) {
		fmt.Fprintf(w, "sg hook already configured in %s\n", path)
		return nil
	}
	if err := backup(path); err != nil {
		return err
	}

	addHooks(settings, timeout)

	if err := writeSettings(path, settings); err != nil {
		return err
	}
	fmt.Fprintf(w, "sg hook installed in %s\n", path)
	return nil
}

// Uninstall removes sg hook entries from the project's .claude/settings.json.
// Idempotent: returns nil even when not installed.
func Uninstall(baseDir string, w io.Writer) error {
	path := SettingsPath(baseDir)
	settings, err := readSettings(path)
	if err != nil {
		return err
	}

	if !hasAnyHook(settings) {
		fmt.Fprintf(w, "sg hook not found in %s\n", path)
		return nil
	}
	if err := backup(path); err != nil {
		return err
	}

	removeHooks(settings)

	if err := writeSettings(path, settings); err != nil {
		return err
	}
	fmt.Fprintf(w, "sg hook removed from %s\n", path)
	return nil
}

// readSettings reads and parses the settings file.
// Returns an empty map if the file doesn't exist or is empty.
func readSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return make(map[string]any), nil
	}

	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

// writeSettings writes the settings map as pretty-printed JSON.
// Creates the parent directory if needed.
func writeSettings(path string, settings map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// backup copies the settings file to path.sg.bak. No-op if it doesn't exist.
func backup(path string) error {
	src, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer src.Close()

	dst, err := os.Create(path + ".sg.bak")
	if err != nil {
		return fmt.Errorf("backup: create %s.sg.bak: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("backup: copy: %w", err)
	}
	return nil
}

// isInstalled returns true when every event in hookEvents has an sg entry
// and each sg entry already carries the wanted timeout.
func isInstalled(settings map[string]any, timeout int) bool {
	hooksMap, ok := settings["hooks"].(map[string]any)
	if !ok {
		return false
	}
	for _, ev := range hookEvents {
		if !eventHasHook(hooksMap, ev.Name) {
			return false
		}
		for _, h := range sgCommands(hooksMap[ev.Name]) {
			if got, ok := intValue(h["timeout"]); !ok || got != timeout {
				return false
			}
		}
	}
	return true
}

// hasAnyHook returns true when any event has an sg entry.
func hasAnyHook(settings map[string]any) bool {
	hooksMap, ok := settings["hooks"].(map[string]any)
	if !ok {
		return false
	}
	for _, ev := range hookEvents {
		if eventHasHook(hooksMap, ev.Name) {
			return true
		}
	}
	return false
}

// addHooks ensures every event in hookEvents has an sg entry with the
// given timeout in seconds. Existing sg entries only get the timeout updated.
func addHooks(settings map[string]any, timeout int) {
	hooksMap, ok := settings["hooks"].(map[string]any)
	if !ok {
		hooksMap = make(map[string]any)
		settings["hooks"] = hooksMap
	}

	for _, ev := range hookEvents {
		if eventHasHook(hooksMap, ev.Name) {
			for _, h := range sgCommands(hooksMap[ev.Name]) {
				h["timeout"] = timeout
			}
			continue
		}
		entry := map[string]any{
			"matcher": ev.Matcher,
			"hooks": []any{
				map[string]any{
					"type":    "command",
					"command": hookCommand,
					"timeout": timeout,
				},
			},
		}
		eventArray, _ := hooksMap[ev.Name].([]any)
		hooksMap[ev.Name] = append(eventArray, entry)
	}
}

// removeHooks drops sg entries, then empty event arrays and an empty hooks map.
func removeHooks(settings map[string]any) {
	hooksMap, ok := settings["hooks"].(map[string]any)
	if !ok {
		return
	}

	for _, ev := range hookEvents {
		eventArray, ok := hooksMap[ev.Name].([]any)
		if !ok {
			continue
		}
		var kept []any
		for _, entry := range eventArray {
			if !entryHasHook(entry) {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(hooksMap, ev.Name)
		} else {
			hooksMap[ev.Name] = kept
		}
	}

	if len(hooksMap) == 0 {
		delete(settings, "hooks")
	}
}

// eventHasHook checks whether the given event has an sg command entry.
func eventHasHook(hooksMap map[string]any, event string) bool {
	eventArray, ok := hooksMap[event].([]any)
	if !ok {
		return false
	}
	for _, entry := range eventArray {
		if entryHasHook(entry) {
			return true
		}
	}
	return false
}

// entryHasHook checks whether a single matcher entry runs sg. It walks the
// nested {"hooks":[{"command":...}]} structure looking for hookCommand.
func entryHasHook(entry any) bool {
	return len(commandsIn(entry)) > 0
}

// sgCommands returns the sg command objects across an event's entries.
func sgCommands(eventValue any) []map[string]any {
	eventArray, _ := eventValue.([]any)
	var out []map[string]any
	for _, entry := range eventArray {
		out = append(out, commandsIn(entry)...)
	}
	return out
}

func commandsIn(entry any) []map[string]any {
	entryMap, ok := entry.(map[string]any)
	if !ok {
		return nil
	}
	innerHooks, ok := entryMap["hooks"].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, h := range innerHooks {
		hMap, ok := h.(map[string]any)
		if !ok {
			continue
		}
		cmd, _ := hMap["command"].(string)
		if strings.Contains(cmd, hookCommand) {
			out = append(out, hMap)
		}
	}
	return out
}

// intValue reads a JSON number decoded as float64, or an int set in memory.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
