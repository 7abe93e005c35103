package hook

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0o644))
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func hasEvent(settings map[string]any, event string) bool {
	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		return false
	}
	return eventHasHook(hooks, event)
}

func TestInstall_NoFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Install(dir, Options{}, io.Discard))

	path := SettingsPath(dir)
	settings := readJSON(t, path)
	for _, ev := range []string{"Stop", "UserPromptSubmit", "PreToolUse", "PreCompact"} {
		assert.True(t, hasEvent(settings, ev), "missing %s hook", ev)
	}
	assert.NoFileExists(t, path+".sg.bak", "nothing to back up on a fresh install")
}

func TestInstall_PreToolUseMatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Install(dir, Options{}, io.Discard))

	hooks := readJSON(t, SettingsPath(dir))["hooks"].(map[string]any)
	entry := hooks["PreToolUse"].([]any)[0].(map[string]any)
	assert.Equal(t, "Edit|Write|MultiEdit", entry["matcher"])
	stop := hooks["Stop"].([]any)[0].(map[string]any)
	assert.Equal(t, "", stop["matcher"])
}

func TestInstall_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	require.NoError(t, Install(dir, Options{}, io.Discard))
	assert.True(t, hasEvent(readJSON(t, path), "Stop"))
}

func TestInstall_PreservesExistingSettings(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	other := map[string]any{
		"matcher": "",
		"hooks":   []any{map[string]any{"type": "command", "command": "other-tool"}},
	}
	writeJSON(t, path, map[string]any{
		"permissions": map[string]any{"allow": []any{"Bash(ls)"}},
		"hooks":       map[string]any{"Stop": []any{other}},
	})

	require.NoError(t, Install(dir, Options{}, io.Discard))

	settings := readJSON(t, path)
	assert.Contains(t, settings, "permissions")
	stop := settings["hooks"].(map[string]any)["Stop"].([]any)
	assert.Len(t, stop, 2, "existing Stop hook kept alongside sg")
	assert.FileExists(t, path+".sg.bak")
}

func TestInstall_Idempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Install(dir, Options{}, io.Discard))
	require.NoError(t, Install(dir, Options{}, io.Discard))

	hooks := readJSON(t, SettingsPath(dir))["hooks"].(map[string]any)
	assert.Len(t, hooks["Stop"].([]any), 1)
	assert.Len(t, hooks["PreCompact"].([]any), 1)
}

func TestInstall_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	err := Install(dir, Options{}, io.Discard)
	assert.ErrorContains(t, err, "parse")
}

func TestUninstall(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	other := map[string]any{
		"matcher": "",
		"hooks":   []any{map[string]any{"type": "command", "command": "other-tool"}},
	}
	writeJSON(t, path, map[string]any{"hooks": map[string]any{"Stop": []any{other}}})
	require.NoError(t, Install(dir, Options{}, io.Discard))

	require.NoError(t, Uninstall(dir, io.Discard))

	settings := readJSON(t, path)
	hooks := settings["hooks"].(map[string]any)
	assert.Len(t, hooks["Stop"].([]any), 1, "foreign hook survives")
	assert.False(t, hasEvent(settings, "Stop"))
	assert.NotContains(t, hooks, "PreToolUse")
}

func TestUninstall_RemovesEmptyHooks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Install(dir, Options{}, io.Discard))
	require.NoError(t, Uninstall(dir, io.Discard))

	assert.NotContains(t, readJSON(t, SettingsPath(dir)), "hooks")
}

func TestUninstall_NotInstalled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Uninstall(dir, io.Discard))
	assert.NoFileExists(t, SettingsPath(dir))
}

func sgTimeouts(t *testing.T, path string) map[string]any {
	t.Helper()
	hooks := readJSON(t, path)["hooks"].(map[string]any)
	out := make(map[string]any)
	for _, ev := range hookEvents {
		entry := hooks[ev.Name].([]any)[0].(map[string]any)
		cmd := entry["hooks"].([]any)[0].(map[string]any)
		out[ev.Name] = cmd["timeout"]
	}
	return out
}

func TestInstall_TimeoutCoversEngineCall(t *testing.T) {
	tests := []struct {
		name string
		eval time.Duration
		want float64
	}{
		{"default engine timeout", 300 * time.Second, 330},
		{"short engine timeout keeps host floor", 5 * time.Second, 60},
		{"unset", 0, 60},
		{"fractional seconds round up", 90*time.Second + 500*time.Millisecond, 121},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, Install(dir, Options{EvalTimeout: tt.eval}, io.Discard))
			for event, got := range sgTimeouts(t, SettingsPath(dir)) {
				assert.Equal(t, tt.want, got, event)
			}
		})
	}
}

func TestInstall_RefreshesTimeout(t *testing.T) {
	dir := t.TempDir()
	path := SettingsPath(dir)
	writeJSON(t, path, map[string]any{"hooks": map[string]any{
		"Stop": []any{map[string]any{
			"matcher": "",
			"hooks":   []any{map[string]any{"type": "command", "command": "sg hook"}},
		}},
	}})

	require.NoError(t, Install(dir, Options{EvalTimeout: 300 * time.Second}, io.Discard))
	hooks := readJSON(t, path)["hooks"].(map[string]any)
	assert.Len(t, hooks["Stop"].([]any), 1, "existing entry reused")
	assert.Equal(t, float64(330), sgTimeouts(t, path)["Stop"])

	require.NoError(t, Install(dir, Options{EvalTimeout: 600 * time.Second}, io.Discard))
	for event, got := range sgTimeouts(t, path) {
		assert.Equal(t, float64(630), got, event)
	}
}
