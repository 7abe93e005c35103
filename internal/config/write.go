package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const projectHeader = `# superego project configuration
# Absent keys fall back to user config (~/.config/superego/config.toml), then defaults.
`

// WriteDefault writes superegoDir/config.yaml with default values.
// Returns the file path and "created" or "exists"; an existing file is left alone.
func WriteDefault(superegoDir string) (string, string, error) {
	path := filepath.Join(superegoDir, ProjectFile)

	if _, err := os.Stat(path); err == nil {
		return path, "exists", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("stat config: %w", err)
	}

	if err := os.MkdirAll(superegoDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create config dir: %w", err)
	}

	body, err := Marshal(DefaultConfig())
	if err != nil {
		return "", "", err
	}

	if err := os.WriteFile(path, append([]byte(projectHeader), body...), 0o644); err != nil {
		return "", "", fmt.Errorf("write config: %w", err)
	}
	return path, "created", nil
}

// Marshal renders cfg in the project YAML format.
func Marshal(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
