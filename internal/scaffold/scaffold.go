// Package scaffold creates the .superego state directory and owns the
// embedded default review prompt.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-horizon-labs/superego/internal/config"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/open-horizon-labs/superego/internal/state"
)

//go:embed templates
var templates embed.FS

// PromptFile is the project prompt override inside the state directory.
const PromptFile = "prompt.md"

const gitignoreMarker = "# Superego"

// ErrExists is returned by Init when the state directory is already present.
var ErrExists = errors.New(session.StateDirName + "/ already exists")

// Options controls scaffold behavior.
type Options struct {
	Force bool // overwrite prompt.md and state.json in an existing directory
}

// DefaultPrompt returns the embedded review prompt.
func DefaultPrompt() string {
	data, err := templates.ReadFile("templates/" + PromptFile)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt missing: %v", err))
	}
	return string(data)
}

// LoadPrompt returns superegoDir/prompt.md, or the embedded default when
// the file does not exist.
func LoadPrompt(superegoDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(superegoDir, PromptFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultPrompt(), nil
		}
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return string(data), nil
}

// Init creates baseDir/.superego with the default prompt, an empty
// watermark, and a default config, and adds the directory to
// baseDir/.gitignore. It returns the state directory.
func Init(baseDir string, opts Options) (string, error) {
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	dir := filepath.Join(baseDir, session.StateDirName)

	if dirExists(dir) && !opts.Force {
		return "", ErrExists
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	if err := os.WriteFile(filepath.Join(dir, PromptFile), []byte(DefaultPrompt()), 0o644); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	if err := state.NewManager(dir).Save(state.Watermark{}); err != nil {
		return "", err
	}
	if _, _, err := config.WriteDefault(dir); err != nil {
		return "", err
	}
	if err := updateGitignore(baseDir); err != nil {
		return "", err
	}
	return dir, nil
}

func updateGitignore(baseDir string) error {
	path := filepath.Join(baseDir, ".gitignore")
	entry := session.StateDirName + "/"

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read .gitignore: %w", err)
	}
	content := string(data)
	if strings.Contains(content, entry) {
		return nil
	}
	if content != "" {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n"
	}
	content += gitignoreMarker + "\n" + entry + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
