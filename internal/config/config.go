package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the per-project config file inside the .superego directory.
const ProjectFile = "config.yaml"

// Config holds the settings the evaluation pipeline reads. The same keys are
// accepted from the user-level TOML file and the project-level YAML file.
type Config struct {
	EvalIntervalMinutes    int    `yaml:"eval_interval_minutes" toml:"eval_interval_minutes"`
	CarryoverDecisionCount int    `yaml:"carryover_decision_count" toml:"carryover_decision_count"`
	CarryoverWindowMinutes int    `yaml:"carryover_window_minutes" toml:"carryover_window_minutes"`
	Model                  string `yaml:"model,omitempty" toml:"model"`
	TimeoutMS              int    `yaml:"timeout_ms" toml:"timeout_ms"`
	LogFile                bool   `yaml:"log_file" toml:"log_file"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EvalIntervalMinutes:    5,
		CarryoverDecisionCount: 2,
		CarryoverWindowMinutes: 5,
		TimeoutMS:              300_000,
	}
}

// Load layers defaults, the user TOML file, and superegoDir/config.yaml in
// that order. A missing file is not an error. A malformed file is logged and
// skipped so the hook path never fails on config alone; the returned error is
// non-nil only to let interactive callers report it.
func Load(superegoDir string) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	for _, p := range userPaths() {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		var user Config
		md, err := toml.DecodeFile(p, &user)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("ignoring malformed user config")
			errs = append(errs, fmt.Errorf("parse config %s: %w", p, err))
			break
		}
		cfg = overlayTOML(cfg, user, md)
		break
	}

	if superegoDir != "" {
		p := filepath.Join(superegoDir, ProjectFile)
		data, err := os.ReadFile(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			errs = append(errs, fmt.Errorf("read config %s: %w", p, err))
		default:
			// Decoding onto the layered value keeps absent keys at their current value.
			next := cfg
			if err := yaml.Unmarshal(data, &next); err != nil {
				log.Warn().Err(err).Str("path", p).Msg("ignoring malformed project config")
				errs = append(errs, fmt.Errorf("parse config %s: %w", p, err))
			} else {
				cfg = next
			}
		}
	}

	return cfg.normalized(), errors.Join(errs...)
}

// overlayTOML copies only the keys that were present in the TOML file.
func overlayTOML(base, user Config, md toml.MetaData) Config {
	if md.IsDefined("eval_interval_minutes") {
		base.EvalIntervalMinutes = user.EvalIntervalMinutes
	}
	if md.IsDefined("carryover_decision_count") {
		base.CarryoverDecisionCount = user.CarryoverDecisionCount
	}
	if md.IsDefined("carryover_window_minutes") {
		base.CarryoverWindowMinutes = user.CarryoverWindowMinutes
	}
	if md.IsDefined("model") {
		base.Model = user.Model
	}
	if md.IsDefined("timeout_ms") {
		base.TimeoutMS = user.TimeoutMS
	}
	if md.IsDefined("log_file") {
		base.LogFile = user.LogFile
	}
	return base
}

// normalized replaces out-of-range values with defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.EvalIntervalMinutes < 0 {
		c.EvalIntervalMinutes = def.EvalIntervalMinutes
	}
	if c.CarryoverDecisionCount < 0 {
		c.CarryoverDecisionCount = 0
	}
	if c.CarryoverWindowMinutes < 0 {
		c.CarryoverWindowMinutes = 0
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = def.TimeoutMS
	}
	return c
}

// EvalInterval is the minimum spacing between periodic evaluations.
func (c Config) EvalInterval() time.Duration {
	return time.Duration(c.EvalIntervalMinutes) * time.Minute
}

// CarryoverWindow is how far before the cursor carryover messages reach.
func (c Config) CarryoverWindow() time.Duration {
	return time.Duration(c.CarryoverWindowMinutes) * time.Minute
}

// Timeout bounds a single reasoning-engine call.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// userDir returns the user-level superego config directory:
// $XDG_CONFIG_HOME/superego if set, otherwise ~/.config/superego.
// Empty when neither is known.
func userDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "superego")
	}
	return homeConfigDir()
}

func homeConfigDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "superego")
}

// userPaths lists candidate user config files; Load reads the first that
// exists. ~/.config is still tried when XDG_CONFIG_HOME points elsewhere.
func userPaths() []string {
	var paths []string
	for _, dir := range []string{userDir(), homeConfigDir()} {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, "config.toml")
		if len(paths) > 0 && paths[0] == p {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}
