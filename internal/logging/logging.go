// Package logging configures the process-wide zerolog logger used by sg.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv names the environment variable that overrides the log level.
const LevelEnv = "SUPEREGO_LOG_LEVEL"

// DefaultLevel keeps hook invocations quiet unless something is wrong.
const DefaultLevel = zerolog.WarnLevel

// Setup installs a console logger writing to w as the global logger.
// Level comes from $SUPEREGO_LOG_LEVEL, falling back to DefaultLevel.
func Setup(w io.Writer) zerolog.Logger {
	level := ParseLevel(os.Getenv(LevelEnv))
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Logger()

	log.Logger = logger
	return logger
}

// Tee additionally appends JSON log lines to the file at path.
// The returned closer must be closed by the caller.
func Tee(console io.Writer, path string) (zerolog.Logger, io.Closer, error) {
	f, err := openAppend(path)
	if err != nil {
		return log.Logger, nil, err
	}

	level := ParseLevel(os.Getenv(LevelEnv))
	multi := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: console, NoColor: true, TimeFormat: "15:04:05"},
		f,
	)
	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, f, nil
}

// FileLogger returns a logger that appends JSON lines to path at info level
// regardless of the console level. Used for per-path audit logs such as codex.log.
func FileLogger(path string) (zerolog.Logger, io.Closer, error) {
	f, err := openAppend(path)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return zerolog.New(f).Level(zerolog.InfoLevel).With().Timestamp().Logger(), f, nil
}

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// yield DefaultLevel.
func ParseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return DefaultLevel
	}
	return lvl
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
