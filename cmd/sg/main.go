package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/open-horizon-labs/superego/internal/config"
	"github.com/open-horizon-labs/superego/internal/evaluate"
	"github.com/open-horizon-labs/superego/internal/llm"
	"github.com/open-horizon-labs/superego/internal/logging"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// logFileName is the JSON log inside the state directory when log_file is set.
const logFileName = "sg.log"

var (
	stateDir  string
	cfg       config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "sg",
	Short: "superego - periodic review of AI coding sessions",
	Long: `sg reviews Claude Code and Codex sessions with a second model and
hands blocking feedback back to the agent through hooks.

State lives in .superego/ (found by walking up from the working directory).`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "dir", "", "state directory (default: nearest .superego)")
}

// exitCode ends the process with a status but no message.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "sg: %v\n", err)
	os.Exit(1)
}

func setup(cmd *cobra.Command, _ []string) error {
	logging.Setup(os.Stderr)

	if stateDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		stateDir = resolveStateDir(cwd)
	}

	loaded, err := config.Load(stateDir)
	if err != nil {
		log.Debug().Err(err).Msg("config partially loaded")
	}
	cfg = loaded

	if cfg.LogFile && dirExists(stateDir) {
		_, closer, err := logging.Tee(os.Stderr, filepath.Join(stateDir, logFileName))
		if err != nil {
			log.Warn().Err(err).Msg("file logging disabled")
		} else {
			logCloser = closer
		}
	}
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

// resolveStateDir returns the nearest .superego above cwd, or cwd/.superego
// when none exists yet.
func resolveStateDir(cwd string) string {
	if dir, ok := session.FindRoot(cwd); ok {
		return dir
	}
	return filepath.Join(cwd, session.StateDirName)
}

// projectDir is the directory holding the state directory.
func projectDir() string {
	return filepath.Dir(stateDir)
}

// localProjectDir is the project that init and hook install act on: the
// parent of an explicit --dir, otherwise the working directory. Unlike
// stateDir it never walks up to an ancestor's .superego.
func localProjectDir() (string, error) {
	if rootCmd.PersistentFlags().Changed("dir") {
		return projectDir(), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func claudeEvaluator() *evaluate.Evaluator {
	return evaluate.New(stateDir, cfg, llm.NewClaude(cfg.Model, cfg.Timeout()))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func requireInitialized() error {
	if !dirExists(stateDir) {
		return fmt.Errorf("%s not found; run `sg init` first", stateDir)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sg v%s (superego)\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
