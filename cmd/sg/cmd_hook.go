package main

import (
	"fmt"

	"github.com/open-horizon-labs/superego/internal/check"
	"github.com/open-horizon-labs/superego/internal/hook"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var hookEvent string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Hook mode (reads hook JSON from stdin)",
	Long: `Hook mode for Claude Code. Register with:

  {"type": "command", "command": "sg hook"}

or run "sg hook install" in the project.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !dirExists(stateDir) {
			log.Debug().Str("dir", stateDir).Msg("project not initialized, hook ignored")
			return nil
		}
		h := &hook.Handler{Evaluator: claudeEvaluator()}
		return h.Handle(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), hookEvent)
	},
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register sg hooks in .claude/settings.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := localProjectDir()
		if err != nil {
			return err
		}
		return hook.Install(dir, hook.Options{EvalTimeout: cfg.Timeout()}, cmd.OutOrStdout())
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove sg hooks from .claude/settings.json",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := localProjectDir()
		if err != nil {
			return err
		}
		return hook.Uninstall(dir, cmd.OutOrStdout())
	},
}

func init() {
	hookCmd.Flags().StringVar(&hookEvent, "event", "", "override hook_event_name")
	hookCmd.AddCommand(hookInstallCmd, hookUninstallCmd)
	rootCmd.AddCommand(hookCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Diagnose the project setup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		report := check.Run(stateDir, hook.SettingsPath(projectDir()))
		fmt.Fprint(cmd.OutOrStdout(), report.Format())
		if report.HasFailures() {
			return exitCode(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
