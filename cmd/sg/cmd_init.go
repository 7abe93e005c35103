package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/open-horizon-labs/superego/internal/archive"
	"github.com/open-horizon-labs/superego/internal/config"
	"github.com/open-horizon-labs/superego/internal/scaffold"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/spf13/cobra"
)

var (
	initForce bool

	configInit bool

	snapTranscriptPath string
	snapSessionID      string
	snapTrigger        string
	snapList           bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .superego/ in the current project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		project, err := localProjectDir()
		if err != nil {
			return err
		}
		dir, err := scaffold.Init(project, scaffold.Options{Force: initForce})
		if errors.Is(err, scaffold.ErrExists) {
			return fmt.Errorf("%w (use --force to rewrite the prompt and state)", err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized superego in %s\n", dir)
		fmt.Fprintln(cmd.OutOrStdout(), "Next: sg hook install")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configInit {
			path, status, err := config.WriteDefault(stateDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, path)
			return nil
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Archive a transcript before compaction",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireInitialized(); err != nil {
			return err
		}
		if snapList {
			if err := session.ValidateID(snapSessionID); err != nil {
				return err
			}
			paths, err := archive.List(filepath.Join(session.Dir(stateDir, snapSessionID), session.SnapshotsDir))
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		}
		if snapTranscriptPath == "" {
			return errors.New("--transcript-path is required")
		}
		path, err := claudeEvaluator().Snapshot(snapTranscriptPath, snapSessionID, snapTrigger)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "rewrite prompt.md and state.json in an existing directory")
	configCmd.Flags().BoolVar(&configInit, "init", false, "write a default config.yaml if none exists")

	snapshotCmd.Flags().StringVar(&snapTranscriptPath, "transcript-path", "", "path to the session transcript (JSONL)")
	snapshotCmd.Flags().StringVar(&snapSessionID, "session-id", "", "host session id")
	snapshotCmd.Flags().StringVar(&snapTrigger, "trigger", "manual", "what caused the snapshot")
	snapshotCmd.Flags().BoolVar(&snapList, "list", false, "list existing snapshots instead")

	rootCmd.AddCommand(initCmd, configCmd, snapshotCmd)
}
