package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/open-horizon-labs/superego/internal/evaluate"
	"github.com/open-horizon-labs/superego/internal/llm"
	"github.com/open-horizon-labs/superego/internal/transcript/codex"
	"github.com/spf13/cobra"
)

var (
	evalTranscriptPath string
	evalSessionID      string
	codexSessionsDir   string
)

var evaluateLLMCmd = &cobra.Command{
	Use:   "evaluate-llm",
	Short: "Review new transcript messages since the last evaluation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEvaluate(cmd, evalSessionID)
	},
}

var evaluateCmd = &cobra.Command{
	Use:    "evaluate",
	Short:  "Review a transcript using unscoped state (legacy)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runEvaluate(cmd, "")
	},
}

var evaluateCodexCmd = &cobra.Command{
	Use:   "evaluate-codex",
	Short: "Review the latest user-initiated Codex session",
	RunE:  runEvaluateCodex,
}

func init() {
	for _, c := range []*cobra.Command{evaluateLLMCmd, evaluateCmd} {
		c.Flags().StringVar(&evalTranscriptPath, "transcript-path", "", "path to the session transcript (JSONL)")
		c.MarkFlagRequired("transcript-path")
	}
	evaluateLLMCmd.Flags().StringVar(&evalSessionID, "session-id", "", "host session id")
	evaluateCodexCmd.Flags().StringVar(&codexSessionsDir, "sessions-dir", "", "Codex sessions directory (default ~/.codex/sessions)")

	rootCmd.AddCommand(evaluateLLMCmd, evaluateCmd, evaluateCodexCmd)
}

type evaluateOutput struct {
	HasConcerns bool    `json:"has_concerns"`
	CostUSD     float64 `json:"cost_usd"`
	Skipped     bool    `json:"skipped,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

func runEvaluate(cmd *cobra.Command, sessionID string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	res, err := claudeEvaluator().EvaluateLLM(cmd.Context(), evalTranscriptPath, sessionID)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func runEvaluateCodex(cmd *cobra.Command, _ []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	dir := codexSessionsDir
	if dir == "" {
		d, err := codex.DefaultSessionsDir()
		if err != nil {
			return err
		}
		dir = d
	}

	ev := evaluate.New(stateDir, cfg, llm.NewCodex(cfg.Timeout()))
	res, err := ev.EvaluateCodex(cmd.Context(), dir)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

// printResult writes the JSON summary to stdout and any feedback to stderr.
func printResult(cmd *cobra.Command, res evaluate.Result) error {
	data, err := json.Marshal(evaluateOutput{
		HasConcerns: res.HasConcerns,
		CostUSD:     res.CostUSD,
		Skipped:     res.Skipped,
		Reason:      res.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	if res.HasConcerns {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Feedback)
	}
	return nil
}
