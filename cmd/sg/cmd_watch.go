package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-horizon-labs/superego/internal/evaluate"
	"github.com/open-horizon-labs/superego/internal/watcher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	watchTranscriptPath string
	watchSessionID      string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a transcript and review it whenever a review is due",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchTranscriptPath, "transcript-path", "", "path to the session transcript (JSONL)")
	watchCmd.Flags().StringVar(&watchSessionID, "session-id", "", "host session id")
	watchCmd.MarkFlagRequired("transcript-path")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ev := claudeEvaluator()
	stderr := cmd.ErrOrStderr()

	w, err := watcher.New(watchTranscriptPath, watcher.DefaultDebounce, func() {
		reviewIfDue(ctx, ev, func(feedback string) {
			fmt.Fprintf(stderr, "\n--- superego ---\n%s\n", feedback)
		})
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	log.Info().Str("transcript", watchTranscriptPath).Msg("watching")

	<-ctx.Done()
	return w.Stop()
}

// reviewIfDue runs one cycle when the session's interval has elapsed and
// reports blocking feedback through onConcern.
func reviewIfDue(ctx context.Context, ev *evaluate.Evaluator, onConcern func(string)) {
	if ctx.Err() != nil || !ev.ShouldEval(watchSessionID) {
		return
	}
	res, err := ev.EvaluateLLM(ctx, watchTranscriptPath, watchSessionID)
	if err != nil {
		log.Warn().Err(err).Msg("evaluation failed")
		return
	}
	if res.HasConcerns {
		onConcern(res.Feedback)
	}
}
