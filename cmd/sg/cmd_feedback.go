package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/open-horizon-labs/superego/internal/decision"
	"github.com/open-horizon-labs/superego/internal/feedback"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/open-horizon-labs/superego/internal/transcript"
	"github.com/spf13/cobra"
)

var (
	feedbackSessionID string
	historyLimit      int
)

var shouldEvalCmd = &cobra.Command{
	Use:   "should-eval",
	Short: "Exit 0 and print yes when a periodic review is due",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if claudeEvaluator().ShouldEval(feedbackSessionID) {
			fmt.Fprintln(cmd.OutOrStdout(), "yes")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "no")
		return exitCode(1)
	},
}

var hasFeedbackCmd = &cobra.Command{
	Use:   "has-feedback",
	Short: "Exit 0 when feedback is pending, 1 otherwise",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := session.ValidateID(feedbackSessionID); err != nil {
			return err
		}
		if feedback.NewMailbox(session.Dir(stateDir, feedbackSessionID)).HasPending() {
			return nil
		}
		return exitCode(1)
	},
}

var getFeedbackCmd = &cobra.Command{
	Use:   "get-feedback",
	Short: "Print and clear pending feedback",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := session.ValidateID(feedbackSessionID); err != nil {
			return err
		}
		msg, ok, err := feedback.NewMailbox(session.Dir(stateDir, feedbackSessionID)).Take()
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintln(cmd.OutOrStdout(), msg)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent decisions across all sessions",
	RunE:  runHistory,
}

func init() {
	for _, c := range []*cobra.Command{shouldEvalCmd, hasFeedbackCmd, getFeedbackCmd} {
		c.Flags().StringVar(&feedbackSessionID, "session-id", "", "host session id")
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of decisions to show")

	rootCmd.AddCommand(shouldEvalCmd, hasFeedbackCmd, getFeedbackCmd, historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	all, err := decision.ReadAllSessions(stateDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(all) == 0 {
		fmt.Fprintln(out, "No decisions recorded.")
		return nil
	}

	shown := all
	if historyLimit > 0 && len(shown) > historyLimit {
		shown = shown[len(shown)-historyLimit:]
	}
	for _, d := range shown {
		fmt.Fprintln(out, formatDecision(d))
	}

	stats := decision.Summarize(all)
	fmt.Fprintf(out, "\n%d decisions across %d sessions, %s to %s\n",
		stats.Total, stats.Sessions,
		stats.First.Format(time.DateTime), stats.Last.Format(time.DateTime))
	return nil
}

func formatDecision(d decision.Decision) string {
	line := transcript.Truncate(firstLine(d.ContextText("")), 100)
	sid := d.Session()
	if sid == "" {
		sid = "-"
	}
	return fmt.Sprintf("%s  %-20s  %-12s  %s", d.Timestamp.Format(time.DateTime), d.Type, sid, line)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
