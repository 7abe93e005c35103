// Package evaluate runs one review cycle: read the new part of a
// transcript, ask an engine about it, and record the verdict.
package evaluate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/open-horizon-labs/superego/internal/config"
	"github.com/open-horizon-labs/superego/internal/contextwindow"
	"github.com/open-horizon-labs/superego/internal/decision"
	"github.com/open-horizon-labs/superego/internal/feedback"
	"github.com/open-horizon-labs/superego/internal/llm"
	"github.com/open-horizon-labs/superego/internal/scaffold"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/open-horizon-labs/superego/internal/state"
	"github.com/open-horizon-labs/superego/internal/transcript"
	"github.com/open-horizon-labs/superego/internal/transcript/codex"
	"github.com/open-horizon-labs/superego/internal/verdict"
	"github.com/rs/zerolog/log"
)

// NoConcerns is the feedback reported when nothing was sent for review.
const NoConcerns = "No concerns."

const messageHeader = "Review the following Claude Code conversation and provide feedback.\n\n"

// Engine is an external reviewer.
type Engine interface {
	Name() string
	Invoke(ctx context.Context, systemPrompt, message string) (llm.Response, error)
}

// Result is the outcome of one cycle.
type Result struct {
	HasConcerns bool
	Feedback    string
	Confidence  verdict.Confidence
	CostUSD     float64
	// Skipped is set when the cycle did not run; Reason says why.
	Skipped bool
	Reason  string
}

// Evaluator holds what a cycle needs besides the transcript.
type Evaluator struct {
	Root   string // project state directory, normally .superego
	Config config.Config
	Engine Engine
	Now    func() time.Time
}

// New returns an Evaluator with the wall clock.
func New(root string, cfg config.Config, engine Engine) *Evaluator {
	return &Evaluator{Root: root, Config: cfg, Engine: engine, Now: time.Now}
}

func (e *Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// Disabled reports whether the recursion guard is set in the environment.
func Disabled() bool {
	return os.Getenv(llm.DisabledEnv) == "1"
}

// EvaluateLLM reviews everything in transcriptPath newer than the session's
// watermark. The watermark only moves after the engine replied and the reply
// was parsed, and then only to the instant the transcript was read.
func (e *Evaluator) EvaluateLLM(ctx context.Context, transcriptPath, sessionID string) (Result, error) {
	if Disabled() {
		return Result{Feedback: NoConcerns, Skipped: true, Reason: "disabled by " + llm.DisabledEnv}, nil
	}

	dir := e.Root
	if sessionID != "" {
		var err error
		if dir, err = session.Ensure(e.Root, sessionID); err != nil {
			return Result{}, err
		}
	}

	mgr := state.NewManager(dir)
	wm, err := mgr.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", mgr.Path()).Msg("unreadable state, reviewing from the start")
		wm = state.Watermark{}
	}
	if wm.Disabled {
		return Result{Feedback: NoConcerns, Skipped: true, Reason: "session disabled"}, nil
	}
	cursor, _ := wm.Cursor()

	readAt := e.now()

	var window string
	var entries []transcript.Entry
	if codex.IsCodexFormat(transcriptPath) {
		rollout, err := codex.ReadFile(transcriptPath)
		if err != nil {
			return Result{}, err
		}
		if len(rollout) == 0 {
			return Result{Feedback: NoConcerns}, nil
		}
		window = codex.Format(rollout)
	} else {
		entries, err = transcript.ReadFile(transcriptPath)
		if err != nil {
			return Result{}, err
		}
		fresh := contextwindow.SelectNew(entries, cursor, sessionID)
		if len(fresh) == 0 {
			return Result{Feedback: NoConcerns}, nil
		}
		window = contextwindow.Format(fresh)
	}

	journal := decision.NewJournal(dir)
	history, err := journal.ReadAll()
	if err != nil {
		log.Warn().Err(err).Str("dir", journal.Dir()).Msg("carryover without decision history")
	}
	carryover := contextwindow.Carryover(history, entries, cursor, sessionID, contextwindow.CarryoverOptions{
		DecisionCount: e.Config.CarryoverDecisionCount,
		Window:        e.Config.CarryoverWindow(),
	})

	systemPrompt, err := scaffold.LoadPrompt(e.Root)
	if err != nil {
		return Result{}, err
	}
	pending := ReadPendingChange(dir)

	resp, err := e.Engine.Invoke(ctx, systemPrompt, BuildMessage(carryover, window, pending))
	if err != nil {
		return Result{}, fmt.Errorf("%s evaluation: %w", e.Engine.Name(), err)
	}

	v := verdict.Parse(resp.Result)

	if _, err := mgr.Update(func(w *state.Watermark) { w.MarkEvaluatedAt(readAt) }); err != nil {
		log.Warn().Err(err).Str("path", mgr.Path()).Msg("failed to update state")
	}
	if pending != "" {
		ClearPendingChange(dir)
	}

	if v.Blocks {
		e.deliver(dir, sessionID, resp.SessionID, v)
	}

	return Result{
		HasConcerns: v.Blocks,
		Feedback:    v.Feedback,
		Confidence:  v.Confidence,
		CostUSD:     resp.CostUSD,
	}, nil
}

// deliver writes the mailbox, then the journal. Neither failure undoes the
// other.
func (e *Evaluator) deliver(dir, hostSession, engineSession string, v verdict.Result) {
	msg := v.Feedback
	if v.Confidence != "" {
		msg = "CONFIDENCE: " + string(v.Confidence) + "\n\n" + v.Feedback
	}

	mailbox := feedback.NewMailbox(dir)
	if err := mailbox.Write(msg); err != nil {
		log.Error().Err(err).Str("path", mailbox.Path()).Str("feedback", msg).Msg("failed to write feedback")
	}

	sid := hostSession
	if sid == "" {
		sid = engineSession
	}
	if _, err := decision.NewJournal(dir).Write(decision.NewFeedbackDelivered(e.now(), sid, v.Feedback)); err != nil {
		log.Warn().Err(err).Msg("failed to write decision journal")
	}
}

// BuildMessage assembles the review request.
func BuildMessage(carryover, window, pendingChange string) string {
	msg := messageHeader + carryover + "--- CONVERSATION ---\n" + window + "\n--- END CONVERSATION ---"
	if pendingChange != "" {
		msg += "\n--- PENDING CHANGE (evaluate this!) ---\n" + pendingChange + "\n--- END PENDING CHANGE ---\n"
	}
	return msg
}
