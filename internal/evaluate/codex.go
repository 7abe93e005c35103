package evaluate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/open-horizon-labs/superego/internal/llm"
	"github.com/open-horizon-labs/superego/internal/lock"
	"github.com/open-horizon-labs/superego/internal/logging"
	"github.com/open-horizon-labs/superego/internal/scaffold"
	"github.com/open-horizon-labs/superego/internal/transcript/codex"
	"github.com/open-horizon-labs/superego/internal/verdict"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// CodexLockFile serializes codex reviews within one project.
	CodexLockFile = "codex.lock"
	// CodexLogFile receives one line per codex review step.
	CodexLogFile = "codex.log"
)

// Skip reasons reported by EvaluateCodex.
const (
	ReasonAlreadyRunning = "already_running"
	ReasonRateLimited    = "rate_limited"
)

// ErrNoCodexSession is returned when no user-initiated rollout exists.
var ErrNoCodexSession = errors.New("no Codex sessions found")

const codexMessageHeader = "Review the following Codex conversation and provide feedback.\n\n"

// EvaluateCodex reviews the most recent user-initiated Codex rollout under
// sessionsDir. Only one runs at a time per project; a concurrent call is
// skipped, as is a rate-limited one. The result is reported to the caller
// and not written to the mailbox.
func (e *Evaluator) EvaluateCodex(ctx context.Context, sessionsDir string) (Result, error) {
	clog, closer, err := logging.FileLogger(filepath.Join(e.Root, CodexLogFile))
	if err != nil {
		log.Warn().Err(err).Msg("codex log unavailable")
	} else {
		defer closer.Close()
	}
	clog.Info().Msg("evaluate-codex started")

	lk, err := lock.Acquire(filepath.Join(e.Root, CodexLockFile), lock.DefaultStaleAfter)
	if errors.Is(err, lock.ErrHeld) {
		clog.Info().Msg("skip: another evaluation in progress")
		return Result{Skipped: true, Reason: ReasonAlreadyRunning}, nil
	}
	if err != nil {
		clog.Warn().Err(err).Msg("could not create lock file")
	} else {
		defer func() {
			if err := lk.Release(); err != nil {
				log.Warn().Err(err).Msg("failed to release codex lock")
			}
		}()
	}

	path, ok := codex.FindLatestSession(sessionsDir)
	if !ok {
		clog.Error().Str("dir", sessionsDir).Msg("no codex sessions found")
		return Result{}, fmt.Errorf("%w in %s", ErrNoCodexSession, sessionsDir)
	}
	clog.Info().Str("session", filepath.Base(path)).Msg("reviewing rollout")

	entries, err := codex.ReadFile(path)
	if err != nil {
		clog.Error().Err(err).Msg("reading transcript failed")
		return Result{}, err
	}
	if len(entries) == 0 {
		clog.Info().Msg("no entries in transcript")
		return Result{Feedback: NoConcerns}, nil
	}

	window := codex.Format(entries)
	clog.Info().Int("entries", len(entries)).Int("context_kb", len(window)/1024).Msg("context built")

	systemPrompt, err := scaffold.LoadPrompt(e.Root)
	if err != nil {
		return Result{}, err
	}
	message := codexMessageHeader + "--- CONVERSATION ---\n" + window + "\n--- END CONVERSATION ---"

	start := time.Now()
	resp, err := e.Engine.Invoke(ctx, systemPrompt, message)
	if err != nil {
		var rl *llm.RateLimitError
		if errors.As(err, &rl) {
			clog.Info().Dur("resets_in", rl.ResetsIn).Msg("skip: rate limited")
			return Result{Skipped: true, Reason: ReasonRateLimited}, nil
		}
		clog.Error().Err(err).Msg("evaluation failed")
		return Result{}, fmt.Errorf("%s evaluation: %w", e.Engine.Name(), err)
	}

	v := verdict.Parse(resp.Result)
	logVerdict(clog, v, time.Since(start))

	return Result{
		HasConcerns: v.Blocks,
		Feedback:    v.Feedback,
		Confidence:  v.Confidence,
		CostUSD:     resp.CostUSD,
	}, nil
}

func logVerdict(l zerolog.Logger, v verdict.Result, took time.Duration) {
	ev := l.Info().Dur("took", took)
	if v.Blocks {
		ev.Msg("BLOCK: concerns found")
		return
	}
	ev.Msg("ALLOW: no concerns")
}
