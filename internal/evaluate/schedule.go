package evaluate

import (
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/open-horizon-labs/superego/internal/state"
	"github.com/rs/zerolog/log"
)

// ShouldEval reports whether a periodic review of the session is due: it
// never ran, or eval_interval_minutes have passed since the watermark.
// Unreadable state counts as due; a disabled session is never due.
func (e *Evaluator) ShouldEval(sessionID string) bool {
	if err := session.ValidateID(sessionID); err != nil {
		return false
	}
	mgr := state.NewManager(session.Dir(e.Root, sessionID))
	wm, err := mgr.Load()
	if err != nil {
		log.Debug().Err(err).Msg("state unreadable, evaluation due")
		return true
	}
	if wm.Disabled {
		return false
	}
	last, ok := wm.Cursor()
	if !ok {
		return true
	}
	return e.now().Sub(last) >= e.Config.EvalInterval()
}
