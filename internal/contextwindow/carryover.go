package contextwindow

import (
	"strings"
	"time"

	"github.com/open-horizon-labs/superego/internal/decision"
	"github.com/open-horizon-labs/superego/internal/transcript"
)

// CarryoverOptions sizes the carryover block.
type CarryoverOptions struct {
	// DecisionCount is how many recent feedback decisions to repeat.
	DecisionCount int
	// Window is how far before the cursor to reach for prior messages.
	Window time.Duration
}

// Carryover renders recent feedback and the messages just before the
// cursor, so an isolated review still knows what came before. It returns ""
// when there is nothing to carry over.
func Carryover(journal []decision.Decision, entries []transcript.Entry, cursor time.Time, sessionID string, opts CarryoverOptions) string {
	var parts []string

	if recent := decision.Recent(journal, decision.FeedbackDelivered, opts.DecisionCount); len(recent) > 0 {
		parts = append(parts, "Recent superego decisions:")
		for _, d := range recent {
			parts = append(parts, "- ["+d.Timestamp.UTC().Format("15:04:05")+"]: "+d.ContextText("(no context)"))
		}
		parts = append(parts, "")
	}

	if !cursor.IsZero() {
		prior := SelectBetween(entries, cursor.Add(-opts.Window), cursor, sessionID)
		if len(prior) > 0 {
			parts = append(parts, "Recent activity (before current evaluation window):")
			parts = append(parts, Format(prior))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "--- PREVIOUS CONTEXT ---\n" + strings.Join(parts, "\n") + "\n--- END PREVIOUS CONTEXT ---\n\n"
}
