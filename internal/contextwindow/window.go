// Package contextwindow chooses which transcript entries a review sees and
// renders them as plain text for the reasoning engine.
package contextwindow

import (
	"time"

	"github.com/open-horizon-labs/superego/internal/transcript"
)

// SelectNew returns the messages and summaries not yet reviewed, in
// transcript order. With a zero cursor every entry qualifies. Otherwise an
// entry qualifies when its timestamp is strictly after cursor or when it has
// no timestamp at all. A non-empty sessionID drops messages from other
// sessions; summaries carry no session and always pass.
func SelectNew(entries []transcript.Entry, cursor time.Time, sessionID string) []transcript.Entry {
	var out []transcript.Entry
	for _, e := range entries {
		if !reviewable(e) || !inSession(e, sessionID) {
			continue
		}
		if !cursor.IsZero() {
			if ts, ok := transcript.Timestamp(e); ok && !ts.After(cursor) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// SelectBetween returns messages whose timestamp lies in [from, to].
// Entries without a timestamp cannot be placed and are left out.
func SelectBetween(entries []transcript.Entry, from, to time.Time, sessionID string) []transcript.Entry {
	var out []transcript.Entry
	for _, e := range entries {
		if !transcript.IsMessage(e) || !inSession(e, sessionID) {
			continue
		}
		ts, ok := transcript.Timestamp(e)
		if !ok || ts.Before(from) || ts.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func reviewable(e transcript.Entry) bool {
	return transcript.IsMessage(e) || transcript.IsSummary(e)
}

func inSession(e transcript.Entry, sessionID string) bool {
	if sessionID == "" || transcript.IsSummary(e) {
		return true
	}
	return transcript.SessionID(e) == sessionID
}
