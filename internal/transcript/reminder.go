package transcript

import (
	"regexp"
	"strings"
)

// ReminderOpen and ReminderClose delimit workflow instructions the host
// injects into user text.
const (
	ReminderOpen  = "<system-reminder>"
	ReminderClose = "</system-reminder>"
)

var reminderRe = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ReminderOpen) + `.*?` + regexp.QuoteMeta(ReminderClose))

// DedupeReminders keeps only the last reminder block in text. Prose around
// the removed blocks is preserved. The result is trimmed.
func DedupeReminders(text string) string {
	locs := reminderRe.FindAllStringIndex(text, -1)
	if len(locs) <= 1 {
		return strings.TrimSpace(text)
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs[:len(locs)-1] {
		b.WriteString(text[prev:loc[0]])
		prev = loc[1]
	}
	b.WriteString(text[prev:])
	return strings.TrimSpace(b.String())
}
