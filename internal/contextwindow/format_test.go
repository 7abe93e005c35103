package contextwindow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/open-horizon-labs/superego/internal/decision"
)

func TestFormat(t *testing.T) {
	entries := parse(t, `{"type":"summary","summary":"Earlier work on auth"}
{"type":"user","uuid":"u1","timestamp":"2026-02-22T10:00:00Z","message":{"role":"user","content":"<system-reminder>old</system-reminder>Fix the bug<system-reminder>new</system-reminder>"}}
{"type":"assistant","uuid":"a1","timestamp":"2026-02-22T10:00:01Z","message":{"role":"assistant","content":[{"type":"thinking","thinking":"look at main.go"},{"type":"tool_use","id":"t1","name":"Read","input":{"file_path":"/src/main.go"}},{"type":"tool_use","id":"t2","name":"Bash","input":{"command":"go test ./..."}},{"type":"tool_use","id":"t3","name":"Grep","input":{"pattern":"TODO"}},{"type":"tool_use","id":"t4","name":"Task","input":{"prompt":"x"}}]}}
{"type":"user","uuid":"u2","timestamp":"2026-02-22T10:00:02Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"package main"}]}}
{"type":"assistant","uuid":"a2","timestamp":"2026-02-22T10:00:03Z","message":{"role":"assistant","content":[{"type":"text","text":"Fixed."}]}}`)

	want := "SUMMARY: Earlier work on auth\n\n" +
		"USER: Fix the bug<system-reminder>new</system-reminder>\n\n" +
		"THINKING: look at main.go\n\n" +
		"TOOLS: Read(/src/main.go) Bash(go test ./...) Grep(TODO) Task\n" +
		"\n" +
		"TOOL_RESULT: package main\n\n" +
		"ASSISTANT: Fixed.\n\n"

	assert.Equal(t, want, Format(entries))
}

func TestFormat_TruncatesToolResults(t *testing.T) {
	long := strings.Repeat("y", MaxToolResult+100)
	entries := parse(t, `{"type":"user","uuid":"u","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t","content":"`+long+`"}]}}`)

	out := Format(entries)
	assert.Equal(t, "TOOL_RESULT: "+strings.Repeat("y", MaxToolResult)+"...[truncated]\n\n", out)
}

func TestFormat_SkipsEmptyUserText(t *testing.T) {
	entries := parse(t, `{"type":"user","uuid":"u","message":{"role":"user","content":"   "}}
{"type":"file-history-snapshot"}`)
	assert.Empty(t, Format(entries))
}

func TestFormat_ToolsWithText(t *testing.T) {
	entries := parse(t, `{"type":"assistant","uuid":"a","message":{"role":"assistant","content":[{"type":"text","text":"Editing now"},{"type":"tool_use","id":"t","name":"Edit","input":{"file_path":"/a.go","old_string":"x"}}]}}`)
	assert.Equal(t, "TOOLS: Edit(/a.go)\nASSISTANT: Editing now\n\n", Format(entries))
}

func TestCarryover(t *testing.T) {
	entries := parse(t, mixed)
	journal := []decision.Decision{
		decision.NewFeedbackDelivered(at("09:50:00"), "s1", "oldest"),
		decision.NewPrecompactSnapshot(at("09:51:00"), "s1", "/snap", "auto"),
		decision.NewFeedbackDelivered(at("09:52:00"), "s1", "middle"),
		decision.NewFeedbackDelivered(at("09:53:00"), "s1", "newest"),
	}
	opts := CarryoverOptions{DecisionCount: 2, Window: 5 * time.Second}

	got := Carryover(journal, entries, at("10:00:05"), "s1", opts)

	want := "--- PREVIOUS CONTEXT ---\n" +
		"Recent superego decisions:\n" +
		"- [09:52:00]: middle\n" +
		"- [09:53:00]: newest\n" +
		"\n" +
		"Recent activity (before current evaluation window):\n" +
		"USER: first\n\n" +
		"ASSISTANT: reply\n\n" +
		"\n--- END PREVIOUS CONTEXT ---\n\n"
	assert.Equal(t, want, got)
}

func TestCarryover_OmitsEmptySections(t *testing.T) {
	entries := parse(t, mixed)

	assert.Empty(t, Carryover(nil, entries, time.Time{}, "", CarryoverOptions{DecisionCount: 2, Window: time.Minute}),
		"no decisions and no cursor")

	got := Carryover(nil, entries, at("10:00:05"), "s1", CarryoverOptions{DecisionCount: 2, Window: 5 * time.Second})
	assert.NotContains(t, got, "Recent superego decisions")
	assert.Contains(t, got, "Recent activity")

	journal := []decision.Decision{decision.NewFeedbackDelivered(at("09:00:00"), "", "only")}
	got = Carryover(journal, entries, time.Time{}, "", CarryoverOptions{DecisionCount: 2, Window: time.Minute})
	assert.Contains(t, got, "- [09:00:00]: only")
	assert.NotContains(t, got, "Recent activity")

	assert.Empty(t, Carryover(journal, entries, at("08:00:00"), "", CarryoverOptions{DecisionCount: 0, Window: time.Minute}),
		"zero decision count and empty window")
}
