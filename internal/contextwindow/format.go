package contextwindow

import (
	"strings"

	"github.com/open-horizon-labs/superego/internal/transcript"
)

// MaxToolResult caps each rendered tool result, in bytes.
const MaxToolResult = 500

// Format renders entries in review order:
//
//	SUMMARY: <text>
//	TOOL_RESULT: <payload>        (user turns, before the user text)
//	USER: <text>                  (reminders deduplicated)
//	THINKING: <text>
//	TOOLS: Read(/path) Bash(cmd)
//	ASSISTANT: <text>
func Format(entries []transcript.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		switch v := e.(type) {
		case transcript.Summary:
			section(&b, "SUMMARY", v.Text)
		case transcript.User:
			formatUser(&b, v)
		case transcript.Assistant:
			formatAssistant(&b, v)
		}
	}
	return b.String()
}

func formatUser(b *strings.Builder, u transcript.User) {
	for _, r := range transcript.ToolResults(u) {
		section(b, "TOOL_RESULT", transcript.Truncate(r.Content, MaxToolResult))
	}
	if text, ok := transcript.UserText(u); ok {
		if cleaned := transcript.DedupeReminders(text); cleaned != "" {
			section(b, "USER", cleaned)
		}
	}
}

func formatAssistant(b *strings.Builder, a transcript.Assistant) {
	if thinking, ok := transcript.AssistantThinking(a); ok {
		section(b, "THINKING", thinking)
	}

	uses := transcript.ToolUses(a)
	if len(uses) > 0 {
		parts := make([]string, 0, len(uses))
		for _, u := range uses {
			parts = append(parts, toolLabel(u))
		}
		b.WriteString("TOOLS: ")
		b.WriteString(strings.Join(parts, " "))
		b.WriteString("\n")
	}

	if text, ok := transcript.AssistantText(a); ok {
		section(b, "ASSISTANT", text)
	} else if len(uses) > 0 {
		b.WriteString("\n")
	}
}

// toolLabel is the tool name plus its most telling argument.
func toolLabel(u transcript.ToolUse) string {
	var key string
	switch u.Name {
	case "Edit", "Write", "Read", "MultiEdit":
		key = "file_path"
	case "NotebookEdit":
		key = "notebook_path"
	case "Bash":
		key = "command"
	case "Glob", "Grep":
		key = "pattern"
	}
	if key == "" {
		return u.Name
	}
	arg := transcript.StringField(u.Input, key)
	if arg == "" {
		return u.Name
	}
	return u.Name + "(" + arg + ")"
}

func section(b *strings.Builder, label, text string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(text)
	b.WriteString("\n\n")
}
