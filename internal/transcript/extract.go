package transcript

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// ToolUse is a tool invocation from an assistant turn.
type ToolUse struct {
	Name  string
	Input json.RawMessage
}

// ToolResult is a tool output returned to the model in a user turn.
type ToolResult struct {
	ToolUseID string
	Content   string
}

// IsMessage reports whether e is a user or assistant turn.
func IsMessage(e Entry) bool {
	switch e.(type) {
	case User, Assistant:
		return true
	}
	return false
}

// IsSummary reports whether e is a compaction summary.
func IsSummary(e Entry) bool {
	_, ok := e.(Summary)
	return ok
}

// SessionID returns the host session id of a message, or "".
func SessionID(e Entry) string {
	switch v := e.(type) {
	case User:
		return v.SessionID
	case Assistant:
		return v.SessionID
	}
	return ""
}

// Timestamp returns the entry's timestamp. ok is false for entries that carry
// none, including summaries.
func Timestamp(e Entry) (ts time.Time, ok bool) {
	switch v := e.(type) {
	case User:
		ts = v.Timestamp
	case Assistant:
		ts = v.Timestamp
	default:
		return time.Time{}, false
	}
	return ts, !ts.IsZero()
}

// UserText joins the text blocks of a user turn.
func UserText(e Entry) (string, bool) {
	u, ok := e.(User)
	if !ok {
		return "", false
	}
	return joinBlocks(u.Content, "text", func(b Block) string { return b.Text })
}

// AssistantText joins the text blocks of an assistant turn, excluding thinking.
func AssistantText(e Entry) (string, bool) {
	a, ok := e.(Assistant)
	if !ok {
		return "", false
	}
	return joinBlocks(a.Content, "text", func(b Block) string { return b.Text })
}

// AssistantThinking joins the thinking blocks of an assistant turn.
func AssistantThinking(e Entry) (string, bool) {
	a, ok := e.(Assistant)
	if !ok {
		return "", false
	}
	return joinBlocks(a.Content, "thinking", func(b Block) string { return b.Thinking })
}

// ToolUses lists the named tool_use blocks of an assistant turn.
func ToolUses(e Entry) []ToolUse {
	a, ok := e.(Assistant)
	if !ok {
		return nil
	}
	var uses []ToolUse
	for _, b := range a.Content {
		if b.Type == "tool_use" && b.Name != "" {
			uses = append(uses, ToolUse{Name: b.Name, Input: b.Input})
		}
	}
	return uses
}

// ToolResults lists the tool_result blocks of a user turn. String payloads
// are returned as-is, structured payloads as compact JSON. Blocks without a
// payload are skipped.
func ToolResults(e Entry) []ToolResult {
	u, ok := e.(User)
	if !ok {
		return nil
	}
	var results []ToolResult
	for _, b := range u.Content {
		if b.Type != "tool_result" {
			continue
		}
		content, ok := renderPayload(b.Content)
		if !ok {
			continue
		}
		results = append(results, ToolResult{ToolUseID: b.ToolUseID, Content: content})
	}
	return results
}

// StringField returns input[key] when input is an object and the value is a string.
func StringField(input json.RawMessage, key string) string {
	if len(input) == 0 {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(input, &m); err != nil {
		return ""
	}
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Truncate cuts s to at most max bytes on a rune boundary and appends
// "...[truncated]" when anything was removed.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...[truncated]"
}

func renderPayload(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw), true
	}
	return buf.String(), true
}

func joinBlocks(blocks []Block, typ string, field func(Block) string) (string, bool) {
	var parts []string
	for _, b := range blocks {
		if b.Type == typ {
			parts = append(parts, field(b))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
