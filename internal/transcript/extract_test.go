package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, line string) Entry {
	t.Helper()
	e, err := Decode([]byte(line))
	require.NoError(t, err)
	return e
}

func TestPredicates(t *testing.T) {
	user := decode(t, `{"type":"user","uuid":"a","sessionId":"s1","timestamp":"2026-01-01T00:00:00Z","message":{"role":"user","content":"x"}}`)
	asst := decode(t, `{"type":"assistant","uuid":"b","sessionId":"s1","message":{"role":"assistant","content":[]}}`)
	sum := decode(t, `{"type":"summary","summary":"s"}`)
	snap := decode(t, `{"type":"file-history-snapshot"}`)
	unk := decode(t, `{"type":"queue-operation"}`)

	assert.True(t, IsMessage(user))
	assert.True(t, IsMessage(asst))
	assert.False(t, IsMessage(sum))
	assert.False(t, IsMessage(snap))
	assert.False(t, IsMessage(unk))

	assert.True(t, IsSummary(sum))
	assert.False(t, IsSummary(user))

	assert.Equal(t, "s1", SessionID(user))
	assert.Equal(t, "s1", SessionID(asst))
	assert.Empty(t, SessionID(sum))

	_, ok := Timestamp(user)
	assert.True(t, ok)
	_, ok = Timestamp(asst)
	assert.False(t, ok, "assistant without timestamp")
	_, ok = Timestamp(sum)
	assert.False(t, ok)
}

func TestAssistantExtraction(t *testing.T) {
	e := decode(t, `{"type":"assistant","uuid":"a","message":{"role":"assistant","content":[
		{"type":"thinking","thinking":"step one"},
		{"type":"text","text":"first"},
		{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"ls -la"}},
		{"type":"thinking","thinking":"step two"},
		{"type":"text","text":"second"},
		{"type":"tool_use","id":"t2","input":{}}
	]}}`)

	text, ok := AssistantText(e)
	assert.True(t, ok)
	assert.Equal(t, "first\nsecond", text)

	thinking, ok := AssistantThinking(e)
	assert.True(t, ok)
	assert.Equal(t, "step one\nstep two", thinking)

	uses := ToolUses(e)
	require.Len(t, uses, 1, "unnamed tool_use is dropped")
	assert.Equal(t, "Bash", uses[0].Name)
	assert.Equal(t, "ls -la", StringField(uses[0].Input, "command"))

	_, ok = UserText(e)
	assert.False(t, ok)
	assert.Empty(t, ToolResults(e))
}

func TestUserExtraction(t *testing.T) {
	e := decode(t, `{"type":"user","uuid":"a","message":{"role":"user","content":[
		{"type":"tool_result","tool_use_id":"t1","content":"plain output"},
		{"type":"tool_result","tool_use_id":"t2","content":[{"type":"text", "text":"structured"}]},
		{"type":"tool_result","tool_use_id":"t3"},
		{"type":"tool_result","tool_use_id":"t4","content":null},
		{"type":"text","text":"please continue"}
	]}}`)

	results := ToolResults(e)
	require.Len(t, results, 2)
	assert.Equal(t, ToolResult{ToolUseID: "t1", Content: "plain output"}, results[0])
	assert.Equal(t, ToolResult{ToolUseID: "t2", Content: `[{"type":"text","text":"structured"}]`}, results[1])

	text, ok := UserText(e)
	assert.True(t, ok)
	assert.Equal(t, "please continue", text)

	_, ok = AssistantThinking(e)
	assert.False(t, ok)
	assert.Empty(t, ToolUses(e))
}

func TestUserText_NoTextBlocks(t *testing.T) {
	e := decode(t, `{"type":"user","uuid":"a","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"x"}]}}`)
	_, ok := UserText(e)
	assert.False(t, ok)
}

func TestStringField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		want  string
	}{
		{"present", `{"file_path":"/a.go"}`, "file_path", "/a.go"},
		{"missing", `{"other":"x"}`, "file_path", ""},
		{"not string", `{"file_path":3}`, "file_path", ""},
		{"not object", `[1,2]`, "file_path", ""},
		{"empty", ``, "file_path", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StringField([]byte(tt.input), tt.key))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcde...[truncated]", Truncate("abcdefgh", 5))
	// "é" is two bytes; cutting at 2 would split it
	assert.Equal(t, "a...[truncated]", Truncate("aéz", 2))
}
