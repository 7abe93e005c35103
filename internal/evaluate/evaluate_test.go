package evaluate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-horizon-labs/superego/internal/config"
	"github.com/open-horizon-labs/superego/internal/decision"
	"github.com/open-horizon-labs/superego/internal/feedback"
	"github.com/open-horizon-labs/superego/internal/llm"
	"github.com/open-horizon-labs/superego/internal/state"
	"github.com/open-horizon-labs/superego/internal/verdict"
)

type call struct {
	system  string
	message string
}

type fakeEngine struct {
	reply string
	err   error
	calls []call

	// onInvoke runs inside Invoke, standing in for time spent by the engine.
	onInvoke func()
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Invoke(_ context.Context, systemPrompt, message string) (llm.Response, error) {
	f.calls = append(f.calls, call{system: systemPrompt, message: message})
	if f.onInvoke != nil {
		f.onInvoke()
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Result: f.reply, SessionID: "engine-session", CostUSD: 0.25}, nil
}

func at(hms string) time.Time {
	ts, err := time.Parse(time.RFC3339, "2026-02-22T"+hms+"Z")
	if err != nil {
		panic(err)
	}
	return ts
}

// twoMessages has A at 10:00:00 and B at 10:00:10.
const twoMessages = `{"type":"user","uuid":"a","sessionId":"s1","timestamp":"2026-02-22T10:00:00Z","message":{"role":"user","content":"message A"}}
{"type":"user","uuid":"b","sessionId":"s1","timestamp":"2026-02-22T10:00:10Z","message":{"role":"user","content":"message B"}}
`

func setup(t *testing.T, transcript string, engine *fakeEngine, now time.Time) (*Evaluator, string) {
	t.Helper()
	t.Setenv(llm.DisabledEnv, "")
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0o644))

	ev := New(root, config.DefaultConfig(), engine)
	ev.Now = func() time.Time { return now }
	return ev, path
}

// conversation returns the part of a review message between the
// conversation markers, so carryover text does not leak into assertions.
func conversation(t *testing.T, msg string) string {
	t.Helper()
	_, rest, ok := strings.Cut(msg, "--- CONVERSATION ---\n")
	require.True(t, ok, "message has no conversation block")
	body, _, ok := strings.Cut(rest, "\n--- END CONVERSATION ---")
	require.True(t, ok)
	return body
}

func cursor(t *testing.T, dir string) time.Time {
	t.Helper()
	wm, err := state.NewManager(dir).Load()
	require.NoError(t, err)
	c, ok := wm.Cursor()
	require.True(t, ok, "watermark not set")
	return c
}

func TestEvaluateLLM_Allow(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW\n\nLooks fine."}
	ev, path := setup(t, twoMessages, engine, at("10:00:05"))

	res, err := ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	assert.False(t, res.HasConcerns)
	assert.Equal(t, "Looks fine.", res.Feedback)
	assert.InDelta(t, 0.25, res.CostUSD, 1e-9)

	require.Len(t, engine.calls, 1)
	msg := engine.calls[0].message
	assert.True(t, strings.HasPrefix(msg, "Review the following Claude Code conversation and provide feedback.\n\n"))
	assert.Equal(t, "USER: message A\n\nUSER: message B\n\n", conversation(t, msg))
	assert.Contains(t, engine.calls[0].system, "DECISION:", "embedded prompt used")

	dir := filepath.Join(ev.Root, "sessions", "s1")
	assert.True(t, cursor(t, dir).Equal(at("10:00:05")), "watermark is the read time")
	assert.False(t, feedback.NewMailbox(dir).HasPending())
}

func TestEvaluateLLM_RaceBarrier(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, path := setup(t, twoMessages, engine, at("10:00:05"))
	// The engine takes 30s; the clock moves while it runs.
	engine.onInvoke = func() {
		ev.Now = func() time.Time { return at("10:00:35") }
	}

	_, err := ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	require.Len(t, engine.calls, 1)
	assert.Equal(t, "USER: message A\n\nUSER: message B\n\n", conversation(t, engine.calls[0].message))

	// The cursor is the read time, not the time the engine returned.
	dir := filepath.Join(ev.Root, "sessions", "s1")
	assert.True(t, cursor(t, dir).Equal(at("10:00:05")), "cursor %s", cursor(t, dir))

	// B is newer than the read time, so the next cycle reviews it again.
	engine.onInvoke = nil
	_, err = ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	require.Len(t, engine.calls, 2)
	assert.Equal(t, "USER: message B\n\n", conversation(t, engine.calls[1].message))
	assert.True(t, cursor(t, dir).Equal(at("10:00:35")))

	// Nothing newer than 10:00:35: no engine call, watermark untouched.
	ev.Now = func() time.Time { return at("10:05:00") }
	res, err := ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	assert.Equal(t, NoConcerns, res.Feedback)
	assert.Len(t, engine.calls, 2)
	assert.True(t, cursor(t, dir).Equal(at("10:00:35")))
}

func TestEvaluateLLM_BlockDeliversFeedback(t *testing.T) {
	engine := &fakeEngine{reply: "## DECISION: BLOCK\nCONFIDENCE: high\n\nYou skipped the tests."}
	ev, path := setup(t, twoMessages, engine, at("10:01:00"))

	res, err := ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	assert.True(t, res.HasConcerns)
	assert.Equal(t, verdict.High, res.Confidence)
	assert.Equal(t, "You skipped the tests.", res.Feedback)

	dir := filepath.Join(ev.Root, "sessions", "s1")
	msg, ok, err := feedback.NewMailbox(dir).Take()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CONFIDENCE: HIGH\n\nYou skipped the tests.", msg)

	decisions, err := decision.NewJournal(dir).ReadAll()
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	d := decisions[0]
	assert.Equal(t, decision.FeedbackDelivered, d.Type)
	assert.Equal(t, "s1", d.Session())
	assert.Equal(t, "You skipped the tests.", d.ContextText(""))
}

func TestEvaluateLLM_UnscopedUsesEngineSession(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: BLOCK\n\nStop."}
	ev, path := setup(t, twoMessages, engine, at("10:01:00"))

	_, err := ev.EvaluateLLM(context.Background(), path, "")
	require.NoError(t, err)

	decisions, err := decision.NewJournal(ev.Root).ReadAll()
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "engine-session", decisions[0].Session())
	assert.True(t, feedback.NewMailbox(ev.Root).HasPending())
}

func TestEvaluateLLM_EngineFailureKeepsWatermark(t *testing.T) {
	engine := &fakeEngine{err: &llm.TimeoutError{Engine: "fake", After: time.Minute}}
	ev, path := setup(t, twoMessages, engine, at("10:01:00"))

	_, err := ev.EvaluateLLM(context.Background(), path, "s1")
	var te *llm.TimeoutError
	require.ErrorAs(t, err, &te)

	wm, err := state.NewManager(filepath.Join(ev.Root, "sessions", "s1")).Load()
	require.NoError(t, err)
	_, ok := wm.Cursor()
	assert.False(t, ok, "failed cycle must not advance the watermark")
}

func TestEvaluateLLM_Carryover(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, path := setup(t, twoMessages, engine, at("10:00:05"))
	dir := filepath.Join(ev.Root, "sessions", "s1")

	_, err := decision.NewJournal(dir).Write(decision.NewFeedbackDelivered(at("09:59:00"), "s1", "earlier concern"))
	require.NoError(t, err)

	_, err = ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	first := engine.calls[0].message
	assert.Contains(t, first, "--- PREVIOUS CONTEXT ---\nRecent superego decisions:\n- [09:59:00]: earlier concern\n")
	assert.NotContains(t, first, "Recent activity", "no cursor yet")

	ev.Now = func() time.Time { return at("10:00:20") }
	_, err = ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	second := engine.calls[1].message
	assert.Contains(t, second, "Recent activity (before current evaluation window):\nUSER: message A\n\n")
}

func TestEvaluateLLM_PendingChange(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, path := setup(t, twoMessages, engine, at("10:01:00"))
	dir := filepath.Join(ev.Root, "sessions", "s1")
	require.NoError(t, WritePendingChange(dir, "Edit main.go"))

	_, err := ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(engine.calls[0].message,
		"--- END CONVERSATION ---\n--- PENDING CHANGE (evaluate this!) ---\nEdit main.go\n--- END PENDING CHANGE ---\n"))
	assert.Empty(t, ReadPendingChange(dir), "reviewed change is cleared")
}

func TestEvaluateLLM_ProjectPrompt(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, path := setup(t, twoMessages, engine, at("10:01:00"))
	require.NoError(t, os.WriteFile(filepath.Join(ev.Root, "prompt.md"), []byte("custom prompt"), 0o644))

	_, err := ev.EvaluateLLM(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "custom prompt", engine.calls[0].system)
}

func TestEvaluateLLM_Skips(t *testing.T) {
	t.Run("recursion guard", func(t *testing.T) {
		engine := &fakeEngine{reply: "DECISION: BLOCK"}
		ev, path := setup(t, twoMessages, engine, at("10:01:00"))
		t.Setenv(llm.DisabledEnv, "1")

		res, err := ev.EvaluateLLM(context.Background(), path, "s1")
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Empty(t, engine.calls)
	})

	t.Run("session disabled", func(t *testing.T) {
		engine := &fakeEngine{reply: "DECISION: BLOCK"}
		ev, path := setup(t, twoMessages, engine, at("10:01:00"))
		dir := filepath.Join(ev.Root, "sessions", "s1")
		require.NoError(t, state.NewManager(dir).Save(state.Watermark{Disabled: true}))

		res, err := ev.EvaluateLLM(context.Background(), path, "s1")
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Empty(t, engine.calls)
	})

	t.Run("other session only", func(t *testing.T) {
		engine := &fakeEngine{reply: "DECISION: BLOCK"}
		ev, path := setup(t, twoMessages, engine, at("10:01:00"))

		res, err := ev.EvaluateLLM(context.Background(), path, "s2")
		require.NoError(t, err)
		assert.False(t, res.HasConcerns)
		assert.Equal(t, NoConcerns, res.Feedback)
		assert.Empty(t, engine.calls)
	})
}

func TestEvaluateLLM_MissingTranscript(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, _ := setup(t, twoMessages, engine, at("10:01:00"))

	_, err := ev.EvaluateLLM(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), "s1")
	assert.Error(t, err)
	assert.Empty(t, engine.calls)
}

func TestEvaluateLLM_InvalidSession(t *testing.T) {
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, path := setup(t, twoMessages, engine, at("10:01:00"))

	_, err := ev.EvaluateLLM(context.Background(), path, "../escape")
	assert.Error(t, err)
}

func TestEvaluateLLM_CodexRollout(t *testing.T) {
	rollout := `{"timestamp":"2026-02-22T10:00:00Z","type":"session_meta","payload":{"originator":"codex_cli_rs"}}
{"timestamp":"2026-02-22T10:00:01Z","type":"event_msg","payload":{"type":"user_message","message":"refactor it"}}
`
	engine := &fakeEngine{reply: "DECISION: ALLOW"}
	ev, path := setup(t, rollout, engine, at("10:01:00"))

	_, err := ev.EvaluateLLM(context.Background(), path, "s1")
	require.NoError(t, err)
	require.Len(t, engine.calls, 1)
	assert.Equal(t, "USER: refactor it\n\n", conversation(t, engine.calls[0].message))
}

func TestBuildMessage(t *testing.T) {
	got := BuildMessage("CARRY\n\n", "WINDOW", "")
	assert.Equal(t, "Review the following Claude Code conversation and provide feedback.\n\n"+
		"CARRY\n\n--- CONVERSATION ---\nWINDOW\n--- END CONVERSATION ---", got)
}

func TestShouldEval(t *testing.T) {
	now := at("10:10:00")
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  bool
	}{
		{name: "never evaluated", setup: func(*testing.T, string) {}, want: true},
		{
			name: "interval elapsed",
			setup: func(t *testing.T, dir string) {
				w := state.Watermark{}
				w.MarkEvaluatedAt(at("10:05:00"))
				require.NoError(t, state.NewManager(dir).Save(w))
			},
			want: true,
		},
		{
			name: "too soon",
			setup: func(t *testing.T, dir string) {
				w := state.Watermark{}
				w.MarkEvaluatedAt(at("10:06:00"))
				require.NoError(t, state.NewManager(dir).Save(w))
			},
			want: false,
		},
		{
			name: "disabled",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, state.NewManager(dir).Save(state.Watermark{Disabled: true}))
			},
			want: false,
		},
		{
			name: "corrupt state",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(dir, 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, state.FileName), []byte("{oops"), 0o644))
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := New(t.TempDir(), config.DefaultConfig(), &fakeEngine{})
			ev.Now = func() time.Time { return now }
			tt.setup(t, filepath.Join(ev.Root, "sessions", "s1"))
			assert.Equal(t, tt.want, ev.ShouldEval("s1"))
		})
	}
}
