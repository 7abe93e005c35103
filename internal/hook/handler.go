// Package hook handles Claude Code hook invocations of `sg hook`.
package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/open-horizon-labs/superego/internal/evaluate"
	"github.com/open-horizon-labs/superego/internal/feedback"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/open-horizon-labs/superego/internal/transcript"
	"github.com/rs/zerolog/log"
)

// StdinTimeout bounds how long Handle waits for hook input.
const StdinTimeout = 2 * time.Second

// maxPendingField caps each field copied into a pending change.
const maxPendingField = 4000

// Input is the JSON object Claude Code sends to hooks via stdin.
type Input struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	HookEventName  string          `json:"hook_event_name"`
	CWD            string          `json:"cwd,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	StopHookActive bool            `json:"stop_hook_active,omitempty"`
	Trigger        string          `json:"trigger,omitempty"`
}

// Output is the JSON reply a hook prints on stdout. A nil Output prints
// nothing.
type Output struct {
	Decision           string          `json:"decision,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	HookSpecificOutput *SpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// SpecificOutput carries event-specific fields.
type SpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Handler dispatches hook events to the evaluation pipeline.
type Handler struct {
	Evaluator *evaluate.Evaluator
}

// Handle reads hook input from stdin and writes any reply to stdout.
// event, when set, overrides hook_event_name.
func (h *Handler) Handle(ctx context.Context, stdin io.Reader, stdout io.Writer, event string) error {
	if evaluate.Disabled() {
		return nil
	}

	input, err := readInput(stdin, StdinTimeout)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	out, err := h.handleInput(ctx, input, event)
	if err != nil || out == nil {
		return err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal hook output: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func readInput(r io.Reader, timeout time.Duration) (*Input, error) {
	done := make(chan []byte, 1)
	errCh := make(chan error, 1)

	go func() {
		data, err := io.ReadAll(r)
		if err != nil {
			errCh <- err
			return
		}
		done <- data
	}()

	var data []byte
	select {
	case data = <-done:
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, errors.New("stdin read timeout")
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("empty stdin")
	}

	var input Input
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse stdin JSON: %w", err)
	}
	return &input, nil
}

func (h *Handler) handleInput(ctx context.Context, input *Input, event string) (*Output, error) {
	if event != "" {
		input.HookEventName = event
	}
	if err := session.ValidateID(input.SessionID); err != nil {
		return nil, err
	}

	switch input.HookEventName {
	case "Stop":
		if input.StopHookActive {
			return nil, nil
		}
		msg := h.review(ctx, input)
		if msg == "" {
			return nil, nil
		}
		return &Output{Decision: "block", Reason: feedbackReason(msg)}, nil

	case "UserPromptSubmit":
		msg := h.review(ctx, input)
		if msg == "" {
			return nil, nil
		}
		return &Output{HookSpecificOutput: &SpecificOutput{
			HookEventName:     "UserPromptSubmit",
			AdditionalContext: feedbackReason(msg),
		}}, nil

	case "PreToolUse":
		return nil, h.recordPendingChange(input)

	case "PreCompact":
		if input.TranscriptPath == "" {
			return nil, nil
		}
		trigger := input.Trigger
		if trigger == "" {
			trigger = "PreCompact"
		}
		path, err := h.Evaluator.Snapshot(input.TranscriptPath, input.SessionID, trigger)
		if err != nil {
			log.Warn().Err(err).Msg("precompact snapshot failed")
			return nil, nil
		}
		log.Info().Str("snapshot", path).Msg("transcript archived before compaction")
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown hook event: %s", input.HookEventName)
	}
}

// review runs an evaluation when one is due and returns any pending
// feedback. Evaluation failures are logged; the host is never blocked by
// them.
func (h *Handler) review(ctx context.Context, input *Input) string {
	if input.TranscriptPath != "" && h.Evaluator.ShouldEval(input.SessionID) {
		res, err := h.Evaluator.EvaluateLLM(ctx, input.TranscriptPath, input.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("session", input.SessionID).Msg("evaluation failed")
		} else {
			log.Debug().Bool("has_concerns", res.HasConcerns).Float64("cost_usd", res.CostUSD).Msg("evaluation finished")
		}
	}

	mailbox := feedback.NewMailbox(session.Dir(h.Evaluator.Root, input.SessionID))
	msg, ok, err := mailbox.Take()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read feedback")
		return ""
	}
	if !ok {
		return ""
	}
	return msg
}

func feedbackReason(msg string) string {
	return "SUPEREGO FEEDBACK: Please critically evaluate this feedback before continuing.\n\n" + msg
}

type toolInput struct {
	FilePath  string `json:"file_path"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
	Content   string `json:"content"`
	Edits     []struct {
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	} `json:"edits"`
}

// recordPendingChange saves an Edit/Write/MultiEdit proposal so the next
// review sees it.
func (h *Handler) recordPendingChange(input *Input) error {
	switch input.ToolName {
	case "Edit", "Write", "MultiEdit":
	default:
		return nil
	}

	var ti toolInput
	if len(input.ToolInput) > 0 {
		if err := json.Unmarshal(input.ToolInput, &ti); err != nil {
			log.Warn().Err(err).Str("tool", input.ToolName).Msg("unreadable tool_input")
			return nil
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\nFile: %s\n", input.ToolName, ti.FilePath)
	switch input.ToolName {
	case "Edit":
		fmt.Fprintf(&b, "\nOld:\n%s\n\nNew:\n%s\n", clip(ti.OldString), clip(ti.NewString))
	case "Write":
		fmt.Fprintf(&b, "\nContent:\n%s\n", clip(ti.Content))
	case "MultiEdit":
		for i, e := range ti.Edits {
			fmt.Fprintf(&b, "\nEdit %d old:\n%s\n\nEdit %d new:\n%s\n", i+1, clip(e.OldString), i+1, clip(e.NewString))
		}
	}

	dir, err := session.Ensure(h.Evaluator.Root, input.SessionID)
	if err != nil {
		return err
	}
	return evaluate.WritePendingChange(dir, b.String())
}

func clip(s string) string {
	return transcript.Truncate(s, maxPendingField)
}
