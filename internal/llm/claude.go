package llm

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// DefaultClaudeTimeout bounds a claude call when none is configured.
const DefaultClaudeTimeout = 300 * time.Second

// claudeTools are the read-only tools a reviewing claude may use.
const claudeTools = "Bash,Read,Glob,Grep"

// Response is a successful engine reply.
type Response struct {
	Result    string
	SessionID string
	CostUSD   float64
	Tokens    int
}

// Claude runs `claude -p --output-format json` for each review. Every call
// is an isolated session; continuity comes from the carryover block in the
// message.
type Claude struct {
	Runner  Runner
	Binary  string
	Model   string
	Timeout time.Duration
}

// NewClaude returns a Claude engine using real subprocesses.
func NewClaude(model string, timeout time.Duration) *Claude {
	if timeout <= 0 {
		timeout = DefaultClaudeTimeout
	}
	return &Claude{Runner: ProcessRunner{}, Binary: "claude", Model: model, Timeout: timeout}
}

// Name implements the evaluate engine interface.
func (c *Claude) Name() string { return "claude" }

// Invoke sends message under systemPrompt and decodes the reply.
func (c *Claude) Invoke(ctx context.Context, systemPrompt, message string) (Response, error) {
	out, err := c.Runner.Run(ctx, Request{
		Engine:  c.Name(),
		Name:    c.Binary,
		Args:    c.args(systemPrompt, message),
		Env:     []string{DisabledEnv + "=1"},
		Timeout: c.Timeout,
	})
	if err != nil {
		return Response{}, err
	}
	if out.ExitCode != 0 {
		return Response{}, claudeFailure(out)
	}
	return DecodeClaudeOutput(out.Stdout)
}

func (c *Claude) args(systemPrompt, message string) []string {
	args := []string{
		"-p",
		"--output-format", "json",
		"--tools", claudeTools,
		"--system-prompt", systemPrompt,
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	return append(args, "--no-session-persistence", message)
}

// claudeFailure prefers the JSON "result" message on stdout, then stderr,
// then raw stdout.
func claudeFailure(out Output) error {
	msg := ""
	var obj map[string]any
	if json.Unmarshal(out.Stdout, &obj) == nil {
		if s, ok := obj["result"].(string); ok {
			msg = s
		}
	}
	if msg == "" {
		if len(bytes.TrimSpace(out.Stderr)) > 0 {
			msg = string(out.Stderr)
		} else {
			msg = string(out.Stdout)
		}
	}
	if isRateLimitText(msg) {
		return &RateLimitError{Engine: "claude", Raw: msg}
	}
	return &CommandError{Engine: "claude", Message: msg, ExitCode: out.ExitCode}
}

// DecodeClaudeOutput accepts either a single result object or the array of
// events claude emits when hooks are active. In the array form the last
// "result" event with a non-empty string result wins.
func DecodeClaudeOutput(stdout []byte) (Response, error) {
	data := bytes.TrimSpace(stdout)
	if len(data) == 0 {
		return Response{}, &ParseError{Engine: "claude", Err: errors.New("empty output")}
	}

	switch data[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return Response{}, &ParseError{Engine: "claude", Raw: string(data), Err: err}
		}
		result, ok := obj["result"].(string)
		if !ok {
			return Response{}, &ParseError{Engine: "claude", Raw: string(data), Err: errors.New("missing string result field")}
		}
		return responseFrom(obj, result), nil

	case '[':
		var events []map[string]any
		if err := json.Unmarshal(data, &events); err != nil {
			return Response{}, &ParseError{Engine: "claude", Raw: string(data), Err: err}
		}
		for i := len(events) - 1; i >= 0; i-- {
			ev := events[i]
			if typ, _ := ev["type"].(string); typ != "result" {
				continue
			}
			result, ok := ev["result"].(string)
			if !ok || result == "" {
				continue
			}
			return responseFrom(ev, result), nil
		}
		return Response{}, &CommandError{
			Engine:  "claude",
			Message: "Claude response array contains no valid 'result' entry (missing or empty result field)",
		}
	}

	return Response{}, &ParseError{Engine: "claude", Raw: string(data), Err: errors.New("not a JSON object or array")}
}

func responseFrom(obj map[string]any, result string) Response {
	r := Response{Result: result}
	r.SessionID, _ = obj["session_id"].(string)
	r.CostUSD, _ = obj["total_cost_usd"].(float64)
	return r
}
