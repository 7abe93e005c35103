package llm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// DefaultCodexTimeout bounds a codex call when none is configured.
const DefaultCodexTimeout = 180 * time.Second

const codexInstruction = "Respond with DECISION: ALLOW or DECISION: BLOCK followed by your feedback."

var resetsInRe = regexp.MustCompile(`resets_in_seconds"?\s*:\s*(\d+)`)

// Codex runs `codex exec --json` with the prompt on stdin.
type Codex struct {
	Runner  Runner
	Binary  string
	Timeout time.Duration
}

// NewCodex returns a Codex engine using real subprocesses.
func NewCodex(timeout time.Duration) *Codex {
	if timeout <= 0 {
		timeout = DefaultCodexTimeout
	}
	return &Codex{Runner: ProcessRunner{}, Binary: "codex", Timeout: timeout}
}

// Name implements the evaluate engine interface.
func (c *Codex) Name() string { return "codex" }

// Available reports whether `codex --version` succeeds.
func (c *Codex) Available(ctx context.Context) bool {
	out, err := c.Runner.Run(ctx, Request{
		Engine:  c.Name(),
		Name:    c.Binary,
		Args:    []string{"--version"},
		Timeout: 10 * time.Second,
	})
	return err == nil && out.ExitCode == 0
}

// Invoke sends the combined prompt and decodes the JSONL event stream.
func (c *Codex) Invoke(ctx context.Context, systemPrompt, message string) (Response, error) {
	if !c.Available(ctx) {
		return Response{}, &NotInstalledError{Engine: c.Name()}
	}

	prompt := systemPrompt + "\n\n---\n\n" + message + "\n\n---\n\n" + codexInstruction
	out, err := c.Runner.Run(ctx, Request{
		Engine:  c.Name(),
		Name:    c.Binary,
		Args:    []string{"exec", "--json", "--skip-git-repo-check", "-"},
		Env:     []string{DisabledEnv + "=1"},
		Stdin:   prompt,
		Timeout: c.Timeout,
	})
	if err != nil {
		return Response{}, err
	}
	if out.ExitCode != 0 {
		stderr := string(out.Stderr)
		if isRateLimitText(stderr) {
			return Response{}, &RateLimitError{Engine: c.Name(), ResetsIn: parseResetsIn(stderr), Raw: stderr}
		}
		return Response{}, &CommandError{Engine: c.Name(), Message: stderr, ExitCode: out.ExitCode}
	}
	return DecodeCodexOutput(out.Stdout)
}

type codexEvent struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
	Item     *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// DecodeCodexOutput reads `codex exec --json` events. The last completed
// agent_message is the reply; unparseable lines are ignored.
func DecodeCodexOutput(stdout []byte) (Response, error) {
	var r Response
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev codexEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if ev.ThreadID != "" {
			r.SessionID = ev.ThreadID
		}
		if ev.Type == "item.completed" && ev.Item != nil && ev.Item.Type == "agent_message" && ev.Item.Text != "" {
			r.Result = ev.Item.Text
		}
		if ev.Usage != nil {
			r.Tokens = ev.Usage.InputTokens + ev.Usage.OutputTokens
		}
	}
	if err := sc.Err(); err != nil {
		return Response{}, &ParseError{Engine: "codex", Raw: truncate(string(stdout), 500), Err: err}
	}
	if r.Result == "" {
		return Response{}, &ParseError{Engine: "codex", Raw: truncate(string(stdout), 500), Err: errors.New("no agent_message found in output")}
	}
	return r, nil
}

func parseResetsIn(stderr string) time.Duration {
	m := resetsInRe.FindStringSubmatch(stderr)
	if m == nil {
		return 0
	}
	secs, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
