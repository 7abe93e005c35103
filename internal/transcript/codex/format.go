package codex

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
	"github.com/open-horizon-labs/superego/internal/transcript"
)

const (
	// MaxMessage caps user and assistant text in formatted context.
	MaxMessage = 2000
	// MaxOutput caps tool output in formatted context.
	MaxOutput = 500
)

// Format renders rollout entries for review. User turns are taken from
// event_msg records; a response_item copy of the same text is not repeated.
func Format(entries []Entry) string {
	var b strings.Builder
	var seenUser string

	for _, e := range entries {
		if e.IsUserMessage() {
			if text, ok := e.UserText(); ok {
				if e.Type == "event_msg" {
					if text != seenUser {
						b.WriteString("USER: ")
						b.WriteString(transcript.Truncate(text, MaxMessage))
						b.WriteString("\n\n")
					}
				} else {
					seenUser = text
				}
			}
		}

		if e.IsReasoning() {
			if text, ok := e.ReasoningText(); ok {
				b.WriteString("THINKING: ")
				b.WriteString(text)
				b.WriteString("\n\n")
			}
		}

		if name, args, ok := e.FunctionCall(); ok {
			b.WriteString("TOOL: ")
			b.WriteString(name)
			if cmd := shellCommand(name, args); cmd != "" {
				b.WriteString(" ")
				b.WriteString(cmd)
			}
			b.WriteString("\n")
		}

		if out, ok := e.FunctionOutput(); ok {
			b.WriteString("OUTPUT: ")
			b.WriteString(transcript.Truncate(out, MaxOutput))
			b.WriteString("\n\n")
		}

		if text, ok := e.AgentText(); ok {
			b.WriteString("ASSISTANT: ")
			b.WriteString(transcript.Truncate(text, MaxMessage))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// shellCommand returns the JSON-encoded command argument of a shell call.
func shellCommand(name, args string) string {
	if name != "shell" || args == "" {
		return ""
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return ""
	}
	cmd, ok := parsed["command"]
	if !ok {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, cmd); err != nil {
		return ""
	}
	return buf.String()
}
