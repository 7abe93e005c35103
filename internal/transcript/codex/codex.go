// Package codex reads OpenAI Codex CLI rollout files
// (~/.codex/sessions/YYYY/MM/DD/rollout-*.jsonl).
package codex

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Entry is one rollout record. Payload shape depends on Type.
type Entry struct {
	Timestamp string         `json:"timestamp,omitempty"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (e Entry) payloadString(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// IsUserMessage reports a user turn, either as a response_item or an
// event_msg of type user_message.
func (e Entry) IsUserMessage() bool {
	switch e.Type {
	case "response_item":
		return e.payloadString("role") == "user"
	case "event_msg":
		return e.payloadString("type") == "user_message"
	}
	return false
}

// IsReasoning reports an agent reasoning record.
func (e Entry) IsReasoning() bool {
	switch e.Type {
	case "event_msg":
		return e.payloadString("type") == "agent_reasoning"
	case "response_item":
		return e.payloadString("type") == "reasoning"
	}
	return false
}

// IsAgentMessage reports an assistant text reply.
func (e Entry) IsAgentMessage() bool {
	return e.Type == "response_item" && e.payloadString("type") == "message" && e.payloadString("role") == "assistant"
}

// UserText returns the text of a user turn.
func (e Entry) UserText() (string, bool) {
	switch e.Type {
	case "event_msg":
		s, ok := e.Payload["message"].(string)
		return s, ok
	case "response_item":
		return joinBlocks(e.Payload["content"], "input_text")
	}
	return "", false
}

// AgentText returns the text of an assistant reply.
func (e Entry) AgentText() (string, bool) {
	if !e.IsAgentMessage() {
		return "", false
	}
	return joinBlocks(e.Payload["content"], "output_text")
}

// ReasoningText returns reasoning text, from an event_msg text field or a
// response_item summary array.
func (e Entry) ReasoningText() (string, bool) {
	switch e.Type {
	case "event_msg":
		s, ok := e.Payload["text"].(string)
		return s, ok
	case "response_item":
		items, _ := e.Payload["summary"].([]any)
		var texts []string
		for _, it := range items {
			m, _ := it.(map[string]any)
			if s, ok := m["text"].(string); ok {
				texts = append(texts, s)
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, "\n"), true
		}
	}
	return "", false
}

// FunctionCall returns the tool name and raw argument string of a
// function_call record.
func (e Entry) FunctionCall() (name, args string, ok bool) {
	if e.Type != "response_item" || e.payloadString("type") != "function_call" {
		return "", "", false
	}
	name, ok = e.Payload["name"].(string)
	if !ok {
		return "", "", false
	}
	return name, e.payloadString("arguments"), true
}

// FunctionOutput returns the output of a function_call_output record.
// Non-string outputs are re-encoded as JSON.
func (e Entry) FunctionOutput() (string, bool) {
	if e.Type != "response_item" || e.payloadString("type") != "function_call_output" {
		return "", false
	}
	out, present := e.Payload["output"]
	if !present {
		return "", false
	}
	if s, ok := out.(string); ok {
		return s, true
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// joinBlocks joins the text of content blocks whose type is kind or "text".
func joinBlocks(content any, kind string) (string, bool) {
	blocks, _ := content.([]any)
	var texts []string
	for _, b := range blocks {
		m, _ := b.(map[string]any)
		typ, _ := m["type"].(string)
		if typ != kind && typ != "text" {
			continue
		}
		if s, ok := m["text"].(string); ok {
			texts = append(texts, s)
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	return strings.Join(texts, "\n"), true
}

// ReadFile parses a rollout file. Malformed lines are logged and skipped;
// only I/O errors are returned.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codex transcript: %w", err)
	}
	defer f.Close()

	var entries []Entry
	br := bufio.NewReaderSize(f, 1024*1024)
	lineNum := 0
	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			lineNum++
			if data := bytes.TrimSpace(raw); len(data) > 0 {
				var e Entry
				if err := json.Unmarshal(data, &e); err != nil || e.Type == "" {
					log.Warn().Err(err).Str("path", path).Int("line", lineNum).
						Msg("skipping malformed codex line")
				} else {
					entries = append(entries, e)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read codex transcript: %w", readErr)
		}
	}
	return entries, nil
}
