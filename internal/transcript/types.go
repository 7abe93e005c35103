package transcript

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Entry is one line of a Claude Code JSONL transcript. The set of
// implementations is closed: Summary, FileSnapshot, User, Assistant, Unknown.
type Entry interface {
	entry()
}

// Summary is a compaction summary written by the host. It carries no
// timestamp or session id.
type Summary struct {
	Text     string
	LeafUUID string
}

// FileSnapshot marks a file-history checkpoint.
type FileSnapshot struct {
	MessageID string
}

// Header holds the fields shared by user and assistant entries.
// A zero Timestamp means the line had none (or an unparseable one).
type Header struct {
	UUID       string
	ParentUUID string
	SessionID  string
	Timestamp  time.Time
}

// User is a user turn: typed text and tool results returned to the model.
type User struct {
	Header
	Content []Block
}

// Assistant is a model turn: text, thinking, and tool invocations.
type Assistant struct {
	Header
	Model   string
	Content []Block
}

// Unknown is any record type this package does not model. Keeping it as its
// own arm means new host record types are skipped cleanly, not reported as
// malformed.
type Unknown struct {
	Type string
}

func (Summary) entry()      {}
func (FileSnapshot) entry() {}
func (User) entry()         {}
func (Assistant) entry()    {}
func (Unknown) entry()      {}

// Block is one element of a message content array.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`          // tool_use id
	Name      string          `json:"name,omitempty"`        // tool name
	Input     json.RawMessage `json:"input,omitempty"`       // tool input
	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Content   json.RawMessage `json:"content,omitempty"`     // tool_result payload (string or structured)
	IsError   bool            `json:"is_error,omitempty"`
}

// Content decodes message content given either as a bare string or as an
// array of blocks.
type Content []Block

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{{Type: "text", Text: s}}
		return nil
	}
	var blocks []Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	*c = blocks
	return nil
}

// line is the wire shape of every record type.
type line struct {
	Type       string   `json:"type"`
	UUID       *string  `json:"uuid"`
	ParentUUID string   `json:"parentUuid"`
	SessionID  string   `json:"sessionId"`
	Timestamp  string   `json:"timestamp"`
	Summary    *string  `json:"summary"`
	LeafUUID   string   `json:"leafUuid"`
	MessageID  string   `json:"messageId"`
	Message    *message `json:"message"`
}

type message struct {
	Role    string  `json:"role"`
	Model   string  `json:"model"`
	Content Content `json:"content"`
}

// Decode converts one JSONL line into an Entry. It fails when the line is not
// a JSON object, has no type, or is a known type missing its required fields.
func Decode(data []byte) (Entry, error) {
	var l line
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}

	switch l.Type {
	case "":
		return nil, fmt.Errorf("missing type")
	case "summary":
		if l.Summary == nil {
			return nil, fmt.Errorf("summary: missing summary text")
		}
		return Summary{Text: *l.Summary, LeafUUID: l.LeafUUID}, nil
	case "file-history-snapshot":
		return FileSnapshot{MessageID: l.MessageID}, nil
	case "user", "assistant":
		if l.UUID == nil {
			return nil, fmt.Errorf("%s: missing uuid", l.Type)
		}
		if l.Message == nil {
			return nil, fmt.Errorf("%s: missing message", l.Type)
		}
		h := Header{
			UUID:       *l.UUID,
			ParentUUID: l.ParentUUID,
			SessionID:  l.SessionID,
			Timestamp:  parseTimestamp(l.Timestamp),
		}
		if l.Type == "user" {
			return User{Header: h, Content: l.Message.Content}, nil
		}
		return Assistant{Header: h, Model: l.Message.Model, Content: l.Message.Content}, nil
	default:
		return Unknown{Type: l.Type}, nil
	}
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
