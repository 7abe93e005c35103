// Package verdict turns a reasoning engine's freeform reply into a decision.
//
// The expected reply shape is
//
//	DECISION: ALLOW|BLOCK
//	CONFIDENCE: HIGH|MEDIUM|LOW   (optional)
//
//	<feedback>
//
// Markdown decoration around the markers is tolerated. A reply with an
// unrecognised verdict blocks.
package verdict

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Confidence is the engine's self-reported certainty. The zero value means
// the reply did not state one.
type Confidence string

const (
	High   Confidence = "HIGH"
	Medium Confidence = "MEDIUM"
	Low    Confidence = "LOW"
)

const (
	decisionMarker   = "DECISION:"
	confidenceMarker = "CONFIDENCE:"

	// lines after DECISION: searched for CONFIDENCE:
	confidenceLookahead = 3
)

// Result is a parsed reply.
type Result struct {
	Blocks     bool
	Feedback   string
	Confidence Confidence
}

// Parse interprets raw. It never fails; anything it cannot read as an
// explicit ALLOW blocks.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	lines := splitLines(text)

	for idx, line := range lines {
		rest, ok := strings.CutPrefix(stripMarkdown(line), decisionMarker)
		if !ok {
			continue
		}
		token := strings.ToUpper(strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*_`")))

		conf, confIdx := findConfidence(lines, idx)
		start := idx + 1
		if confIdx >= 0 {
			start = confIdx + 1
		}

		res := Result{Feedback: feedbackBody(lines[start:]), Confidence: conf}
		switch token {
		case "ALLOW":
		case "BLOCK":
			res.Blocks = true
		default:
			log.Warn().Str("decision", token).Msg("unknown decision, defaulting to BLOCK")
			res.Blocks = true
		}
		return res
	}

	// Older replies carry no markers: only "No concerns." allows.
	lower := strings.ToLower(text)
	allow := lower == "no concerns." || lower == "no concerns"
	return Result{Blocks: !allow, Feedback: text}
}

// findConfidence looks at the first non-blank line within the lookahead.
// Returns the confidence and its line index, or -1 when absent or invalid.
func findConfidence(lines []string, decisionIdx int) (Confidence, int) {
	for off := 1; off <= confidenceLookahead; off++ {
		i := decisionIdx + off
		if i >= len(lines) {
			break
		}
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		rest, ok := strings.CutPrefix(stripMarkdown(l), confidenceMarker)
		if !ok {
			return "", -1
		}
		switch c := Confidence(strings.ToUpper(strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*_`")))); c {
		case High, Medium, Low:
			return c, i
		}
		return "", -1
	}
	return "", -1
}

func feedbackBody(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	body := strings.TrimSpace(strings.Join(lines, "\n"))
	for strings.HasSuffix(body, "```") {
		body = strings.TrimSuffix(body, "```")
	}
	return strings.TrimSpace(body)
}

// stripMarkdown removes leading heading, blockquote, and emphasis marks.
func stripMarkdown(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>* \t"))
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
