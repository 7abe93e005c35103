package llm

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError means the engine did not exit within its deadline and was killed.
type TimeoutError struct {
	Engine string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Engine, e.After)
}

// CommandError means the engine ran but reported failure.
type CommandError struct {
	Engine   string
	Message  string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s command failed: %s", e.Engine, strings.TrimSpace(e.Message))
}

// RateLimitError means the engine refused work because of usage limits.
// ResetsIn is zero when the engine did not say.
type RateLimitError struct {
	Engine   string
	ResetsIn time.Duration
	Raw      string
}

func (e *RateLimitError) Error() string {
	if e.ResetsIn > 0 {
		return fmt.Sprintf("%s rate limited (resets in %d minutes)", e.Engine, int(e.ResetsIn.Minutes()))
	}
	return fmt.Sprintf("%s rate limited", e.Engine)
}

// NotInstalledError means the engine binary could not be found.
type NotInstalledError struct {
	Engine string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("%s CLI not installed", e.Engine)
}

// ParseError means the engine exited cleanly but its reply could not be decoded.
type ParseError struct {
	Engine string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v (raw: %s)", e.Engine, e.Err, truncate(e.Raw, 200))
}

func (e *ParseError) Unwrap() error { return e.Err }

// isRateLimitText reports whether engine diagnostics indicate rate limiting.
func isRateLimitText(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"429", "rate limit", "rate_limit", "too many requests", "usage_limit_reached"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
