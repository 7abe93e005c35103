// Package llm invokes external reasoning engines (the claude and codex
// CLIs) as subprocesses.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DisabledEnv is set on every engine subprocess so hooks fired inside the
// engine's own session do not recurse into another review.
const DisabledEnv = "SUPEREGO_DISABLED"

// DefaultPollInterval is how often a running engine is checked for exit.
const DefaultPollInterval = 100 * time.Millisecond

// Request describes one subprocess invocation.
type Request struct {
	Engine  string // used in errors
	Name    string
	Args    []string
	Env     []string // added to the inherited environment
	Stdin   string   // empty means no stdin
	Timeout time.Duration
}

// Output is what a completed subprocess produced.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes a Request. A non-zero exit is reported through
// Output.ExitCode, not as an error.
type Runner interface {
	Run(ctx context.Context, req Request) (Output, error)
}

// procState tracks a subprocess through its lifetime:
// running -> completed, or running -> timedOut|canceled -> killed.
type procState int

const (
	running procState = iota
	completed
	timedOut
	canceled
	killed
)

func (s procState) String() string {
	switch s {
	case running:
		return "running"
	case completed:
		return "completed"
	case timedOut:
		return "timed out"
	case canceled:
		return "canceled"
	case killed:
		return "killed"
	}
	return fmt.Sprintf("procState(%d)", int(s))
}

// ProcessRunner runs real subprocesses, polling for exit and killing the
// process when the timeout elapses or ctx is done.
type ProcessRunner struct {
	PollInterval time.Duration
}

// Run implements Runner.
func (p ProcessRunner) Run(ctx context.Context, req Request) (Output, error) {
	poll := p.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	cmd := exec.Command(req.Name, req.Args...)
	cmd.Env = append(os.Environ(), req.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}
	// Grandchildren holding the pipes open must not stall reaping.
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Output{}, &NotInstalledError{Engine: req.Engine}
		}
		return Output{}, fmt.Errorf("start %s: %w", req.Name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	start := time.Now()

	state := running
	var waitErr error
	for state == running {
		select {
		case waitErr = <-done:
			state = completed
		case <-ctx.Done():
			state = canceled
		case <-ticker.C:
			if req.Timeout > 0 && time.Since(start) > req.Timeout {
				state = timedOut
			}
		}
	}

	switch state {
	case timedOut, canceled:
		reason := state
		_ = cmd.Process.Kill()
		<-done
		state = killed
		log.Debug().Str("engine", req.Engine).Stringer("reason", reason).Stringer("state", state).Msg("engine process reaped")
		if reason == timedOut {
			return Output{}, &TimeoutError{Engine: req.Engine, After: req.Timeout}
		}
		return Output{}, fmt.Errorf("%s %s: %w", req.Engine, reason, ctx.Err())
	}

	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("wait %s: %w", req.Name, waitErr)
		}
		out.ExitCode = exitErr.ExitCode()
	}
	return out, nil
}
