// Package check runs the `sg check` diagnostics for a project.
package check

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/open-horizon-labs/superego/internal/config"
	"github.com/open-horizon-labs/superego/internal/llm"
	"github.com/open-horizon-labs/superego/internal/scaffold"
	"github.com/open-horizon-labs/superego/internal/session"
	"github.com/open-horizon-labs/superego/internal/state"
)

// Status represents the outcome of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "FAIL"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a single check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Report aggregates all check results.
type Report struct {
	Results []Result
}

// HasFailures returns true if any result has Fail status.
func (r Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == Fail {
			return true
		}
	}
	return false
}

// Format returns the human-readable report string.
func (r Report) Format() string {
	if len(r.Results) == 0 {
		return "sg check\n\n  no checks ran\n"
	}

	// Find max name length for alignment.
	maxName := 0
	for _, res := range r.Results {
		if len(res.Name) > maxName {
			maxName = len(res.Name)
		}
	}

	var b strings.Builder
	b.WriteString("sg check\n\n")

	var passed, warnings, failures int
	for _, res := range r.Results {
		switch res.Status {
		case Pass:
			passed++
		case Warn:
			warnings++
		case Fail:
			failures++
		}
		fmt.Fprintf(&b, "  %-4s  %-*s  %s\n", res.Status, maxName, res.Name, res.Detail)
	}

	fmt.Fprintf(&b, "\n%d passed, %d warning, %d failure\n", passed, warnings, failures)
	return b.String()
}

// CheckStateDir checks whether the .superego directory exists.
func CheckStateDir(stateDir string) Result {
	if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
		return Result{Name: "state", Status: Pass, Detail: stateDir}
	}
	return Result{Name: "state", Status: Fail, Detail: stateDir + " not found (run sg init)"}
}

// CheckConfig reports whether the layered config parses.
func CheckConfig(stateDir string) Result {
	if _, err := config.Load(stateDir); err != nil {
		return Result{Name: "config", Status: Fail, Detail: err.Error()}
	}
	path := filepath.Join(stateDir, config.ProjectFile)
	if _, err := os.Stat(path); err != nil {
		return Result{Name: "config", Status: Pass, Detail: "defaults (no " + config.ProjectFile + ")"}
	}
	return Result{Name: "config", Status: Pass, Detail: path}
}

// CheckPrompt reports which review prompt will be used.
func CheckPrompt(stateDir string) Result {
	path := filepath.Join(stateDir, scaffold.PromptFile)
	if _, err := os.Stat(path); err == nil {
		return Result{Name: "prompt", Status: Pass, Detail: path}
	}
	return Result{Name: "prompt", Status: Pass, Detail: "embedded default"}
}

// CheckWatermark validates the unscoped state.json.
func CheckWatermark(stateDir string) Result {
	wm, err := state.NewManager(stateDir).Load()
	if err != nil {
		return Result{Name: "watermark", Status: Fail, Detail: err.Error()}
	}
	if wm.Disabled {
		return Result{Name: "watermark", Status: Warn, Detail: "evaluation disabled in " + state.FileName}
	}
	if c, ok := wm.Cursor(); ok {
		return Result{Name: "watermark", Status: Pass, Detail: "last evaluated " + c.Format("2006-01-02 15:04:05")}
	}
	return Result{Name: "watermark", Status: Pass, Detail: "never evaluated"}
}

// CheckSessions reports how many session namespaces exist.
func CheckSessions(stateDir string) Result {
	ids, err := session.List(stateDir)
	if err != nil {
		return Result{Name: "sessions", Status: Warn, Detail: err.Error()}
	}
	return Result{Name: "sessions", Status: Pass, Detail: fmt.Sprintf("%d sessions", len(ids))}
}

// CheckEngine checks that binary is on PATH. Missing required engines fail;
// optional ones warn.
func CheckEngine(binary string, required bool) Result {
	name := "engine:" + binary
	if path, err := exec.LookPath(binary); err == nil {
		return Result{Name: name, Status: Pass, Detail: path}
	}
	if required {
		return Result{Name: name, Status: Fail, Detail: binary + " not found on PATH"}
	}
	return Result{Name: name, Status: Warn, Detail: binary + " not found on PATH"}
}

// CheckRecursionGuard warns when the current shell would disable evaluation.
func CheckRecursionGuard() Result {
	if os.Getenv(llm.DisabledEnv) == "1" {
		return Result{Name: "guard", Status: Warn, Detail: llm.DisabledEnv + "=1, hooks are no-ops"}
	}
	return Result{Name: "guard", Status: Pass, Detail: llm.DisabledEnv + " unset"}
}

// CheckHook checks whether "sg hook" is configured in the settings file at path.
func CheckHook(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: "hook", Status: Warn, Detail: path + " not found (run sg hook install)"}
	}
	if strings.Contains(string(data), "sg hook") {
		return Result{Name: "hook", Status: Pass, Detail: "sg hook found in " + path}
	}
	return Result{Name: "hook", Status: Fail, Detail: "sg hook not found in " + path}
}

// Run executes all checks for the project whose state lives in stateDir.
// settingsPath is the host settings file that should carry the hooks.
func Run(stateDir, settingsPath string) Report {
	results := []Result{CheckStateDir(stateDir)}
	if results[0].Status == Pass {
		results = append(results,
			CheckConfig(stateDir),
			CheckPrompt(stateDir),
			CheckWatermark(stateDir),
			CheckSessions(stateDir),
		)
	}
	results = append(results,
		CheckHook(settingsPath),
		CheckEngine("claude", true),
		CheckEngine("codex", false),
		CheckRecursionGuard(),
	)
	return Report{Results: results}
}
