package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrPreflightFailed indicates a stage preflight command failed.
var ErrPreflightFailed = errors.New("preflight check failed")

// ShellRunner abstracts shell command execution for testability.
type ShellRunner interface {
	Run(ctx context.Context, command string) (output string, err error)
}

// ShellCommandRunner executes commands via the system shell.
type ShellCommandRunner struct {
	WorkDir string // Working directory for commands (empty = current dir)
}

// Run executes a command via sh -c and returns combined stdout/stderr.
func (r *ShellCommandRunner) Run(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// PreflightResult holds the result of a single preflight command.
type PreflightResult struct {
	Command  string
	Output   string
	Error    error
	Duration time.Duration
}

// RunPreflight executes the checks in order and stops on the first failure,
// which is returned wrapping ErrPreflightFailed.
func RunPreflight(ctx context.Context, runner ShellRunner, checks []string) error {
	for _, check := range checks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := time.Now()
		output, err := runner.Run(ctx, check)
		duration := time.Since(start)

		if err != nil {
			errMsg := fmt.Sprintf("command %q failed after %v: %v",
				check, duration.Round(time.Millisecond), err)
			if out := strings.TrimSpace(output); out != "" {
				errMsg += "\nOutput:\n" + out
			}
			return fmt.Errorf("%w: %s", ErrPreflightFailed, errMsg)
		}
	}
	return nil
}

// RunPreflightWithResults executes every check and returns all results.
// Unlike RunPreflight, it continues past failures.
func RunPreflightWithResults(ctx context.Context, runner ShellRunner, checks []string) []PreflightResult {
	results := make([]PreflightResult, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			results = append(results, PreflightResult{Command: check, Error: ctx.Err()})
			break
		}

		start := time.Now()
		output, err := runner.Run(ctx, check)
		results = append(results, PreflightResult{
			Command:  check,
			Output:   output,
			Error:    err,
			Duration: time.Since(start),
		})
	}
	return results
}
