package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/annobatch/internal/models"
)

// placeholder matches {id}, {organism}, {release} and {payload.<key>}.
var placeholder = regexp.MustCompile(`\{([a-z_]+(?:\.[A-Za-z0-9_\-]+)?)\}`)

// stderrTail bounds how much tool output is kept in a result's detail.
const stderrTail = 512

// CommandRunner runs an external command per item. Arguments, Dir and
// SkipIfExists are templates expanded against the item.
type CommandRunner struct {
	Command          []string // argv template; Command[0] is the binary
	Dir              string   // working directory template (optional)
	Env              []string // extra KEY=VALUE entries appended to os.Environ()
	SkipIfExists     string   // glob template; a match marks the item skipped
	NotFoundExitCode int      // exit code meaning "input not found" (0 disables)
	WaitDelay        time.Duration
}

// Run implements Runner.
func (c *CommandRunner) Run(ctx context.Context, item models.WorkItem) models.TaskResult {
	if len(c.Command) == 0 {
		return Classify(item, NewItemError(item.Key(), "no command configured", nil))
	}

	argv, err := expandAll(c.Command, item)
	if err != nil {
		return Classify(item, err)
	}

	if c.SkipIfExists != "" {
		pattern, err := Expand(c.SkipIfExists, item)
		if err != nil {
			return Classify(item, err)
		}
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			return Classify(item, Skip("already processed"))
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if c.Dir != "" {
		dir, err := Expand(c.Dir, item)
		if err != nil {
			return Classify(item, err)
		}
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env,
		"ANNOBATCH_ITEM_ID="+item.Key(),
		"ANNOBATCH_ORGANISM="+item.Organism,
		"ANNOBATCH_RELEASE="+strconv.Itoa(item.Release),
	)
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err == nil {
		return Classify(item, nil)
	}

	if ctx.Err() == context.DeadlineExceeded {
		return Classify(item, fmt.Errorf("%s: %w", argv[0], ctx.Err()))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if c.NotFoundExitCode != 0 && exitErr.ExitCode() == c.NotFoundExitCode {
			return Classify(item, fmt.Errorf("%s exited %d: %w", argv[0], exitErr.ExitCode(), ErrNotFound))
		}
		res := Classify(item, err)
		if tail := tailOf(stderr.String()); tail != "" {
			res.Detail = fmt.Sprintf("%s: %s", res.Detail, tail)
		}
		return res
	}

	// The binary could not be started at all.
	return Classify(item, NewItemError(item.Key(), "failed to start "+argv[0], err))
}

// Expand substitutes item fields into tmpl. A {payload.key} whose key is absent
// yields a SkipError, since the item lacks a precondition for running.
func Expand(tmpl string, item models.WorkItem) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		switch key {
		case "id":
			return item.Key()
		case "organism":
			return item.Organism
		case "release":
			return strconv.Itoa(item.Release)
		}
		if name, ok := strings.CutPrefix(key, "payload."); ok {
			if v, ok := item.Get(name); ok {
				return v
			}
			if missing == "" {
				missing = name
			}
			return ""
		}
		return m
	})
	if missing != "" {
		return "", Skip("missing " + missing)
	}
	return out, nil
}

func expandAll(tmpls []string, item models.WorkItem) ([]string, error) {
	out := make([]string, len(tmpls))
	for i, t := range tmpls {
		v, err := Expand(t, item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
