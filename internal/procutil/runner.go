package procutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Runner starts external tools. Detached children are reaped by a
// background goroutine so the caller never waits on them.
type Runner struct {
	reapers sync.WaitGroup

	tagsMu sync.Mutex
	tags   map[string]*tagGroup

	startFn  func(cmd *exec.Cmd) error
	waitFn   func(cmd *exec.Cmd) error
	outputFn func(cmd *exec.Cmd) ([]byte, error)
}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() *Runner {
	return &Runner{
		startFn:  (*exec.Cmd).Start,
		waitFn:   (*exec.Cmd).Wait,
		outputFn: (*exec.Cmd).Output,
	}
}

// tagGroup counts live children started under one tag. idle is closed when
// the count drops to zero.
type tagGroup struct {
	live int
	idle chan struct{}
}

// StartTagged launches name with args and returns once the process is
// started. Exit status is logged, never returned. The child is counted under
// tag until it exits so WaitTag can wait for it; an empty tag is not tracked.
func (r *Runner) StartTagged(tag, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	HideWindow(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := r.startFn(cmd); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("start %s: %w", name, ErrToolUnavailable)
		}
		return fmt.Errorf("start %s: %w", name, err)
	}
	r.track(tag)
	r.reapers.Go(func() {
		defer r.untrack(tag)
		if err := r.waitFn(cmd); err != nil {
			slog.Warn("[WARN-TOOLS] detached command failed",
				"tool", name,
				"args", strings.Join(args, " "),
				"error", err,
				"stderr", strings.TrimSpace(stderr.String()),
			)
			return
		}
		slog.Debug("[DEBUG-TOOLS] detached command finished", "tool", name, "args", strings.Join(args, " "))
	})
	return nil
}

// Output runs name to completion and returns its standard output.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	HideWindow(cmd)
	out, err := r.outputFn(cmd)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("run %s: %w", name, ErrToolUnavailable)
		}
		return string(out), fmt.Errorf("run %s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// Wait blocks until every detached child has exited.
func (r *Runner) Wait() {
	r.reapers.Wait()
}

// WaitTag blocks until every child started under tag has exited or ctx is
// done.
func (r *Runner) WaitTag(ctx context.Context, tag string) error {
	r.tagsMu.Lock()
	g, ok := r.tags[tag]
	r.tagsMu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-g.idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %q children: %w", tag, ctx.Err())
	}
}

func (r *Runner) track(tag string) {
	if tag == "" {
		return
	}
	r.tagsMu.Lock()
	defer r.tagsMu.Unlock()
	if r.tags == nil {
		r.tags = map[string]*tagGroup{}
	}
	g, ok := r.tags[tag]
	if !ok {
		g = &tagGroup{idle: make(chan struct{})}
		r.tags[tag] = g
	}
	g.live++
}

func (r *Runner) untrack(tag string) {
	if tag == "" {
		return
	}
	r.tagsMu.Lock()
	defer r.tagsMu.Unlock()
	g := r.tags[tag]
	g.live--
	if g.live == 0 {
		close(g.idle)
		delete(r.tags, tag)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
