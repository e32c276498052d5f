// Package runner executes external commands while relaying their output live.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	derrors "git.home.luguber.info/inful/docrun/internal/errors"
	"git.home.luguber.info/inful/docrun/internal/logfields"
	"git.home.luguber.info/inful/docrun/internal/observability"
)

const (
	// DefaultStderrTail bounds how much stderr is kept for the failure log.
	DefaultStderrTail = 64 * 1024
	// DefaultWaitDelay bounds how long Run waits for output pipes to drain
	// after the process has exited (e.g. a background grandchild still holds them).
	DefaultWaitDelay = 10 * time.Second
)

// Result is the outcome of a command that exited.
type Result struct {
	Stdout   string
	Stderr   string // tail only, see DefaultStderrTail
	ExitCode int
	Duration time.Duration
}

// Runner spawns commands and relays their stdout/stderr in real time.
type Runner struct {
	stdout     io.Writer
	stderr     io.Writer
	stderrTail int
	waitDelay  time.Duration
}

// New returns a Runner relaying to the process's own stdout and stderr.
func New() *Runner {
	return &Runner{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		stderrTail: DefaultStderrTail,
		waitDelay:  DefaultWaitDelay,
	}
}

// WithOutput overrides the relay destinations (for testing or quiet runs).
func (r *Runner) WithOutput(stdout, stderr io.Writer) *Runner {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	r.stdout = stdout
	r.stderr = stderr
	return r
}

// WithWaitDelay overrides DefaultWaitDelay.
func (r *Runner) WithWaitDelay(d time.Duration) *Runner {
	r.waitDelay = d
	return r
}

// Run executes cmd and blocks until it exits. Output is relayed to the runner's
// writers as it is produced and captured at the same time. A non-zero exit or a
// spawn failure returns a command-category error; the Result is still returned
// for exited processes so callers can inspect the exit code and output.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Args) == 0 || cmd.Args[0] == "" {
		return nil, derrors.CommandSpawnFailed("", ErrEmptyCommand)
	}
	display := cmd.String()

	// #nosec G204 -- the command comes from the orchestrator's own configuration
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.WaitDelay = r.waitDelay

	var (
		mu      sync.Mutex
		stdout  bytes.Buffer
		errTail = newTailBuffer(r.stderrTail)
	)
	c.Stdout = io.MultiWriter(lockedWriter{mu: &mu, w: r.stdout}, &stdout)
	c.Stderr = io.MultiWriter(lockedWriter{mu: &mu, w: r.stderr}, errTail)

	observability.InfoContext(ctx, "Running command", logfields.Command(display), logfields.Path(cmd.Dir))
	start := time.Now()

	if err := c.Start(); err != nil {
		observability.ErrorContext(ctx, "Command failed to start", logfields.Command(display), logfields.Error(err))
		return nil, derrors.CommandSpawnFailed(display, err)
	}

	waitErr := c.Wait()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   errTail.String(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if errors.Is(waitErr, exec.ErrWaitDelay) && res.ExitCode == 0 {
		// the process succeeded; something it spawned kept the pipes open
		observability.WarnContext(ctx, "Command exited but its output streams stayed open; stopped relaying",
			logfields.Command(display))
		waitErr = nil
	}

	if waitErr != nil {
		cause := waitErr
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = fmt.Errorf("%w: %v", ctxErr, waitErr)
		}
		observability.ErrorContext(ctx, "Command failed",
			logfields.Command(display),
			logfields.ExitCode(res.ExitCode),
			logfields.Stderr(res.Stderr),
			logfields.Error(cause))
		return res, derrors.CommandFailed(display, res.ExitCode, cause)
	}

	observability.DebugContext(ctx, "Command completed",
		logfields.Command(display),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}
