// Package runner launches the subject under test with a wall-clock budget,
// captures its output streams and guarantees the child process group is
// gone before Run returns.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Default values for runner configuration.
const (
	DefaultMaxOutput = 1 << 20 // 1 MB per stream
	DefaultWaitDelay = 500 * time.Millisecond
)

// Runner executes the subject once per call.
type Runner struct {
	MaxOutput int           // bytes per stream; zero means DefaultMaxOutput
	WaitDelay time.Duration // bound on pipe draining after kill; zero means DefaultWaitDelay
}

// Run executes subject with args verbatim and waits for it to exit or for
// timeout to elapse, whichever comes first.
//
// Timeouts and spawn failures are reported through the Outcome. The error
// is non-nil only for invalid input or when ctx itself was cancelled, in
// which case the child has already been killed.
func (r *Runner) Run(ctx context.Context, subject string, args []string, timeout time.Duration) (*Outcome, error) {
	if subject == "" {
		return nil, fmt.Errorf("empty subject path")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("running %s: %w", subject, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, subject, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = r.waitDelay()

	maxOutput := r.maxOutput()
	stdout := &limitWriter{limit: maxOutput}
	stderr := &limitWriter{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return &Outcome{
			Status:   LaunchFailed,
			ExitCode: -1,
			Elapsed:  time.Since(start),
			Err:      fmt.Sprintf("launching %s: %v", subject, err),
		}, nil
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	// The leader is reaped; sweep anything it left behind in its group.
	_ = killProcessGroup(cmd)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("running %s: %w", subject, err)
	}

	out := &Outcome{
		Status:    Completed,
		ExitCode:  0,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Elapsed:   elapsed,
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	if timedOut(runCtx.Err(), cmd.ProcessState) {
		out.Status = TimedOut
		out.ExitCode = -1
		out.Err = fmt.Sprintf("killed after %s", timeout)
		return out, nil
	}

	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, context.DeadlineExceeded):
		// Exited on its own as the deadline fired; the exit status stands.
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// Exited cleanly but a descendant held the pipes open.
		out.Err = waitErr.Error()
	default:
		out.ExitCode = -1
		out.Err = waitErr.Error()
	}
	return out, nil
}

// timedOut reports whether the subject was killed because its budget ran
// out. A subject that exits by itself just as the deadline passes is not
// timed out.
func timedOut(runErr error, state *os.ProcessState) bool {
	return errors.Is(runErr, context.DeadlineExceeded) && killedBySignal(state)
}

func (r *Runner) maxOutput() int {
	if r.MaxOutput > 0 {
		return r.MaxOutput
	}
	return DefaultMaxOutput
}

func (r *Runner) waitDelay() time.Duration {
	if r.WaitDelay > 0 {
		return r.WaitDelay
	}
	return DefaultWaitDelay
}

// limitWriter writes up to limit bytes, then silently discards the rest.
// It is safe to read while the copying goroutine is still writing.
type limitWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = w.truncated || len(p) > 0
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func (w *limitWriter) Truncated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.truncated
}
