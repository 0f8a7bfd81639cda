package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sentiment-api/internal/shared/metrics"
	"sentiment-api/internal/shared/telemetry"
	"sentiment-api/internal/shared/util"
)

const (
	DefaultTimeout = 30 * time.Second

	defaultWaitDelay = 2 * time.Second
	maxRecords       = 64
	maxDiagnostics   = 256
)

// ErrStart indicates the worker process could not be launched.
var ErrStart = errors.New("start worker")

// Options describes how to launch the inference worker.
type Options struct {
	// Python is the interpreter (or any executable) to run.
	Python string
	// PythonArgs go before Script, e.g. "-u" for unbuffered output.
	PythonArgs []string
	// Script is the entry script. The request text follows it.
	Script string
	// Env is appended to the server's environment.
	Env     []string
	Timeout time.Duration
	// WaitDelay bounds how long stdout/stderr copying may outlive the
	// process, e.g. when a grandchild still holds the pipes.
	WaitDelay time.Duration
}

// Client runs one worker process per Invoke call. It holds no per-request
// state and is safe for concurrent use.
type Client struct {
	opts Options
}

// NewClient constructs a Client, applying defaults for zero options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = defaultWaitDelay
	}
	return &Client{opts: opts}
}

// Timeout returns the per-invocation deadline.
func (c *Client) Timeout() time.Duration {
	return c.opts.Timeout
}

func (c *Client) args(text string) []string {
	args := make([]string, 0, len(c.opts.PythonArgs)+2)
	args = append(args, c.opts.PythonArgs...)
	if c.opts.Script != "" {
		args = append(args, c.opts.Script)
	}
	return append(args, text)
}

// Invoke runs the worker with text as its last argument and blocks until
// the process has exited, been killed on timeout, or been killed because
// ctx was cancelled. The returned error is non-nil only when the process
// could not be started; every other outcome is described by the
// Invocation. The process has always been reaped when Invoke returns.
func (c *Client) Invoke(ctx context.Context, text string) (*Invocation, error) {
	inv := &Invocation{
		ID:       uuid.NewString(),
		Status:   StatusRunning,
		ExitCode: -1,
	}

	var (
		output      []Record
		diagnostics []string
		// One counter per stream: exec copies stdout and stderr on
		// separate goroutines.
		droppedOut int
		droppedErr int
	)
	stdout := newLineWriter(func(line string) {
		if len(output) >= maxRecords {
			droppedOut++
			return
		}
		rec := decodeRecord(line)
		output = append(output, rec)
		fields := map[string]any{
			"invocation_id": inv.ID,
			"index":         len(output) - 1,
		}
		if rec.Err != nil {
			fields["error"] = rec.Err
		}
		telemetry.Info("worker.message", fields)
	})
	stderr := newLineWriter(func(line string) {
		line = util.SanitizeLine(line)
		if line == "" {
			return
		}
		if len(diagnostics) >= maxDiagnostics {
			droppedErr++
			return
		}
		diagnostics = append(diagnostics, line)
		telemetry.Warn("worker.stderr", map[string]any{
			"invocation_id": inv.ID,
			"line":          line,
		})
	})

	cmd := exec.Command(c.opts.Python, c.args(text)...)
	if len(c.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), c.opts.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = c.opts.WaitDelay
	setProcAttrs(cmd)

	inv.StartedAt = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStart, err)
	}
	inv.PID = cmd.Process.Pid
	metrics.WorkerStarted()
	telemetry.Info("worker.start", map[string]any{
		"invocation_id": inv.ID,
		"pid":           inv.PID,
		"text_len":      len(text),
		"text_fp":       util.Fingerprint(text),
	})

	done := make(chan struct{})
	go func() {
		// Wait also drains the stdout/stderr copy goroutines, so once done
		// is closed the collected slices are safe to read here.
		_ = cmd.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		if !exited(done) {
			inv.Status = StatusTimedOut
			c.kill(cmd, inv, "timeout")
			<-done
		}
	case <-ctx.Done():
		if !exited(done) {
			inv.Status = StatusKilled
			inv.Canceled = ctx.Err()
			c.kill(cmd, inv, "canceled")
			<-done
		}
	}

	stdout.Flush()
	stderr.Flush()
	inv.Elapsed = time.Since(inv.StartedAt)
	inv.Output = output
	inv.Diagnostics = diagnostics
	inv.Dropped = droppedOut + droppedErr
	classifyExit(inv, cmd.ProcessState)

	metrics.WorkerExited(string(inv.Status))
	telemetry.Info("worker.exit", map[string]any{
		"invocation_id": inv.ID,
		"pid":           inv.PID,
		"status":        string(inv.Status),
		"exit_code":     inv.ExitCode,
		"signal":        inv.Signal,
		"messages":      len(inv.Output),
		"stderr_lines":  len(inv.Diagnostics),
		"duration_ms":   float64(inv.Elapsed.Microseconds()) / 1000.0,
	})
	return inv, nil
}

// exited reports whether the process finished while a timer or context
// fired in the same instant, in which case the exit wins.
func exited(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (c *Client) kill(cmd *exec.Cmd, inv *Invocation, reason string) {
	fields := map[string]any{
		"invocation_id": inv.ID,
		"pid":           inv.PID,
		"reason":        reason,
		"timeout_ms":    c.opts.Timeout.Milliseconds(),
	}
	if err := terminate(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
		fields["error"] = err
		telemetry.Error("worker.kill_failed", fields)
		return
	}
	telemetry.Warn("worker.killed", fields)
}

type signaledStatus interface {
	Signaled() bool
	Signal() syscall.Signal
}

func classifyExit(inv *Invocation, state *os.ProcessState) {
	if state == nil {
		if inv.Status == StatusRunning {
			inv.Status = StatusKilled
		}
		return
	}
	inv.ExitCode = state.ExitCode()
	if ws, ok := state.Sys().(signaledStatus); ok && ws.Signaled() {
		inv.Signal = ws.Signal().String()
	}
	if inv.Status != StatusRunning {
		return
	}
	switch {
	case inv.Signal != "":
		inv.Status = StatusKilled
	case inv.ExitCode == 0:
		inv.Status = StatusExitedOK
	default:
		inv.Status = StatusExitedError
	}
}
