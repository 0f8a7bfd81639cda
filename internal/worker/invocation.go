package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the termination state of one worker process.
type Status string

const (
	StatusRunning     Status = "running"
	StatusExitedOK    Status = "exited-ok"
	StatusExitedError Status = "exited-error"
	StatusTimedOut    Status = "timed-out"
	StatusKilled      Status = "killed"
)

// Record is one line the worker wrote to stdout, decoded as a JSON object.
// Err is set when the line was not a JSON object; Raw always holds the line.
type Record struct {
	Raw    string
	Fields map[string]any
	Err    error
}

// Invocation is the aggregated outcome of one worker process run.
// It is built by Client.Invoke and is never shared between requests.
type Invocation struct {
	ID          string
	PID         int
	StartedAt   time.Time
	Elapsed     time.Duration
	Status      Status
	ExitCode    int
	Signal      string
	Canceled    error
	Output      []Record
	Diagnostics []string
	Dropped     int
}

// ExitDescription renders the exit indicator for logs and error details.
func (inv *Invocation) ExitDescription() string {
	switch inv.Status {
	case StatusTimedOut:
		return fmt.Sprintf("timed out after %s", inv.Elapsed.Round(time.Millisecond))
	case StatusKilled:
		if inv.Canceled != nil {
			return fmt.Sprintf("killed: %v", inv.Canceled)
		}
		if inv.Signal != "" {
			return "terminated by signal " + inv.Signal
		}
		return "killed"
	default:
		return fmt.Sprintf("exit code %d", inv.ExitCode)
	}
}

var errNotObject = errors.New("worker output line is not a JSON object")

func decodeRecord(line string) Record {
	rec := Record{Raw: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		rec.Err = fmt.Errorf("decode worker output: %w", err)
		return rec
	}
	if fields == nil {
		rec.Err = errNotObject
		return rec
	}
	rec.Fields = fields
	return rec
}
