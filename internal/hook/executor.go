package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a hook does not finish in time.
var ErrTimeout = errors.New("hook timed out")

// Executor runs hook executables with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor that stops hooks after timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Timeout returns the per-run timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs h with req on stdin and parses its stdout as a Response.
// The manifest config is passed along unless req already carries one.
func (e *Executor) Execute(ctx context.Context, h *Hook, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if req.Config == nil {
		withConfig := *req
		withConfig.Config = h.Manifest.Config
		req = &withConfig
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, h.Executable)
	cmd.Dir = h.Path
	// children of the hook may hold stdout open after it is killed
	cmd.WaitDelay = 500 * time.Millisecond
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v: %s", ErrTimeout, e.timeout, h.Manifest.Name)
	}
	if err != nil {
		if msg := stderr.String(); msg != "" {
			return nil, fmt.Errorf("run hook %s: %w, stderr: %s", h.Manifest.Name, err, msg)
		}
		return nil, fmt.Errorf("run hook %s: %w", h.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse hook response: %w, stdout: %s", err, stdout.String())
	}
	return &resp, nil
}
