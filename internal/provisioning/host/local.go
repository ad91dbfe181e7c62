package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// LocalExecutor runs commands on the machine petprov itself runs on.
type LocalExecutor struct {
	// Timeout bounds every command. Zero means no limit.
	Timeout time.Duration
}

// NewLocalExecutor creates a local executor.
func NewLocalExecutor(timeout time.Duration) *LocalExecutor {
	return &LocalExecutor{Timeout: timeout}
}

// Run implements Executor.
func (e *LocalExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	argv := cmd.Argv()
	c := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // commands come from the plan
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Stdin = cmd.Stdin

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("failed to run %s: %w", cmd, ctx.Err())
	}
	return res, fmt.Errorf("failed to run %s: %w", cmd, err)
}
