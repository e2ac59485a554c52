package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

const (
	// maxCapturedOutput bounds how much of a step's output is kept for reporting
	maxCapturedOutput = 64 << 10

	// waitDelay bounds how long Run waits for output pipes after the process is killed
	waitDelay = 2 * time.Second
)

// CommandExecutor runs build commands as external processes
type CommandExecutor struct {
	defaultTimeout time.Duration
	logger         interfaces.Logger
}

// NewCommandExecutor creates a new command executor
func NewCommandExecutor(logger interfaces.Logger) *CommandExecutor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &CommandExecutor{
		defaultTimeout: 2 * time.Hour,
		logger:         logger,
	}
}

// Run executes spec.Args directly (no shell) under spec.Env layered over the
// current process environment. Failed attempts are retried up to spec.Retry,
// and cancellation of ctx kills the running process and its descendants.
func (ce *CommandExecutor) Run(ctx context.Context, spec gateways.CommandSpec) *gateways.CommandResult {
	if len(spec.Args) == 0 {
		return &gateways.CommandResult{ExitCode: -1, Error: errors.New("empty command")}
	}

	maxAttempts := spec.Retry.MaxAttempts()
	var result *gateways.CommandResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = ce.runOnce(ctx, spec)
		result.Attempts = attempt
		if result.Success || attempt == maxAttempts || ctx.Err() != nil {
			return result
		}

		ce.logger.Warn("command failed, retrying",
			interfaces.F("command", spec.Args[0]),
			interfaces.F("attempt", attempt),
			interfaces.F("exit_code", result.ExitCode))

		select {
		case <-ctx.Done():
			result.Error = fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			return result
		case <-time.After(spec.Retry.Delay):
		}
	}
	return result
}

func (ce *CommandExecutor) runOnce(ctx context.Context, spec gateways.CommandSpec) *gateways.CommandResult {
	startTime := time.Now()
	result := &gateways.CommandResult{}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = ce.defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: Command execution is intentional and controlled by recipe configuration
	cmd := exec.CommandContext(execCtx, spec.Args[0], spec.Args[1:]...)
	if spec.WorkingDir != "" {
		cmd.Dir = spec.WorkingDir
	}
	cmd.Env = append(os.Environ(), spec.Env...)
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout := &tailBuffer{limit: maxCapturedOutput}
	stderr := &tailBuffer{limit: maxCapturedOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	ce.logger.Debug("running command", interfaces.F("args", spec.Args), interfaces.F("dir", spec.WorkingDir))

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result.Error = fmt.Errorf("command timeout after %v", timeout)
			result.ExitCode = -1
		case ctx.Err() != nil:
			result.Error = fmt.Errorf("command cancelled: %w", ctx.Err())
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = -1
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
