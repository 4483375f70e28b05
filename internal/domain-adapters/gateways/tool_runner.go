package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces/gateways"
)

// ToolRunner executes external tools with a bounded lifetime
type ToolRunner struct {
	defaultTimeout time.Duration
}

// NewToolRunner creates a new tool runner
func NewToolRunner(defaultTimeout time.Duration) *ToolRunner {
	if defaultTimeout <= 0 {
		defaultTimeout = time.Minute
	}
	return &ToolRunner{defaultTimeout: defaultTimeout}
}

// Run executes tool with args. A non-zero exit is returned in the result;
// a missing tool, a start failure or a timeout is an ErrExternalTool error.
func (r *ToolRunner) Run(ctx context.Context, tool string, args []string, timeout time.Duration) (*gateways.ToolResult, error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	path, err := exec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %w", entities.ErrExternalTool, tool, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: tool path comes from configuration, arguments are fixed
	cmd := exec.CommandContext(execCtx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err = cmd.Run()
	result := &gateways.ToolResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if err == nil {
		return result, nil
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s timed out after %v", entities.ErrExternalTool, tool, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, fmt.Errorf("%w: failed to run %s: %w", entities.ErrExternalTool, tool, err)
}
