package gateways

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
)

func TestToolRunner_Run_Success(t *testing.T) {
	runner := NewToolRunner(time.Minute)

	result, err := runner.Run(context.Background(), "sh", []string{"-c", "echo 'Hello, World!'"}, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("Run() exit code = %d, want 0", result.ExitCode)
	}
	if result.Stdout != "Hello, World!\n" {
		t.Errorf("Run() stdout = %q, want %q", result.Stdout, "Hello, World!\n")
	}
}

func TestToolRunner_Run_NonZeroExitIsNotAnError(t *testing.T) {
	runner := NewToolRunner(time.Minute)

	result, err := runner.Run(context.Background(), "sh", []string{"-c", "echo oops >&2; exit 42"}, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 42 {
		t.Errorf("Run() exit code = %d, want 42", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "oops") {
		t.Errorf("Run() stderr = %q, want it to contain oops", result.Stderr)
	}
}

func TestToolRunner_Run_MissingTool(t *testing.T) {
	runner := NewToolRunner(time.Minute)

	_, err := runner.Run(context.Background(), "specimen-no-such-tool", nil, 0)
	if !errors.Is(err, entities.ErrExternalTool) {
		t.Errorf("Run() error = %v, want ErrExternalTool", err)
	}
}

func TestToolRunner_Run_Timeout(t *testing.T) {
	runner := NewToolRunner(time.Minute)

	start := time.Now()
	_, err := runner.Run(context.Background(), "sleep", []string{"5"}, 100*time.Millisecond)
	if !errors.Is(err, entities.ErrExternalTool) {
		t.Errorf("Run() error = %v, want ErrExternalTool", err)
	}
	if err != nil && !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Run() error = %v, want a timeout message", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run() took %v, the timeout was not enforced", elapsed)
	}
}
