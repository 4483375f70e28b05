package gateways

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces/gateways"
)

type mockToolRunner struct {
	result *gateways.ToolResult
	err    error

	tool    string
	args    []string
	timeout time.Duration
}

func (m *mockToolRunner) Run(_ context.Context, tool string, args []string, timeout time.Duration) (*gateways.ToolResult, error) {
	m.tool, m.args, m.timeout = tool, args, timeout
	return m.result, m.err
}

func TestUPXProber_ProbeUPX(t *testing.T) {
	tests := []struct {
		name      string
		result    *gateways.ToolResult
		wantLabel bool
	}{
		{
			name:      "packed",
			result:    &gateways.ToolResult{ExitCode: 0, Stdout: "testing /tmp/a [OK]\n"},
			wantLabel: true,
		},
		{
			name:   "not packed",
			result: &gateways.ToolResult{ExitCode: 2, Stderr: "upx: /tmp/a: NotPackableException: not packed by UPX\n"},
		},
		{
			name:   "marker with non-zero exit",
			result: &gateways.ToolResult{ExitCode: 1, Stdout: "[OK]"},
		},
		{
			name:   "unexpected output",
			result: &gateways.ToolResult{ExitCode: 0, Stdout: "something else\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockToolRunner{result: tt.result}
			prober := NewUPXProber(runner, "/opt/upx", 5*time.Second)

			match, err := prober.ProbeUPX(context.Background(), "/tmp/a")
			if err != nil {
				t.Fatalf("ProbeUPX() error = %v", err)
			}
			if match.Source != entities.PackerSourceUPXProbe {
				t.Errorf("Source = %q, want %q", match.Source, entities.PackerSourceUPXProbe)
			}
			label, ok := match.Label.Get()
			if ok != tt.wantLabel {
				t.Errorf("label present = %v, want %v", ok, tt.wantLabel)
			}
			if ok && label != "upx" {
				t.Errorf("label = %q, want upx", label)
			}

			if runner.tool != "/opt/upx" {
				t.Errorf("tool = %q, want /opt/upx", runner.tool)
			}
			if want := []string{"-q", "-t", "/tmp/a"}; !reflect.DeepEqual(runner.args, want) {
				t.Errorf("args = %q, want %q", runner.args, want)
			}
			if runner.timeout != 5*time.Second {
				t.Errorf("timeout = %v, want 5s", runner.timeout)
			}
		})
	}
}

func TestUPXProber_ProbeUPX_RunnerError(t *testing.T) {
	runner := &mockToolRunner{err: fmt.Errorf("%w: upx not found", entities.ErrExternalTool)}
	prober := NewUPXProber(runner, "", time.Second)

	if _, err := prober.ProbeUPX(context.Background(), "/tmp/a"); entities.KindOf(err) != entities.KindExternalToolError {
		t.Errorf("ProbeUPX() error = %v, want ExternalToolError", err)
	}
	if runner.tool != "upx" {
		t.Errorf("default tool = %q, want upx", runner.tool)
	}
}
