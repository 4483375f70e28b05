// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// TriageGateway defines the I/O-bound and format-specific operations of an analysis
type TriageGateway interface {
	// Artifact loading (bounded, read once)
	LoadArtifact(ctx context.Context, path string) (*entities.Artifact, error)

	// Fingerprinting
	Fingerprint(ctx context.Context, artifact *entities.Artifact) (*entities.FingerprintSet, error)
	CompareFuzzy(a, b string) (int, error)

	// Type sniffing, treated as ground truth
	ClassifyType(data []byte) string

	// Structure parsing
	ParsePE(data []byte) (*entities.PEStructure, error)
	ParseELF(data []byte) *entities.ELFStructure

	// Packer probing for ELF samples
	ProbeUPX(ctx context.Context, path string) (*entities.PackerMatch, error)
}

// ToolResult is the outcome of one external tool invocation
type ToolResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ToolRunner runs an external executable with a bounded lifetime.
// A non-zero exit is reported in ToolResult, not as an error; errors mean the
// tool could not be started or did not finish in time.
type ToolRunner interface {
	Run(ctx context.Context, tool string, args []string, timeout time.Duration) (*ToolResult, error)
}
