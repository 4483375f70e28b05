package gateways

import (
	"context"
	"strings"
	"time"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces/gateways"
)

// upxOKMarker is printed by `upx -t` for every file that tests as packed
const upxOKMarker = "[OK]"

// upxProber detects UPX-packed ELF files by running the UPX self-test
type upxProber struct {
	runner  gateways.ToolRunner
	upxPath string
	timeout time.Duration
}

// NewUPXProber creates a new UPX prober
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewUPXProber(runner gateways.ToolRunner, upxPath string, timeout time.Duration) *upxProber {
	if upxPath == "" {
		upxPath = "upx"
	}
	return &upxProber{runner: runner, upxPath: upxPath, timeout: timeout}
}

// ProbeUPX runs `upx -q -t path`. Not being packed is the default outcome:
// a non-zero exit or output without the marker yields no label.
func (p *upxProber) ProbeUPX(ctx context.Context, path string) (*entities.PackerMatch, error) {
	res, err := p.runner.Run(ctx, p.upxPath, []string{"-q", "-t", path}, p.timeout)
	if err != nil {
		return nil, err
	}

	match := &entities.PackerMatch{Source: entities.PackerSourceUPXProbe, Signatures: []entities.SignatureMatch{}}
	if res.ExitCode == 0 && strings.Contains(res.Stdout, upxOKMarker) {
		match.Label = entities.Some("upx")
	}
	return match, nil
}
