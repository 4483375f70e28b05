// Package gateways provides adapter implementations for external services and tools.
package gateways

import (
	"context"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
	"github.com/ochairo/specimen/internal/domain/interfaces/gateways"
)

// compositeTriageGateway implements the TriageGateway interface by composing
// all individual triage gateways together
type compositeTriageGateway struct {
	loader    *artifactLoader
	hasher    *hashEngine
	sniffer   *typeSniffer
	peParser  *peParser
	elfParser *elfParser
	upx       *upxProber
}

// NewCompositeTriageGateway creates a new composite triage gateway with all dependencies
func NewCompositeTriageGateway(config entities.TriageConfig, logger interfaces.Logger) gateways.TriageGateway {
	return &compositeTriageGateway{
		loader:    NewArtifactLoader(config.MaxFileBytes),
		hasher:    NewHashEngine(logger),
		sniffer:   NewTypeSniffer(),
		peParser:  NewPEParser(config.TimeZone),
		elfParser: NewELFParser(config.ELFMinimal, logger),
		upx:       NewUPXProber(NewToolRunner(config.ToolTimeout), config.UPXPath, config.ToolTimeout),
	}
}

// NewCompositeTriageGatewayWithDeps creates a composite gateway with custom dependencies
// This is useful for testing or when you want to inject specific implementations
func NewCompositeTriageGatewayWithDeps(
	loader *artifactLoader,
	hasher *hashEngine,
	sniffer *typeSniffer,
	pe *peParser,
	elf *elfParser,
	upx *upxProber,
) gateways.TriageGateway {
	return &compositeTriageGateway{
		loader:    loader,
		hasher:    hasher,
		sniffer:   sniffer,
		peParser:  pe,
		elfParser: elf,
		upx:       upx,
	}
}

// LoadArtifact reads the sample into memory
func (c *compositeTriageGateway) LoadArtifact(ctx context.Context, path string) (*entities.Artifact, error) {
	return c.loader.LoadArtifact(ctx, path)
}

// Fingerprint computes exact and fuzzy hashes
func (c *compositeTriageGateway) Fingerprint(ctx context.Context, artifact *entities.Artifact) (*entities.FingerprintSet, error) {
	return c.hasher.Fingerprint(ctx, artifact)
}

// CompareFuzzy scores two fuzzy hashes
func (c *compositeTriageGateway) CompareFuzzy(a, b string) (int, error) {
	return c.hasher.CompareFuzzy(a, b)
}

// ClassifyType detects the MIME type
func (c *compositeTriageGateway) ClassifyType(data []byte) string {
	return c.sniffer.ClassifyType(data)
}

// ParsePE parses PE structure
func (c *compositeTriageGateway) ParsePE(data []byte) (*entities.PEStructure, error) {
	return c.peParser.ParsePE(data)
}

// ParseELF parses ELF structure
func (c *compositeTriageGateway) ParseELF(data []byte) *entities.ELFStructure {
	return c.elfParser.ParseELF(data)
}

// ProbeUPX runs the UPX self-test against path
func (c *compositeTriageGateway) ProbeUPX(ctx context.Context, path string) (*entities.PackerMatch, error) {
	return c.upx.ProbeUPX(ctx, path)
}
