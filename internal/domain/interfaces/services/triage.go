// Package services defines interfaces for domain service contracts.
package services

import (
	"context"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// TriageService defines the per-step operations of a static analysis.
// Each step returns a StepResult so callers never need to unwind errors.
type TriageService interface {
	LoadArtifact(ctx context.Context, path string) entities.StepResult[*entities.Artifact]
	Fingerprint(ctx context.Context, artifact *entities.Artifact) entities.StepResult[*entities.FingerprintSet]
	ExtractStrings(artifact *entities.Artifact) entities.StepResult[*entities.StringTable]
	Classify(artifact *entities.Artifact) entities.StepResult[entities.ContainerKind]
	ClassifyType(artifact *entities.Artifact) entities.StepResult[string]
	ParsePE(artifact *entities.Artifact) entities.StepResult[*entities.PEStructure]
	ParseELF(artifact *entities.Artifact) entities.StepResult[*entities.ELFStructure]
	DetectPEPacker(ctx context.Context, artifact *entities.Artifact, pe *entities.PEStructure) entities.StepResult[*entities.PackerMatch]
	DetectELFPacker(ctx context.Context, artifact *entities.Artifact) entities.StepResult[*entities.PackerMatch]

	// CompareFuzzy scores the similarity of two fuzzy hashes (0-100)
	CompareFuzzy(a, b string) (int, error)
}
