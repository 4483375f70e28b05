// Package services implements domain business logic and use cases.
package services

import (
	"context"
	"fmt"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
	"github.com/ochairo/specimen/internal/domain/interfaces/gateways"
	"github.com/ochairo/specimen/internal/domain/interfaces/repositories"
	"github.com/ochairo/specimen/internal/domain/interfaces/services"
)

// triageService implements TriageService. Format-specific and I/O work is
// delegated to the gateway; classification, strings and signature matching
// are pure logic.
type triageService struct {
	gateway    gateways.TriageGateway
	signatures repositories.SignatureRepository
	extractor  *StringExtractor
	config     entities.TriageConfig
	logger     interfaces.Logger
}

// NewTriageService creates a new triage service with dependency injection.
// signatures may be nil when no database is configured.
func NewTriageService(
	gateway gateways.TriageGateway,
	signatures repositories.SignatureRepository,
	config entities.TriageConfig,
	logger interfaces.Logger,
) services.TriageService {
	return &triageService{
		gateway:    gateway,
		signatures: signatures,
		extractor:  NewStringExtractor(config.MinStringLength, config.MaxStrings),
		config:     config,
		logger:     interfaces.OrNoOp(logger),
	}
}

func (s *triageService) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.StepTimeout)
}

// LoadArtifact reads the sample into memory, bounded by the step timeout
func (s *triageService) LoadArtifact(ctx context.Context, path string) entities.StepResult[*entities.Artifact] {
	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()

	artifact, err := s.gateway.LoadArtifact(stepCtx, path)
	if err != nil {
		return entities.Fail[*entities.Artifact](entities.StepLoad, err)
	}
	if artifact.Truncated {
		s.logger.Warn("artifact larger than in-memory limit, content steps see a prefix",
			interfaces.F("path", path),
			interfaces.F("size", artifact.Size),
			interfaces.F("limit", len(artifact.Data)))
	}
	return entities.Ok(entities.StepLoad, artifact)
}

// Fingerprint computes the hash set
func (s *triageService) Fingerprint(ctx context.Context, artifact *entities.Artifact) entities.StepResult[*entities.FingerprintSet] {
	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()

	fp, err := s.gateway.Fingerprint(stepCtx, artifact)
	if err != nil {
		return entities.Fail[*entities.FingerprintSet](entities.StepHash, err)
	}
	return entities.Ok(entities.StepHash, fp)
}

// ExtractStrings scans the in-memory view of the artifact
func (s *triageService) ExtractStrings(artifact *entities.Artifact) entities.StepResult[*entities.StringTable] {
	table := s.extractor.Extract(artifact.Data)
	if table.Truncated {
		s.logger.Warn("string extraction hit the configured cap",
			interfaces.F("path", artifact.Path),
			interfaces.F("max_strings", s.config.MaxStrings))
	}
	return entities.Ok(entities.StepStrings, table)
}

// Classify decides the container kind from magic bytes
func (s *triageService) Classify(artifact *entities.Artifact) entities.StepResult[entities.ContainerKind] {
	return entities.Ok(entities.StepClassify, ClassifyContainer(artifact.Data))
}

// ClassifyType asks the type sniffer for a MIME type
func (s *triageService) ClassifyType(artifact *entities.Artifact) entities.StepResult[string] {
	return entities.Ok(entities.StepFileType, s.gateway.ClassifyType(artifact.Data))
}

// ParsePE parses PE structure from the in-memory view
func (s *triageService) ParsePE(artifact *entities.Artifact) entities.StepResult[*entities.PEStructure] {
	pe, err := s.gateway.ParsePE(artifact.Data)
	if err != nil {
		return entities.Fail[*entities.PEStructure](entities.StepPE, err)
	}
	return entities.Ok(entities.StepPE, pe)
}

// ParseELF never fails; an empty structure is a valid outcome
func (s *triageService) ParseELF(artifact *entities.Artifact) entities.StepResult[*entities.ELFStructure] {
	return entities.Ok(entities.StepELF, s.gateway.ParseELF(artifact.Data))
}

// DetectPEPacker matches the entry point against the signature database
func (s *triageService) DetectPEPacker(ctx context.Context, artifact *entities.Artifact, pe *entities.PEStructure) entities.StepResult[*entities.PackerMatch] {
	if s.signatures == nil {
		return entities.Fail[*entities.PackerMatch](entities.StepPacker,
			fmt.Errorf("%w: no signature database configured", entities.ErrSignatureDatabase))
	}

	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()

	db, err := s.signatures.Load(stepCtx)
	if err != nil {
		return entities.Fail[*entities.PackerMatch](entities.StepPacker, err)
	}

	matches, err := MatchSignatures(db, pe, artifact.Data, MatchOptions{EntryPointOnly: true})
	if err != nil {
		return entities.Fail[*entities.PackerMatch](entities.StepPacker, err)
	}
	return entities.Ok(entities.StepPacker, &entities.PackerMatch{
		Source:     entities.PackerSourceSignatureDB,
		Signatures: matches,
	})
}

// DetectELFPacker runs the UPX probe against the sample on disk
func (s *triageService) DetectELFPacker(ctx context.Context, artifact *entities.Artifact) entities.StepResult[*entities.PackerMatch] {
	match, err := s.gateway.ProbeUPX(ctx, artifact.Path)
	if err != nil {
		return entities.Fail[*entities.PackerMatch](entities.StepPacker, err)
	}
	return entities.Ok(entities.StepPacker, match)
}

// CompareFuzzy scores two fuzzy hashes
func (s *triageService) CompareFuzzy(a, b string) (int, error) {
	score, err := s.gateway.CompareFuzzy(a, b)
	if err != nil {
		return 0, fmt.Errorf("fuzzy comparison failed: %w", err)
	}
	return score, nil
}
