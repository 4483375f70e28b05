// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
	"github.com/ochairo/specimen/internal/domain/interfaces/services"
)

// TriageOrchestrator runs every analysis step against one artifact and
// assembles the AnalysisRecord. Step failures never abort the record.
type TriageOrchestrator struct {
	triageService services.TriageService
	logger        interfaces.Logger
	newID         func() string
	now           func() time.Time
}

// NewTriageOrchestrator creates a new triage orchestrator
func NewTriageOrchestrator(triageService services.TriageService, logger interfaces.Logger) *TriageOrchestrator {
	return &TriageOrchestrator{
		triageService: triageService,
		logger:        interfaces.OrNoOp(logger),
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// recordBuilder collects step outcomes; only the orchestrator goroutine appends errors
type recordBuilder struct {
	record *entities.AnalysisRecord
	logger interfaces.Logger
}

func (b *recordBuilder) fail(step string, err error) {
	stepErr := entities.NewStepError(step, err)
	b.record.Errors = append(b.record.Errors, stepErr)
	b.logger.Warn("analysis step failed",
		interfaces.F("path", b.record.Path),
		interfaces.F("step", stepErr.Step),
		interfaces.F("kind", stepErr.Kind),
		interfaces.F("error", stepErr.Message))
}

// Analyze performs the complete triage workflow for the file at path
func (o *TriageOrchestrator) Analyze(ctx context.Context, path string) *entities.AnalysisRecord {
	startTime := o.now()
	b := &recordBuilder{
		record: &entities.AnalysisRecord{
			ID:        o.newID(),
			Filename:  filepath.Base(path),
			Path:      path,
			Errors:    []entities.StepError{},
			StartedAt: startTime,
		},
		logger: o.logger,
	}
	defer func() {
		b.record.Duration = time.Since(startTime)
	}()

	o.logger.Debug("analysis started", interfaces.F("id", b.record.ID), interfaces.F("path", path))

	// Step 1: Load bytes once
	loaded := o.triageService.LoadArtifact(ctx, path)
	if loaded.Failed() {
		b.fail(loaded.Step, loaded.Err)
		return b.record
	}
	artifact := loaded.Value
	b.record.FileSize = artifact.Size
	b.record.ContentTruncated = artifact.Truncated

	// Step 2: Independent read-only views of the same buffer
	var (
		wg       sync.WaitGroup
		hashed   entities.StepResult[*entities.FingerprintSet]
		strs     entities.StepResult[*entities.StringTable]
		kind     entities.StepResult[entities.ContainerKind]
		fileType entities.StepResult[string]
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		hashed = o.triageService.Fingerprint(ctx, artifact)
	}()
	go func() {
		defer wg.Done()
		strs = o.triageService.ExtractStrings(artifact)
	}()
	go func() {
		defer wg.Done()
		kind = o.triageService.Classify(artifact)
	}()
	go func() {
		defer wg.Done()
		fileType = o.triageService.ClassifyType(artifact)
	}()
	wg.Wait()

	if hashed.Failed() {
		b.fail(hashed.Step, hashed.Err)
	} else {
		b.record.Fingerprints = hashed.Value
	}
	if strs.Failed() {
		b.fail(strs.Step, strs.Err)
	} else {
		b.record.Strings = strs.Value
	}
	if fileType.Failed() {
		b.fail(fileType.Step, fileType.Err)
	} else {
		b.record.FileType = fileType.Value
	}
	if kind.Failed() {
		b.fail(kind.Step, kind.Err)
		return b.record
	}
	b.record.Kind = kind.Value

	// Step 3: Structure, then packer, depending on the container kind
	switch kind.Value {
	case entities.ContainerPE:
		o.analyzePE(ctx, b, artifact)
	case entities.ContainerELF:
		o.analyzeELF(ctx, b, artifact)
	default:
		o.logger.Debug("no structural parser for container",
			interfaces.F("path", path),
			interfaces.F("filetype", b.record.FileType))
	}

	return b.record
}

func (o *TriageOrchestrator) analyzePE(ctx context.Context, b *recordBuilder, artifact *entities.Artifact) {
	parsed := o.triageService.ParsePE(artifact)
	if parsed.Failed() {
		b.fail(parsed.Step, parsed.Err)
		return
	}
	b.record.PE = parsed.Value

	packer := o.triageService.DetectPEPacker(ctx, artifact, parsed.Value)
	if packer.Failed() {
		b.fail(packer.Step, packer.Err)
		return
	}
	b.record.Packer = packer.Value
}

func (o *TriageOrchestrator) analyzeELF(ctx context.Context, b *recordBuilder, artifact *entities.Artifact) {
	parsed := o.triageService.ParseELF(artifact)
	if parsed.Failed() {
		b.fail(parsed.Step, parsed.Err)
	} else {
		b.record.ELF = parsed.Value
	}

	packer := o.triageService.DetectELFPacker(ctx, artifact)
	if packer.Failed() {
		b.fail(packer.Step, packer.Err)
		return
	}
	b.record.Packer = packer.Value
}

// AnalyzeAll analyzes each path in order. Records are independent; one
// failing sample does not affect the others.
func (o *TriageOrchestrator) AnalyzeAll(ctx context.Context, paths []string) []*entities.AnalysisRecord {
	records := make([]*entities.AnalysisRecord, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("analysis cancelled", interfaces.F("remaining", len(paths)-len(records)))
			break
		}
		records = append(records, o.Analyze(ctx, path))
	}
	return records
}

// Summary counts outcomes across a batch of records
type Summary struct {
	Total       int
	WithErrors  int
	PE          int
	ELF         int
	Other       int
	PackedFiles int
}

// GetSummary returns counts for a batch of records
func (o *TriageOrchestrator) GetSummary(records []*entities.AnalysisRecord) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		if r.HasErrors() {
			s.WithErrors++
		}
		switch r.Kind {
		case entities.ContainerPE:
			s.PE++
		case entities.ContainerELF:
			s.ELF++
		default:
			s.Other++
		}
		if r.Packer.Detected() {
			s.PackedFiles++
		}
	}
	return s
}
