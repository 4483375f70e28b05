package orchestrators

import (
	"context"
	"fmt"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// Comparison is the similarity of two artifacts
type Comparison struct {
	Left      *entities.FingerprintSet `json:"left" yaml:"left"`
	Right     *entities.FingerprintSet `json:"right" yaml:"right"`
	Identical bool                     `json:"identical" yaml:"identical"`

	// Score is the ssdeep match score (0-100); absent when either side has no fuzzy hash
	Score entities.Optional[int] `json:"score" yaml:"score"`
}

// Compare fingerprints two files and scores their fuzzy-hash similarity
func (o *TriageOrchestrator) Compare(ctx context.Context, leftPath, rightPath string) (*Comparison, error) {
	left, err := o.fingerprintFile(ctx, leftPath)
	if err != nil {
		return nil, err
	}
	right, err := o.fingerprintFile(ctx, rightPath)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		Left:      left,
		Right:     right,
		Identical: left.SHA256 == right.SHA256,
	}

	a, okA := left.SSDeep.Get()
	b, okB := right.SSDeep.Get()
	if !okA || !okB {
		return cmp, nil
	}
	score, err := o.triageService.CompareFuzzy(a, b)
	if err != nil {
		return nil, err
	}
	cmp.Score = entities.Some(score)
	return cmp, nil
}

func (o *TriageOrchestrator) fingerprintFile(ctx context.Context, path string) (*entities.FingerprintSet, error) {
	loaded := o.triageService.LoadArtifact(ctx, path)
	if loaded.Failed() {
		return nil, fmt.Errorf("failed to load %s: %w", path, loaded.Err)
	}
	hashed := o.triageService.Fingerprint(ctx, loaded.Value)
	if hashed.Failed() {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", path, hashed.Err)
	}
	return hashed.Value, nil
}
