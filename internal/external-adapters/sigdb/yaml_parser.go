package sigdb

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// yamlDatabase represents the raw YAML structure
type yamlDatabase struct {
	Signatures []yamlSignature `yaml:"signatures"`
}

type yamlSignature struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	EPOnly  *bool  `yaml:"ep_only"`
}

// YAMLParser parses signature databases written as YAML
type YAMLParser struct{}

// NewYAMLParser creates a new YAML signature parser
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse parses YAML bytes into a SignatureDatabase. ep_only defaults to true.
func (p *YAMLParser) Parse(data []byte, source string) (*entities.SignatureDatabase, error) {
	var raw yamlDatabase
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	db := &entities.SignatureDatabase{Source: source}
	for i, s := range raw.Signatures {
		if s.Name == "" {
			return nil, fmt.Errorf("signature %d must have a name", i)
		}
		pattern, wildcard, err := ParsePattern(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", s.Name, err)
		}
		epOnly := true
		if s.EPOnly != nil {
			epOnly = *s.EPOnly
		}
		db.Signatures = append(db.Signatures, entities.PackerSignature{
			Name:     s.Name,
			Pattern:  pattern,
			Wildcard: wildcard,
			EPOnly:   epOnly,
		})
	}
	return db, nil
}
