package entities

import (
	"encoding/json"
	"time"
)

// Analysis step names used in error descriptors
const (
	StepLoad     = "load"
	StepHash     = "hash"
	StepStrings  = "strings"
	StepClassify = "classify"
	StepFileType = "filetype"
	StepPE       = "pe"
	StepELF      = "elf"
	StepPacker   = "packer"
)

// AnalysisRecord is the aggregate triage result for one artifact.
// At most one of PE and ELF is set, decided by Kind. Encoded records carry
// the fingerprint fields (md5, sha1, sha256, crc32, ssdeep) as top-level keys.
type AnalysisRecord struct {
	ID       string `json:"id" yaml:"id"`
	Filename string `json:"filename" yaml:"filename"`
	Path     string `json:"path" yaml:"path"`
	FileType string `json:"filetype,omitempty" yaml:"filetype,omitempty"`
	FileSize int64  `json:"filesize" yaml:"filesize"`

	Fingerprints *FingerprintSet `json:"-" yaml:"-"`
	Strings      *StringTable    `json:"strings,omitempty" yaml:"strings,omitempty"`
	Kind         ContainerKind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	PE           *PEStructure    `json:"pe_info,omitempty" yaml:"pe_info,omitempty"`
	ELF          *ELFStructure   `json:"elf_info,omitempty" yaml:"elf_info,omitempty"`
	Packer       *PackerMatch    `json:"packer,omitempty" yaml:"packer,omitempty"`

	ContentTruncated bool          `json:"content_truncated,omitempty" yaml:"content_truncated,omitempty"`
	Errors           []StepError   `json:"errors" yaml:"errors"`
	StartedAt        time.Time     `json:"started_at" yaml:"started_at"`
	Duration         time.Duration `json:"duration" yaml:"duration"`
}

// HasErrors reports whether any step failed
func (r *AnalysisRecord) HasErrors() bool {
	return len(r.Errors) > 0
}

// ErrorFor returns the descriptor recorded for step, if any
func (r *AnalysisRecord) ErrorFor(step string) (StepError, bool) {
	for _, e := range r.Errors {
		if e.Step == step {
			return e, true
		}
	}
	return StepError{}, false
}

// recordFields has the fields of AnalysisRecord without its marshal methods
type recordFields AnalysisRecord

// encodedRecord flattens the fingerprints into the record; a nil set adds no keys
type encodedRecord struct {
	recordFields    `yaml:",inline"`
	*FingerprintSet `yaml:",inline"`
}

// MarshalJSON renders the fingerprints at the top level
func (r AnalysisRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodedRecord{recordFields(r), r.Fingerprints})
}

// MarshalYAML renders the fingerprints at the top level
func (r AnalysisRecord) MarshalYAML() (interface{}, error) {
	return encodedRecord{recordFields(r), r.Fingerprints}, nil
}
