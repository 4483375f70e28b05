package entities

import "time"

// TriageConfig holds everything the analysis needs that is not part of the sample.
// It is built once and passed to constructors.
type TriageConfig struct {
	// SignaturesPath is the packer signature database (PEiD text or YAML)
	SignaturesPath string

	// SignaturesDetachedSig is an optional OpenPGP detached signature over SignaturesPath
	SignaturesDetachedSig string

	// SignaturesKeyring is the public keyring used to check SignaturesDetachedSig
	SignaturesKeyring string

	UPXPath string

	StepTimeout time.Duration
	ToolTimeout time.Duration

	MinStringLength int
	MaxStrings      int
	MaxFileBytes    int64

	// TimeZone is the location PE timestamps are decoded in
	TimeZone *time.Location

	// ELFMinimal disables structural ELF extraction
	ELFMinimal bool

	LogLevel  string
	LogFormat string
}

// DefaultTriageConfig returns the built-in defaults
func DefaultTriageConfig() TriageConfig {
	return TriageConfig{
		UPXPath:         "upx",
		StepTimeout:     30 * time.Second,
		ToolTimeout:     60 * time.Second,
		MinStringLength: DefaultMinStringLength,
		MaxStrings:      200000,
		MaxFileBytes:    256 * 1024 * 1024,
		TimeZone:        time.UTC,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}
