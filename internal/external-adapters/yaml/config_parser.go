// Package yaml provides YAML-based configuration parsing.
package yaml

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// yamlConfig represents the raw YAML structure
type yamlConfig struct {
	Signatures yamlSignatures `yaml:"signatures"`
	Tools      yamlTools      `yaml:"tools"`
	Timeouts   yamlTimeouts   `yaml:"timeouts"`
	Strings    yamlStrings    `yaml:"strings"`
	Limits     yamlLimits     `yaml:"limits"`
	TimeZone   string         `yaml:"time_zone"`
	ELF        yamlELF        `yaml:"elf"`
	Log        yamlLog        `yaml:"log"`
}

type yamlSignatures struct {
	Path              string `yaml:"path"`
	DetachedSignature string `yaml:"detached_signature"`
	Keyring           string `yaml:"keyring"`
}

type yamlTools struct {
	UPX string `yaml:"upx"`
}

type yamlTimeouts struct {
	Step string `yaml:"step"`
	Tool string `yaml:"tool"`
}

type yamlStrings struct {
	MinLength  *int `yaml:"min_length"`
	MaxStrings *int `yaml:"max_strings"`
}

type yamlLimits struct {
	MaxFileBytes *int64 `yaml:"max_file_bytes"`
}

type yamlELF struct {
	Minimal bool `yaml:"minimal"`
}

type yamlLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigParser parses YAML configuration files
type ConfigParser struct{}

// NewConfigParser creates a new YAML config parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// ParseFile parses a YAML config file on top of base
func (p *ConfigParser) ParseFile(filePath string, base entities.TriageConfig) (entities.TriageConfig, error) {
	//nolint:gosec // G304: filePath is the config path given on the command line
	data, err := os.ReadFile(filePath)
	if err != nil {
		return base, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data, base)
}

// Parse parses YAML bytes on top of base; keys that are not set keep the base value
func (p *ConfigParser) Parse(data []byte, base entities.TriageConfig) (entities.TriageConfig, error) {
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return base, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := base
	setString(&cfg.SignaturesPath, raw.Signatures.Path)
	setString(&cfg.SignaturesDetachedSig, raw.Signatures.DetachedSignature)
	setString(&cfg.SignaturesKeyring, raw.Signatures.Keyring)
	setString(&cfg.UPXPath, raw.Tools.UPX)
	setString(&cfg.LogLevel, raw.Log.Level)
	setString(&cfg.LogFormat, raw.Log.Format)
	cfg.ELFMinimal = cfg.ELFMinimal || raw.ELF.Minimal

	var err error
	if cfg.StepTimeout, err = parseDuration("timeouts.step", raw.Timeouts.Step, cfg.StepTimeout); err != nil {
		return base, err
	}
	if cfg.ToolTimeout, err = parseDuration("timeouts.tool", raw.Timeouts.Tool, cfg.ToolTimeout); err != nil {
		return base, err
	}

	if raw.Strings.MinLength != nil {
		if *raw.Strings.MinLength < 1 {
			return base, fmt.Errorf("strings.min_length must be at least 1")
		}
		cfg.MinStringLength = *raw.Strings.MinLength
	}
	if raw.Strings.MaxStrings != nil {
		cfg.MaxStrings = *raw.Strings.MaxStrings
	}
	if raw.Limits.MaxFileBytes != nil {
		if *raw.Limits.MaxFileBytes < 0 {
			return base, fmt.Errorf("limits.max_file_bytes must not be negative")
		}
		cfg.MaxFileBytes = *raw.Limits.MaxFileBytes
	}

	if raw.TimeZone != "" {
		loc, err := time.LoadLocation(raw.TimeZone)
		if err != nil {
			return base, fmt.Errorf("invalid time_zone %q: %w", raw.TimeZone, err)
		}
		cfg.TimeZone = loc
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseDuration(key, v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return fallback, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
