package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/specimen/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/specimen/internal/domain-orchestrators"
	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
	"github.com/ochairo/specimen/internal/domain/services"
	"github.com/ochairo/specimen/internal/external-adapters/logrus"
	"github.com/ochairo/specimen/internal/external-adapters/sigdb"
	"github.com/ochairo/specimen/internal/external-adapters/yaml"
)

// app holds the wired layers for one command invocation
type app struct {
	config       entities.TriageConfig
	logger       interfaces.Logger
	signatures   *sigdb.Repository
	orchestrator *orchestrators.TriageOrchestrator
}

// loadConfig layers defaults, the --config file and explicitly set flags
func loadConfig(cmd *cobra.Command) (entities.TriageConfig, error) {
	cfg := entities.DefaultTriageConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		parsed, err := yaml.NewConfigParser().ParseFile(path, cfg)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = parsed
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Lookup("signatures") != nil && flags.Changed("signatures") {
		cfg.SignaturesPath, _ = flags.GetString("signatures")
	}
	if flags.Lookup("signatures-sig") != nil && flags.Changed("signatures-sig") {
		cfg.SignaturesDetachedSig, _ = flags.GetString("signatures-sig")
	}
	if flags.Lookup("keyring") != nil && flags.Changed("keyring") {
		cfg.SignaturesKeyring, _ = flags.GetString("keyring")
	}
	if flags.Lookup("upx") != nil && flags.Changed("upx") {
		cfg.UPXPath, _ = flags.GetString("upx")
	}
	if flags.Lookup("min-length") != nil && flags.Changed("min-length") {
		cfg.MinStringLength, _ = flags.GetInt("min-length")
		if cfg.MinStringLength < 1 {
			return cfg, fmt.Errorf("--min-length must be at least 1")
		}
	}
	if flags.Lookup("max-file-bytes") != nil && flags.Changed("max-file-bytes") {
		cfg.MaxFileBytes, _ = flags.GetInt64("max-file-bytes")
	}
	if flags.Lookup("step-timeout") != nil && flags.Changed("step-timeout") {
		cfg.StepTimeout, _ = flags.GetDuration("step-timeout")
	}

	return cfg, nil
}

// newApp builds every layer following Clean Architecture
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logrus.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	// Layer 1: Infrastructure
	triageGateway := gateways.NewCompositeTriageGateway(cfg, logger)
	signatures := sigdb.NewRepository(cfg, logger)

	// Layer 2: Business logic
	triageService := services.NewTriageService(triageGateway, signatures, cfg, logger)

	// Layer 3: Use case
	return &app{
		config:       cfg,
		logger:       logger,
		signatures:   signatures,
		orchestrator: orchestrators.NewTriageOrchestrator(triageService, logger),
	}, nil
}
