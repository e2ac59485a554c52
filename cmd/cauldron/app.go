package main

import (
	"fmt"

	"github.com/ochairo/cauldron/internal/config"
	"github.com/ochairo/cauldron/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/cauldron/internal/domain-orchestrators"
	domaingateways "github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
	"github.com/ochairo/cauldron/internal/external-adapters/yaml"
	"github.com/ochairo/cauldron/internal/logging"
	"github.com/ochairo/cauldron/recipes"
)

// app is the wired object graph shared by the commands
type app struct {
	cfg          *config.Config
	logger       interfaces.Logger
	recipes      *yaml.RecipeRepository
	orchestrator *orchestrators.BuildOrchestrator
	upstream     *orchestrators.UpstreamOrchestrator
}

func newApp(cfg *config.Config, out *output) (*app, error) {
	slogger, err := logging.New(cfg.LogLevel, cfg.LogFormat, out.stderr)
	if err != nil {
		return nil, err
	}
	logger := interfaces.NewSlogLogger(slogger)

	var repo *yaml.RecipeRepository
	if cfg.RecipesDir != "" {
		repo = yaml.NewDirRecipeRepository(cfg.RecipesDir, logger)
	} else {
		repo = yaml.NewRecipeRepository(recipes.FS, logger)
	}

	verifier := gateways.NewChecksumVerifier()
	downloader := gateways.NewDownloader(verifier, logger, gateways.WithS3(gateways.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    !cfg.S3.Insecure,
	}))

	var signatures domaingateways.SignatureVerifier
	if cfg.VerifySignatures {
		keys := gpg.NewVerifier()
		if cfg.Keyring != "" {
			if err := keys.ImportKeyFromFile(cfg.Keyring); err != nil {
				return nil, fmt.Errorf("keyring %s: %w", cfg.Keyring, err)
			}
			logger.Debug("trusted keyring loaded", interfaces.F("path", cfg.Keyring), interfaces.F("keys", keys.KeyCount()))
		}
		signatures = gateways.NewGPGVerifier(keys)
	}

	executor := orchestrators.NewBuildExecutor(
		downloader,
		gateways.NewArchiveExtractor(logger),
		gateways.NewCommandExecutor(logger),
		gateways.NewArtifactRemover(logger),
		signatures,
		logger,
		orchestrators.BuildExecutorConfig{
			VerifySignatures: cfg.VerifySignatures,
			CommandTimeout:   cfg.CommandTimeout,
		},
	)

	orch := orchestrators.NewBuildOrchestrator(
		repo,
		yaml.NewChecksumLedger(cfg.LedgerPath()),
		executor,
		yaml.NewLicenseManifest(),
		gateways.NewPackager(logger),
		logger,
		orchestrators.BuildOrchestratorConfig{
			InstallRoot: cfg.InstallRoot,
			Workers:     cfg.Workers,
			SourceDir:   cfg.SourceDir(),
			BuildDir:    cfg.BuildDir,
			Strictness:  cfg.Strictness(),
		},
	)

	upstream := orchestrators.NewUpstreamOrchestrator(repo, gateways.NewVersionFetcher(logger), logger)

	return &app{cfg: cfg, logger: logger, recipes: repo, orchestrator: orch, upstream: upstream}, nil
}

func (a *app) request(recipe, version string) (orchestrators.BuildRequest, error) {
	platform, err := a.cfg.TargetPlatform()
	if err != nil {
		return orchestrators.BuildRequest{}, err
	}
	return orchestrators.BuildRequest{Recipe: recipe, Version: version, Platform: platform}, nil
}
