// Package orchestrators coordinates recipe resolution and build execution.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/interfaces/repositories"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// BuildOrchestrator coordinates the complete build workflow of one recipe:
// select a profile, resolve the version, compose the environment, plan and
// execute
type BuildOrchestrator struct {
	recipes  repositories.RecipeRepository
	ledger   repositories.ChecksumLedger
	executor *BuildExecutor
	licenses gateways.LicenseShipper
	packager gateways.Packager
	logger   interfaces.Logger
	config   BuildOrchestratorConfig
}

// BuildOrchestratorConfig holds configuration for the orchestrator
type BuildOrchestratorConfig struct {
	InstallRoot string
	Workers     int
	SourceDir   string // fetched archives
	BuildDir    string // extracted sources
	Strictness  services.Strictness
}

// NewBuildOrchestrator creates a new build orchestrator. ledger, licenses
// and packager are optional.
func NewBuildOrchestrator(
	recipes repositories.RecipeRepository,
	ledger repositories.ChecksumLedger,
	executor *BuildExecutor,
	licenses gateways.LicenseShipper,
	packager gateways.Packager,
	logger interfaces.Logger,
	config BuildOrchestratorConfig,
) *BuildOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &BuildOrchestrator{
		recipes:  recipes,
		ledger:   ledger,
		executor: executor,
		licenses: licenses,
		packager: packager,
		logger:   logger,
		config:   config,
	}
}

// LatestVersion requests the newest version the selected profile declares
const LatestVersion = "latest"

// BuildRequest names what to build and for which host
type BuildRequest struct {
	Recipe   string
	Version  string // empty selects the recipe default, LatestVersion the newest
	Platform entities.PlatformDescriptor
	// PackageDir, when set, receives a tarball of the installation root
	// after a successful build
	PackageDir string
}

// Preparation is everything derived from a request before execution
type Preparation struct {
	Recipe  *entities.ComponentRecipe // specialized for Profile
	Profile *entities.PlatformProfile
	Source  *entities.VersionSourceDescriptor
	Env     entities.Environment
	Plan    *entities.BuildPlan
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	*Preparation
	RunID          string // correlates the run's log lines
	Result         *entities.Result
	LicenseShipped bool
	Package        *PackageInfo
	TotalDuration  time.Duration
}

// PackageInfo describes the tarball produced from the installation root
type PackageInfo struct {
	Path   string
	Digest digest.Digest
}

// Prepare resolves a request into a plan without touching the network or
// the installation root
func (o *BuildOrchestrator) Prepare(ctx context.Context, req BuildRequest) (*Preparation, error) {
	base, err := o.recipes.GetRecipe(ctx, req.Recipe)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}

	profile, err := services.SelectProfile(base, req.Platform, o.config.Strictness)
	if err != nil {
		return nil, err
	}
	recipe := base.Specialize(profile)

	var source *entities.VersionSourceDescriptor
	if req.Version == LatestVersion {
		source, err = services.ResolveLatest(recipe)
	} else {
		source, err = services.Resolve(recipe, req.Version)
	}
	if err != nil {
		return nil, err
	}

	env := services.Compose(recipe.Env, profile, services.TemplateVars{
		InstallDir: o.config.InstallRoot,
		Version:    source.Version,
		Workers:    o.config.Workers,
	})

	plan, err := services.Plan(services.PlanInput{
		Recipe:      recipe,
		Source:      source,
		Profile:     profile,
		Env:         env,
		Platform:    req.Platform,
		InstallRoot: o.config.InstallRoot,
		Workers:     o.config.Workers,
		SourceDir:   o.config.SourceDir,
		BuildDir:    o.config.BuildDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan build: %w", err)
	}

	o.logger.Debug("prepared build",
		interfaces.F("component", recipe.Name),
		interfaces.F("version", source.Version),
		interfaces.F("category", string(profile.Category)),
		interfaces.F("steps", plan.Len()))

	return &Preparation{Recipe: recipe, Profile: profile, Source: source, Env: env, Plan: plan}, nil
}

// Build executes the complete workflow for a recipe. The returned error is
// the run's failure, if any; the result is non-nil whenever preparation
// succeeded.
func (o *BuildOrchestrator) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := time.Now()

	prep, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &BuildResult{Preparation: prep, RunID: uuid.NewString()}

	if prep.Profile.Noop {
		o.logger.Warn("no profile matches platform, nothing to build",
			interfaces.F("component", prep.Recipe.Name),
			interfaces.F("platform", req.Platform.String()))
		result.Result = &entities.Result{
			Component: prep.Recipe.Name,
			Version:   prep.Source.Version,
			Platform:  req.Platform,
			State:     entities.StageDone,
		}
		result.TotalDuration = time.Since(startTime)
		return result, nil
	}

	if err := o.pin(ctx, prep.Source); err != nil {
		return result, err
	}

	o.logger.Info("build started",
		interfaces.F("run_id", result.RunID),
		interfaces.F("component", prep.Recipe.Name),
		interfaces.F("version", prep.Source.Version),
		interfaces.F("category", string(prep.Profile.Category)))

	result.Result = o.executor.Execute(ctx, prep.Plan)
	result.TotalDuration = time.Since(startTime)
	if !result.Result.Succeeded() {
		o.logger.Error("build failed",
			interfaces.F("run_id", result.RunID),
			interfaces.F("stage", string(result.Result.FailedAt)),
			interfaces.F("error", result.Result.Err))
		return result, result.Result.Err
	}

	if o.licenses != nil {
		err := o.licenses.ShipLicense(ctx, o.config.InstallRoot, prep.Recipe.Name, prep.Source.Version, prep.Recipe.License)
		if err != nil {
			o.logger.Warn("failed to ship license",
				interfaces.F("component", prep.Recipe.Name), interfaces.F("error", err))
			result.Result.Warnings = append(result.Result.Warnings, fmt.Errorf("ship license: %w", err))
		} else {
			result.LicenseShipped = true
		}
	}

	if req.PackageDir != "" {
		pkg, err := o.pack(ctx, prep, req)
		if err != nil {
			result.TotalDuration = time.Since(startTime)
			return result, err
		}
		result.Package = pkg
	}

	result.TotalDuration = time.Since(startTime)
	o.logger.Info("build finished",
		interfaces.F("run_id", result.RunID),
		interfaces.F("duration", result.TotalDuration.Round(time.Millisecond).String()))
	return result, nil
}

// pack archives the installation root as
// <component>-<version>-<os>-<arch>.tar.gz in req.PackageDir
func (o *BuildOrchestrator) pack(ctx context.Context, prep *Preparation, req BuildRequest) (*PackageInfo, error) {
	if o.packager == nil {
		return nil, errors.New("packaging requested but no packager is configured")
	}
	name := fmt.Sprintf("%s-%s-%s-%s.tar.gz",
		prep.Recipe.Name, prep.Source.Version, req.Platform.OS, req.Platform.Arch)
	path := filepath.Join(req.PackageDir, name)

	dgst, err := o.packager.Package(ctx, o.config.InstallRoot, path)
	if err != nil {
		return nil, fmt.Errorf("failed to package %s: %w", prep.Recipe.Name, err)
	}
	return &PackageInfo{Path: path, Digest: dgst}, nil
}

// Verify fetches and verifies the source of a request without building it
func (o *BuildOrchestrator) Verify(ctx context.Context, req BuildRequest) (*Preparation, string, error) {
	prep, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if prep.Profile.Noop {
		return prep, "", nil
	}
	if err := o.pin(ctx, prep.Source); err != nil {
		return prep, "", err
	}

	res := o.executor.ExecuteThrough(ctx, prep.Plan, entities.StageFetching)
	if res.Err != nil {
		return prep, "", res.Err
	}
	return prep, filepath.Join(o.config.SourceDir, prep.Source.ArchiveName()), nil
}

func (o *BuildOrchestrator) pin(ctx context.Context, src *entities.VersionSourceDescriptor) error {
	if o.ledger == nil {
		return nil
	}
	if err := o.ledger.Pin(ctx, src); err != nil {
		return fmt.Errorf("checksum ledger: %w", err)
	}
	return nil
}

// Summary returns a human-readable summary of the build
func (r *BuildResult) Summary() string {
	res := r.Result
	if res == nil {
		return "Build not started"
	}
	if !res.Succeeded() {
		return fmt.Sprintf("Build failed at %s (%s): %v", res.FailedAt, res.FailedStep, res.Err)
	}
	if r.Profile.Noop {
		return fmt.Sprintf("Nothing to build: %s has no profile for %s", res.Component, res.Platform)
	}

	summary := fmt.Sprintf(`Build successful!
Run: %s
Component: %s %s
Platform: %s (%s)
Steps: %d
Total: %v`,
		r.RunID,
		res.Component, res.Version,
		res.Platform, r.Profile.Category,
		len(res.Steps),
		r.TotalDuration.Round(time.Millisecond),
	)
	if r.Package != nil {
		summary += fmt.Sprintf("\nPackage: %s (%s)", r.Package.Path, r.Package.Digest)
	}
	for _, w := range res.Warnings {
		summary += fmt.Sprintf("\nWarning: %v", w)
	}
	return summary
}
