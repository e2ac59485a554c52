package services

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// FetchRetry is the retry policy applied to source downloads
var FetchRetry = entities.RetryPolicy{Attempts: 3, Delay: 2 * time.Second}

// PlanInput carries everything the planner needs; it performs no I/O
type PlanInput struct {
	Recipe      *entities.ComponentRecipe // already specialized for Profile
	Source      *entities.VersionSourceDescriptor
	Profile     *entities.PlatformProfile
	Env         entities.Environment
	Platform    entities.PlatformDescriptor
	InstallRoot string
	Workers     int
	SourceDir   string // where fetched archives are stored
	BuildDir    string // where archives are extracted
}

// Plan assembles the ordered steps for one run: fetch, extract, configure,
// compile, install and best-effort cleanup. Configure arguments are the base
// prefix arguments, then the profile's arguments, then the trailing
// arguments shared by every platform.
func Plan(in PlanInput) (*entities.BuildPlan, error) {
	if in.Recipe == nil || in.Source == nil || in.Profile == nil {
		return nil, fmt.Errorf("plan: recipe, source and profile are required")
	}
	if !filepath.IsAbs(in.InstallRoot) {
		return nil, fmt.Errorf("plan: installation root %q must be absolute", in.InstallRoot)
	}

	workers := max(in.Workers, 1)
	vars := TemplateVars{InstallDir: in.InstallRoot, Version: in.Source.Version, Workers: workers}

	header := entities.PlanHeader{
		Component:    in.Recipe.Name,
		Version:      in.Source.Version,
		Platform:     in.Platform,
		Category:     in.Profile.Category,
		InstallRoot:  in.InstallRoot,
		Dependencies: in.Profile.Dependencies,
	}
	if in.Profile.Noop {
		return entities.NewBuildPlan(header, nil)
	}

	archive := filepath.Join(in.SourceDir, in.Source.ArchiveName())
	extractDir := filepath.Join(in.BuildDir, in.Recipe.Name+"-"+in.Source.Version)
	srcDir := filepath.Join(extractDir, filepath.FromSlash(in.Source.ExtractPath))

	steps := []entities.BuildStep{
		{
			Name:    "fetch",
			Stage:   entities.StageFetching,
			Action:  entities.ActionFetch,
			Source:  in.Source,
			Archive: archive,
			Retry:   FetchRetry,
		},
		{
			Name:    "extract",
			Stage:   entities.StageExtracting,
			Action:  entities.ActionExtract,
			Archive: archive,
			WorkDir: extractDir,
		},
	}

	command := func(name string, stage entities.Stage, argv []string) entities.BuildStep {
		return entities.BuildStep{
			Name:    name,
			Stage:   stage,
			Action:  entities.ActionCommand,
			Command: vars.ExpandAll(argv),
			Env:     in.Env,
			WorkDir: srcDir,
		}
	}

	switch in.Profile.Mode {
	case entities.ModePrebuilt:
		if len(in.Profile.InstallCommand) == 0 {
			return nil, fmt.Errorf("plan: %s profile %s is prebuilt but has no install command",
				in.Recipe.Name, in.Profile.Category)
		}
		steps = append(steps, command("install", entities.StageInstalling, in.Profile.InstallCommand))

	case entities.ModeAutotools, "":
		cfg := in.Recipe.Configure
		if len(cfg.Command) == 0 {
			return nil, fmt.Errorf("plan: %s has no configure command", in.Recipe.Name)
		}
		argv := slices.Concat(cfg.Command, cfg.PrefixArgs, in.Profile.ConfigureArgs, cfg.TrailingArgs)
		steps = append(steps, command("configure", entities.StageConfiguring, argv))
		if len(in.Recipe.Compile) > 0 {
			steps = append(steps, command("compile", entities.StageCompiling, in.Recipe.Compile))
		}
		if len(in.Recipe.Install) == 0 {
			return nil, fmt.Errorf("plan: %s has no install command", in.Recipe.Name)
		}
		steps = append(steps, command("install", entities.StageInstalling, in.Recipe.Install))

	default:
		return nil, fmt.Errorf("plan: unknown build mode %q", in.Profile.Mode)
	}

	patterns := slices.Concat(in.Recipe.Cleanup, in.Profile.Cleanup)
	if in.Profile.ReplaceCleanup {
		patterns = in.Profile.Cleanup
	}
	if len(patterns) > 0 {
		steps = append(steps, entities.BuildStep{
			Name:       "cleanup",
			Stage:      entities.StageCleaningUp,
			Action:     entities.ActionRemove,
			Patterns:   vars.ExpandAll(patterns),
			WorkDir:    in.InstallRoot,
			BestEffort: true,
		})
	}

	return entities.NewBuildPlan(header, steps)
}
