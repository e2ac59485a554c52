package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
	"github.com/ochairo/cauldron/internal/domain/interfaces/repositories"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// UpstreamOrchestrator compares the versions recipes declare with the
// versions their upstreams announce
type UpstreamOrchestrator struct {
	recipes repositories.RecipeRepository
	lister  gateways.UpstreamVersionLister
	logger  interfaces.Logger
}

// NewUpstreamOrchestrator creates a new upstream orchestrator
func NewUpstreamOrchestrator(
	recipes repositories.RecipeRepository,
	lister gateways.UpstreamVersionLister,
	logger interfaces.Logger,
) *UpstreamOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &UpstreamOrchestrator{recipes: recipes, lister: lister, logger: logger}
}

// UpstreamReport is the outcome of checking one recipe
type UpstreamReport struct {
	Recipe   string
	Declared string   // newest declared version
	Newer    []string // upstream versions newer than Declared, oldest first
	Skipped  bool     // the recipe declares no upstream
	Err      error
	Duration time.Duration
}

// Outdated reports whether upstream announces something newer
func (r UpstreamReport) Outdated() bool {
	return len(r.Newer) > 0
}

// Check checks the named recipes, or every recipe when names is empty.
// A failing upstream is recorded in its report and does not stop the others;
// the returned error only covers loading recipes.
func (o *UpstreamOrchestrator) Check(ctx context.Context, names ...string) ([]UpstreamReport, error) {
	recipes, err := o.load(ctx, names)
	if err != nil {
		return nil, err
	}

	reports := make([]UpstreamReport, 0, len(recipes))
	for _, recipe := range recipes {
		start := time.Now()
		report := UpstreamReport{Recipe: recipe.Name}
		if sorted := services.SortedVersions(recipe); len(sorted) > 0 {
			report.Declared = sorted[len(sorted)-1]
		}

		if recipe.Upstream == nil {
			report.Skipped = true
			reports = append(reports, report)
			continue
		}

		versions, err := o.lister.ListVersions(ctx, *recipe.Upstream)
		if err != nil {
			o.logger.Warn("upstream check failed",
				interfaces.F("recipe", recipe.Name), interfaces.F("error", err))
			report.Err = fmt.Errorf("check %s upstream: %w", recipe.Name, err)
		} else {
			report.Newer = services.NewerVersions(recipe, versions)
		}
		report.Duration = time.Since(start)

		o.logger.Info("checked upstream",
			interfaces.F("recipe", recipe.Name),
			interfaces.F("declared", report.Declared),
			interfaces.F("newer", len(report.Newer)))
		reports = append(reports, report)
	}
	return reports, nil
}

func (o *UpstreamOrchestrator) load(ctx context.Context, names []string) ([]*entities.ComponentRecipe, error) {
	if len(names) == 0 {
		return o.recipes.ListRecipes(ctx)
	}
	out := make([]*entities.ComponentRecipe, 0, len(names))
	for _, name := range names {
		recipe, err := o.recipes.GetRecipe(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipe: %w", err)
		}
		out = append(out, recipe)
	}
	return out, nil
}
