package main

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/ochairo/cauldron/internal/config"
	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// ListCmd lists the available recipes
type ListCmd struct{}

// Run executes the list command
func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, out *output) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}

	defs, err := a.recipes.ListRecipes(ctx)
	if err != nil {
		return err
	}

	out.printf("Available recipes (%d total):\n\n", len(defs))
	for _, def := range defs {
		out.printf("  %-20s %s\n", def.Name, def.Description)
		out.printf("  %-20s License: %s\n", "", def.License)
		out.printf("  %-20s Default version: %s\n", "", def.DefaultVersion)
		out.printf("  %-20s Platforms: %s\n", "", strings.Join(categories(def), ", "))
		out.printf("\n")
	}
	return nil
}

// VersionsCmd lists the versions a recipe declares
type VersionsCmd struct {
	Recipe string `arg:"" help:"Recipe name (e.g. python3)."`
}

// Run executes the versions command
func (c *VersionsCmd) Run(ctx context.Context, cfg *config.Config, out *output) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}

	def, err := a.recipes.GetRecipe(ctx, c.Recipe)
	if err != nil {
		return err
	}

	out.printf("%s:\n", def.Name)
	printVersions(out, def, "")

	for _, category := range categories(def) {
		profile := def.Profiles[entities.PlatformCategory(category)]
		if profile.Source == nil && profile.DefaultVersion == "" {
			continue
		}
		out.printf("\n%s (%s):\n", def.Name, category)
		printVersions(out, def.Specialize(&profile), "  ")
	}
	return nil
}

func printVersions(out *output, def *entities.ComponentRecipe, indent string) {
	for _, v := range slices.Backward(services.SortedVersions(def)) {
		marker := " "
		if v == def.DefaultVersion {
			marker = "*"
		}
		checksum, _ := def.Source.Checksum(v)
		out.printf("%s%s %-10s %s\n", indent, marker, v, checksum)
	}
}

func categories(def *entities.ComponentRecipe) []string {
	out := make([]string, 0, len(def.Profiles))
	for _, c := range slices.Sorted(maps.Keys(def.Profiles)) {
		out = append(out, string(c))
	}
	return out
}
