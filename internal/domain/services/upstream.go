package services

import (
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// NewerVersions returns the candidates that are newer than every version the
// recipe declares, oldest first and without duplicates. Candidates that are
// not semantic versions are ignored. A recipe without any semantic version
// has nothing to compare against and yields nil.
func NewerVersions(recipe *entities.ComponentRecipe, candidates []string) []string {
	var newest *semver.Version
	for _, v := range recipe.Source.Versions {
		parsed, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if newest == nil || parsed.GreaterThan(newest) {
			newest = parsed
		}
	}
	if newest == nil {
		return nil
	}

	seen := make(map[string]bool)
	var newer []*semver.Version
	for _, c := range candidates {
		parsed, err := semver.NewVersion(c)
		if err != nil || seen[parsed.String()] || !parsed.GreaterThan(newest) {
			continue
		}
		seen[parsed.String()] = true
		newer = append(newer, parsed)
	}
	slices.SortFunc(newer, func(a, b *semver.Version) int { return a.Compare(b) })

	out := make([]string, len(newer))
	for i, v := range newer {
		out[i] = v.Original()
	}
	return out
}
