package services

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// Resolve looks up the source descriptor for version. An empty version
// selects the recipe default. No I/O is performed.
func Resolve(recipe *entities.ComponentRecipe, version string) (*entities.VersionSourceDescriptor, error) {
	if version == "" {
		version = recipe.DefaultVersion
	}

	checksum, ok := recipe.Source.Checksum(version)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q (declared: %v)",
			entities.ErrUnknownVersion, recipe.Name, version, recipe.Source.VersionNames())
	}

	vars := TemplateVars{Version: version}
	desc := &entities.VersionSourceDescriptor{
		Component:   recipe.Name,
		Version:     version,
		URL:         vars.Expand(recipe.Source.URL),
		Checksum:    checksum.Encoded(),
		Algorithm:   checksum.Algorithm(),
		ExtractPath: vars.Expand(recipe.RelativePath),
	}
	if sig := recipe.Source.Signature; sig != nil {
		desc.SignatureURL = vars.Expand(sig.URL)
		desc.KeysURL = sig.KeysURL
	}
	return desc, nil
}

// SortedVersions returns the declared versions ordered from oldest to newest.
// Versions that are not valid semantic versions sort first, in declaration order.
func SortedVersions(recipe *entities.ComponentRecipe) []string {
	type entry struct {
		raw    string
		parsed *semver.Version
	}

	entries := make([]entry, 0, len(recipe.Source.Versions))
	for _, v := range recipe.Source.Versions {
		parsed, err := semver.NewVersion(v.Version)
		if err != nil {
			parsed = nil
		}
		entries = append(entries, entry{raw: v.Version, parsed: parsed})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].parsed, entries[j].parsed
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.LessThan(b)
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out
}

// ResolveLatest resolves the newest declared version
func ResolveLatest(recipe *entities.ComponentRecipe) (*entities.VersionSourceDescriptor, error) {
	versions := SortedVersions(recipe)
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s declares no versions", entities.ErrUnknownVersion, recipe.Name)
	}
	return Resolve(recipe, versions[len(versions)-1])
}
