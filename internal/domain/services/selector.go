package services

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// Strictness decides what happens when no profile matches the host
type Strictness int

const (
	// Lenient falls back to the no-op profile.
	Lenient Strictness = iota
	// Strict fails with ErrUnsupportedPlatform.
	Strict
)

type platformMatcher struct {
	category entities.PlatformCategory
	match    func(entities.PlatformDescriptor) bool
}

// Most specific first: every Windows architecture also satisfies the
// generic Windows predicate. AIX and unknown families match nothing and
// reach the fallback.
var platformMatchers = []platformMatcher{
	{entities.CategoryWindowsX86, func(p entities.PlatformDescriptor) bool {
		return p.OS == "windows" && slices.Contains([]string{"386", "x86", "i386", "i686"}, p.Arch)
	}},
	{entities.CategoryWindowsX64, func(p entities.PlatformDescriptor) bool {
		return p.OS == "windows" && slices.Contains([]string{"amd64", "x86_64", "x64"}, p.Arch)
	}},
	{entities.CategoryWindows, func(p entities.PlatformDescriptor) bool {
		return p.OS == "windows"
	}},
	{entities.CategoryDarwin, func(p entities.PlatformDescriptor) bool {
		return p.OS == "darwin"
	}},
	{entities.CategoryLinux, func(p entities.PlatformDescriptor) bool {
		return p.OS == "linux"
	}},
	{entities.CategoryOtherUnix, func(p entities.PlatformDescriptor) bool {
		return slices.Contains([]string{"freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos"}, p.OS)
	}},
}

// MatchCategory returns the most specific category whose predicate matches
// and for which the recipe defines a profile
func MatchCategory(recipe *entities.ComponentRecipe, platform entities.PlatformDescriptor) (entities.PlatformCategory, bool) {
	for _, m := range platformMatchers {
		if !m.match(platform) {
			continue
		}
		if _, ok := recipe.Profiles[m.category]; ok {
			return m.category, true
		}
	}
	return entities.CategoryUnsupported, false
}

// SelectProfile picks exactly one profile for platform. When nothing
// matches, Strict returns ErrUnsupportedPlatform and Lenient returns the
// no-op profile.
func SelectProfile(
	recipe *entities.ComponentRecipe,
	platform entities.PlatformDescriptor,
	strictness Strictness,
) (*entities.PlatformProfile, error) {
	category, ok := MatchCategory(recipe, platform)
	if !ok {
		if strictness == Strict {
			return nil, fmt.Errorf("%w: %s has no profile for %s (defined: %v)",
				entities.ErrUnsupportedPlatform, recipe.Name, platform, slices.Sorted(maps.Keys(recipe.Profiles)))
		}
		return entities.NoopProfile(), nil
	}

	profile := recipe.Profiles[category]
	profile.Category = category
	if profile.Mode == "" {
		profile.Mode = entities.ModeAutotools
	}
	profile.Dependencies = slices.Clone(profile.Dependencies)
	profile.ConfigureArgs = slices.Clone(profile.ConfigureArgs)
	profile.InstallCommand = slices.Clone(profile.InstallCommand)
	profile.Cleanup = slices.Clone(profile.Cleanup)
	profile.Env = maps.Clone(profile.Env)
	return &profile, nil
}
