// Package entities defines core domain models and data structures.
package entities

import (
	_ "crypto/sha256" // registers digest.SHA256
	_ "crypto/sha512" // registers digest.SHA384 and digest.SHA512
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/opencontainers/go-digest"
)

// ComponentRecipe is the static description of how to build one component.
// Recipes are loaded once at process start and never mutated; per-platform
// variants are derived with Specialize.
type ComponentRecipe struct {
	Name           string
	Description    string
	License        string
	DefaultVersion string
	Source         SourceSpec
	RelativePath   string // e.g. "Python-{version}"
	Configure      ConfigureSpec
	Compile        []string // argv template, e.g. ["make", "-j", "{workers}"]
	Install        []string // argv template, e.g. ["make", "install"]
	Env            map[string]string
	Cleanup        []string // glob templates relative to the installation root
	Profiles       map[PlatformCategory]PlatformProfile
	Upstream       *UpstreamSpec
}

// UpstreamSpec tells where newer releases of a component are announced.
// Pattern is matched against the page at URL; its first capture group (or the
// whole match) is a version. Matches that also match Exclude are ignored.
type UpstreamSpec struct {
	URL     string
	Pattern string
	Exclude string
}

// SourceSpec describes where a version's sources come from
type SourceSpec struct {
	URL       string // template, "{version}" is substituted
	Versions  []VersionChecksum
	Signature *SignatureSpec
}

// VersionChecksum binds one published version to its content digest
type VersionChecksum struct {
	Version  string
	Checksum digest.Digest
}

// SignatureSpec describes an optional detached OpenPGP signature
type SignatureSpec struct {
	URL     string // template, "{version}" is substituted
	KeysURL string
}

// ConfigureSpec is the base configure invocation shared by all platforms.
// Platform-specific arguments are inserted between PrefixArgs and TrailingArgs.
type ConfigureSpec struct {
	Command      []string
	PrefixArgs   []string
	TrailingArgs []string
}

// Checksum returns the digest declared for version
func (s SourceSpec) Checksum(version string) (digest.Digest, bool) {
	for _, v := range s.Versions {
		if v.Version == version {
			return v.Checksum, true
		}
	}
	return "", false
}

// VersionNames returns the declared versions in declaration order
func (s SourceSpec) VersionNames() []string {
	names := make([]string, 0, len(s.Versions))
	for _, v := range s.Versions {
		names = append(names, v.Version)
	}
	return names
}

// Specialize returns a copy of the recipe with the profile's source and
// default-version overrides applied. The receiver is not modified.
func (r *ComponentRecipe) Specialize(profile *PlatformProfile) *ComponentRecipe {
	out := *r
	out.Source.Versions = slices.Clone(r.Source.Versions)
	out.Env = maps.Clone(r.Env)
	out.Cleanup = slices.Clone(r.Cleanup)
	if profile == nil {
		return &out
	}

	if profile.Source != nil {
		out.Source = SourceSpec{
			URL:       profile.Source.URL,
			Versions:  slices.Clone(profile.Source.Versions),
			Signature: profile.Source.Signature,
		}
	}
	if profile.DefaultVersion != "" {
		out.DefaultVersion = profile.DefaultVersion
	}
	if profile.RelativePath != "" {
		out.RelativePath = profile.RelativePath
	}
	return &out
}

// Validate checks that every version carries a well-formed checksum and is
// declared once, that the default version is declared, that upstream
// patterns compile, and that distinct platform categories do not share an
// identical configure-flag set.
func (r *ComponentRecipe) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: recipe must have a name", ErrInvalidRecipe)
	}
	if err := validateSource(r.Name, "", r.Source, r.DefaultVersion); err != nil {
		return err
	}

	for _, category := range slices.Sorted(maps.Keys(r.Profiles)) {
		profile := r.Profiles[category]
		if profile.Source == nil {
			if profile.DefaultVersion != "" {
				if _, ok := r.Source.Checksum(profile.DefaultVersion); !ok {
					return fmt.Errorf("%w: %s profile %s: default version %s is not declared",
						ErrInvalidRecipe, r.Name, category, profile.DefaultVersion)
				}
			}
			continue
		}
		defaultVersion := profile.DefaultVersion
		if defaultVersion == "" {
			defaultVersion = r.DefaultVersion
		}
		if err := validateSource(r.Name, category, *profile.Source, defaultVersion); err != nil {
			return err
		}
	}

	if err := r.validateUpstream(); err != nil {
		return err
	}
	return r.validateDistinctFlags()
}

func (r *ComponentRecipe) validateUpstream() error {
	u := r.Upstream
	if u == nil {
		return nil
	}
	if u.URL == "" || u.Pattern == "" {
		return fmt.Errorf("%w: %s: upstream needs both url and pattern", ErrInvalidRecipe, r.Name)
	}
	if _, err := regexp.Compile(u.Pattern); err != nil {
		return fmt.Errorf("%w: %s: upstream pattern: %w", ErrInvalidRecipe, r.Name, err)
	}
	if u.Exclude != "" {
		if _, err := regexp.Compile(u.Exclude); err != nil {
			return fmt.Errorf("%w: %s: upstream exclude: %w", ErrInvalidRecipe, r.Name, err)
		}
	}
	return nil
}

func validateSource(name string, category PlatformCategory, src SourceSpec, defaultVersion string) error {
	where := name
	if category != "" {
		where = fmt.Sprintf("%s profile %s", name, category)
	}

	if src.URL == "" {
		return fmt.Errorf("%w: %s: source url is required", ErrInvalidRecipe, where)
	}
	if len(src.Versions) == 0 {
		return fmt.Errorf("%w: %s: at least one version is required", ErrInvalidRecipe, where)
	}

	seen := make(map[string]digest.Digest, len(src.Versions))
	for _, v := range src.Versions {
		if v.Version == "" {
			return fmt.Errorf("%w: %s: empty version string", ErrInvalidRecipe, where)
		}
		if err := v.Checksum.Validate(); err != nil {
			return fmt.Errorf("%w: %s: version %s: %w", ErrInvalidRecipe, where, v.Version, err)
		}
		if prev, ok := seen[v.Version]; ok {
			if prev != v.Checksum {
				return fmt.Errorf("%w: %s: version %s declared with %s and %s",
					ErrChecksumConflict, where, v.Version, prev, v.Checksum)
			}
			return fmt.Errorf("%w: %s: version %s declared twice", ErrInvalidRecipe, where, v.Version)
		}
		seen[v.Version] = v.Checksum
	}

	if defaultVersion == "" {
		return fmt.Errorf("%w: %s: default version is required", ErrInvalidRecipe, where)
	}
	if _, ok := seen[defaultVersion]; !ok {
		return fmt.Errorf("%w: %s: default version %s is not declared", ErrInvalidRecipe, where, defaultVersion)
	}
	return nil
}

func (r *ComponentRecipe) validateDistinctFlags() error {
	owners := make(map[string]PlatformCategory)
	for _, category := range slices.Sorted(maps.Keys(r.Profiles)) {
		args := r.Profiles[category].ConfigureArgs
		if len(args) == 0 {
			continue
		}
		key := fmt.Sprintf("%q", slices.Sorted(slices.Values(args)))
		if other, ok := owners[key]; ok {
			return fmt.Errorf("%w: %s: profiles %s and %s share configure flags %v",
				ErrInvalidRecipe, r.Name, other, category, args)
		}
		owners[key] = category
	}
	return nil
}
