// Package yaml provides YAML-based recipe parsing and repository implementations.
package yaml

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// yamlRecipe represents the raw YAML structure
type yamlRecipe struct {
	Name           string                 `yaml:"name"`
	Description    string                 `yaml:"description"`
	License        string                 `yaml:"license"`
	DefaultVersion string                 `yaml:"default_version"`
	Source         yamlSource             `yaml:"source"`
	RelativePath   string                 `yaml:"relative_path"`
	Configure      yamlConfigure          `yaml:"configure"`
	Compile        []string               `yaml:"compile"`
	Install        []string               `yaml:"install"`
	Env            map[string]string      `yaml:"env"`
	Cleanup        []string               `yaml:"cleanup"`
	Profiles       map[string]yamlProfile `yaml:"profiles"`
	Upstream       *yamlUpstream          `yaml:"upstream"`
}

type yamlUpstream struct {
	URL     string `yaml:"url"`
	Pattern string `yaml:"pattern"`
	Exclude string `yaml:"exclude"`
}

type yamlSource struct {
	URL       string         `yaml:"url"`
	Signature *yamlSignature `yaml:"signature"`
	Versions  []yamlVersion  `yaml:"versions"`
}

type yamlSignature struct {
	URL     string `yaml:"url"`
	KeysURL string `yaml:"keys_url"`
}

type yamlVersion struct {
	Version  string `yaml:"version"`
	Checksum string `yaml:"checksum"`
}

type yamlConfigure struct {
	Command      []string `yaml:"command"`
	PrefixArgs   []string `yaml:"prefix_args"`
	TrailingArgs []string `yaml:"trailing_args"`
}

type yamlProfile struct {
	Mode           string            `yaml:"mode"`
	DefaultVersion string            `yaml:"default_version"`
	RelativePath   string            `yaml:"relative_path"`
	Source         *yamlSource       `yaml:"source"`
	Dependencies   []string          `yaml:"dependencies"`
	ConfigureArgs  []string          `yaml:"configure_args"`
	Env            map[string]string `yaml:"env"`
	InstallCommand []string          `yaml:"install_command"`
	Cleanup        []string          `yaml:"cleanup"`
	ReplaceCleanup bool              `yaml:"replace_cleanup"`
}

// RecipeParser parses YAML recipe files
type RecipeParser struct{}

// NewRecipeParser creates a new YAML parser
func NewRecipeParser() *RecipeParser {
	return &RecipeParser{}
}

// ParseFile parses a YAML recipe file into a ComponentRecipe entity
func (p *RecipeParser) ParseFile(filePath string) (*entities.ComponentRecipe, error) {
	//nolint:gosec // G304: filePath is recipe definition path from repository
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a validated ComponentRecipe entity
func (p *RecipeParser) Parse(data []byte) (*entities.ComponentRecipe, error) {
	var yamlDef yamlRecipe
	if err := yaml.Unmarshal(data, &yamlDef); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if yamlDef.Name == "" {
		return nil, fmt.Errorf("recipe must have a name")
	}

	source, err := convertSource(yamlDef.Source)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", yamlDef.Name, err)
	}

	profiles := make(map[entities.PlatformCategory]entities.PlatformProfile, len(yamlDef.Profiles))
	for name, yp := range yamlDef.Profiles {
		category, err := entities.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", yamlDef.Name, err)
		}
		profile, err := convertProfile(category, yp)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: profile %s: %w", yamlDef.Name, name, err)
		}
		profiles[category] = profile
	}

	// Convert to domain entity
	def := &entities.ComponentRecipe{
		Name:           yamlDef.Name,
		Description:    yamlDef.Description,
		License:        yamlDef.License,
		DefaultVersion: yamlDef.DefaultVersion,
		Source:         source,
		RelativePath:   yamlDef.RelativePath,
		Configure: entities.ConfigureSpec{
			Command:      yamlDef.Configure.Command,
			PrefixArgs:   yamlDef.Configure.PrefixArgs,
			TrailingArgs: yamlDef.Configure.TrailingArgs,
		},
		Compile:  yamlDef.Compile,
		Install:  yamlDef.Install,
		Env:      yamlDef.Env,
		Cleanup:  yamlDef.Cleanup,
		Profiles: profiles,
	}
	if u := yamlDef.Upstream; u != nil {
		def.Upstream = &entities.UpstreamSpec{URL: u.URL, Pattern: u.Pattern, Exclude: u.Exclude}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func convertSource(ys yamlSource) (entities.SourceSpec, error) {
	spec := entities.SourceSpec{URL: ys.URL}
	if ys.Signature != nil {
		spec.Signature = &entities.SignatureSpec{
			URL:     ys.Signature.URL,
			KeysURL: ys.Signature.KeysURL,
		}
	}

	for _, yv := range ys.Versions {
		checksum, err := parseChecksum(yv.Checksum)
		if err != nil {
			return entities.SourceSpec{}, fmt.Errorf("version %s: %w", yv.Version, err)
		}
		spec.Versions = append(spec.Versions, entities.VersionChecksum{
			Version:  yv.Version,
			Checksum: checksum,
		})
	}
	return spec, nil
}

func convertProfile(category entities.PlatformCategory, yp yamlProfile) (entities.PlatformProfile, error) {
	profile := entities.PlatformProfile{
		Category:       category,
		Mode:           entities.BuildMode(yp.Mode),
		DefaultVersion: yp.DefaultVersion,
		RelativePath:   yp.RelativePath,
		Dependencies:   yp.Dependencies,
		ConfigureArgs:  yp.ConfigureArgs,
		Env:            yp.Env,
		InstallCommand: yp.InstallCommand,
		Cleanup:        yp.Cleanup,
		ReplaceCleanup: yp.ReplaceCleanup,
	}

	switch profile.Mode {
	case "":
		profile.Mode = entities.ModeAutotools
	case entities.ModeAutotools, entities.ModePrebuilt:
	default:
		return profile, fmt.Errorf("unknown mode %q", yp.Mode)
	}

	if yp.Source != nil {
		source, err := convertSource(*yp.Source)
		if err != nil {
			return profile, err
		}
		profile.Source = &source
	}
	return profile, nil
}

// parseChecksum accepts "algorithm:hex" or a bare hex string, which is
// taken as sha256
func parseChecksum(s string) (digest.Digest, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", fmt.Errorf("checksum is required")
	}
	if !strings.Contains(s, ":") {
		s = digest.SHA256.String() + ":" + s
	}
	d, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	return d, nil
}
