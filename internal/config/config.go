// Package config holds the settings shared by every cauldron command.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/services"
)

// Name used for directory and file naming.
const Name = "cauldron"

// Config is populated from flags and CAULDRON_* environment variables.
// Defaults reference the variables returned by Vars.
type Config struct {
	InstallRoot string `name:"install-root" env:"CAULDRON_INSTALL_ROOT" default:"${install_root}" help:"Installation root the component is installed into." placeholder:"DIR"`
	Workers     int    `name:"workers" short:"j" env:"CAULDRON_WORKERS" default:"${workers}" help:"Parallel compile jobs."`
	Platform    string `name:"platform" env:"CAULDRON_PLATFORM" help:"Target platform as os/arch[/libc]; detected when empty." placeholder:"OS/ARCH"`
	Strict      bool   `name:"strict" env:"CAULDRON_STRICT" help:"Fail when no profile matches the platform instead of doing nothing."`

	CacheDir   string `name:"cache-dir" env:"CAULDRON_CACHE_DIR" default:"${cache_dir}" help:"Directory for fetched source archives." placeholder:"DIR"`
	BuildDir   string `name:"build-dir" env:"CAULDRON_BUILD_DIR" default:"${build_dir}" help:"Directory sources are extracted and built in." placeholder:"DIR"`
	StateDir   string `name:"state-dir" env:"CAULDRON_STATE_DIR" default:"${state_dir}" help:"Directory for the checksum ledger." placeholder:"DIR"`
	RecipesDir string `name:"recipes-dir" env:"CAULDRON_RECIPES_DIR" help:"Read recipes from this directory instead of the bundled set." placeholder:"DIR"`

	VerifySignatures bool          `name:"verify-signatures" env:"CAULDRON_VERIFY_SIGNATURES" help:"Check detached OpenPGP signatures for sources that publish one."`
	Keyring          string        `name:"keyring" env:"CAULDRON_KEYRING" type:"path" help:"Local OpenPGP keyring trusted in addition to the recipe's keys URL." placeholder:"FILE"`
	CommandTimeout   time.Duration `name:"command-timeout" env:"CAULDRON_COMMAND_TIMEOUT" default:"2h" help:"Upper bound for a single build command."`

	LogLevel  string `name:"log-level" env:"CAULDRON_LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level (${enum})."`
	LogFormat string `name:"log-format" env:"CAULDRON_LOG_FORMAT" default:"text" enum:"text,json" help:"Log format (${enum})."`

	S3 S3Config `embed:"" prefix:"s3-" envprefix:"CAULDRON_S3_" group:"S3 mirrors"`
}

// S3Config configures access to s3:// source mirrors
type S3Config struct {
	Endpoint  string `name:"endpoint" env:"ENDPOINT" default:"s3.amazonaws.com" help:"Object store endpoint."`
	Region    string `name:"region" env:"REGION" help:"Object store region."`
	AccessKey string `name:"access-key" env:"ACCESS_KEY" help:"Access key; AWS_* and MINIO_* variables are used when empty."`
	SecretKey string `name:"secret-key" env:"SECRET_KEY" help:"Secret key."`
	Insecure  bool   `name:"insecure" env:"INSECURE" help:"Use plain HTTP."`
}

// Vars returns the interpolation variables for Config defaults
func Vars() map[string]string {
	return map[string]string{
		"install_root": filepath.Join(xdg.DataHome, Name, "install"),
		"workers":      strconv.Itoa(runtime.NumCPU()),
		"cache_dir":    filepath.Join(xdg.CacheHome, Name),
		"build_dir":    filepath.Join(xdg.CacheHome, Name, "build"),
		"state_dir":    filepath.Join(xdg.StateHome, Name),
	}
}

// Default returns a Config with every default applied
func Default() Config {
	vars := Vars()
	workers, _ := strconv.Atoi(vars["workers"])
	return Config{
		InstallRoot:    vars["install_root"],
		Workers:        workers,
		CacheDir:       vars["cache_dir"],
		BuildDir:       vars["build_dir"],
		StateDir:       vars["state_dir"],
		CommandTimeout: 2 * time.Hour,
		LogLevel:       "info",
		LogFormat:      "text",
		S3:             S3Config{Endpoint: "s3.amazonaws.com"},
	}
}

// Validate checks the settings that flags alone cannot enforce
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.InstallRoot) {
		return fmt.Errorf("install root %q must be an absolute path", c.InstallRoot)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command timeout must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Keyring != "" && !c.VerifySignatures {
		return fmt.Errorf("a keyring is only used with --verify-signatures")
	}
	if c.Platform != "" {
		if _, err := entities.ParsePlatform(c.Platform); err != nil {
			return err
		}
	}
	return nil
}

// TargetPlatform returns the configured platform or the detected host
func (c *Config) TargetPlatform() (entities.PlatformDescriptor, error) {
	if c.Platform == "" {
		return entities.DetectPlatform(), nil
	}
	return entities.ParsePlatform(c.Platform)
}

// Strictness maps the strict flag to the selector mode
func (c *Config) Strictness() services.Strictness {
	if c.Strict {
		return services.Strict
	}
	return services.Lenient
}

// SourceDir is where fetched archives are cached
func (c *Config) SourceDir() string {
	return filepath.Join(c.CacheDir, "sources")
}

// LedgerPath is the checksum ledger file
func (c *Config) LedgerPath() string {
	return filepath.Join(c.StateDir, "checksums.yml")
}
