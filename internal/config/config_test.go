package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/services"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Hour, cfg.CommandTimeout)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.True(t, filepath.IsAbs(cfg.InstallRoot))
	assert.Equal(t, services.Lenient, cfg.Strictness())
}

func TestVars_CoverDefaults(t *testing.T) {
	vars := Vars()
	for _, key := range []string{"install_root", "workers", "cache_dir", "build_dir", "state_dir"} {
		assert.NotEmpty(t, vars[key], key)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"relative install root", func(c *Config) { c.InstallRoot = "opt/agent" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative timeout", func(c *Config) { c.CommandTimeout = -time.Second }},
		{"log level", func(c *Config) { c.LogLevel = "trace" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"platform", func(c *Config) { c.Platform = "linux" }},
		{"keyring without verification", func(c *Config) { c.Keyring = "/etc/cauldron/keys.asc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_TargetPlatform(t *testing.T) {
	cfg := Default()
	cfg.Platform = "Windows/386"
	p, err := cfg.TargetPlatform()
	require.NoError(t, err)
	assert.Equal(t, entities.PlatformDescriptor{OS: "windows", Arch: "386"}, p)

	cfg.Platform = ""
	p, err = cfg.TargetPlatform()
	require.NoError(t, err)
	assert.NotEmpty(t, p.OS)
}

func TestConfig_Paths(t *testing.T) {
	cfg := Config{CacheDir: "/var/cache/cauldron", StateDir: "/var/lib/cauldron", Strict: true}
	assert.Equal(t, filepath.Join("/var/cache/cauldron", "sources"), cfg.SourceDir())
	assert.Equal(t, filepath.Join("/var/lib/cauldron", "checksums.yml"), cfg.LedgerPath())
	assert.Equal(t, services.Strict, cfg.Strictness())
}
