package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/external-adapters/yaml"
	"github.com/ochairo/cauldron/recipes"
)

const installRoot = "/opt/agent"

var (
	linuxHost   = entities.PlatformDescriptor{OS: "linux", Arch: "amd64", Libc: "glibc"}
	darwinHost  = entities.PlatformDescriptor{OS: "darwin", Arch: "arm64"}
	freebsdHost = entities.PlatformDescriptor{OS: "freebsd", Arch: "amd64"}
	aixHost     = entities.PlatformDescriptor{OS: "aix", Arch: "ppc64"}
	win32Host   = entities.PlatformDescriptor{OS: "windows", Arch: "386"}
	win64Host   = entities.PlatformDescriptor{OS: "windows", Arch: "amd64"}
)

func loadPython3(t *testing.T) *entities.ComponentRecipe {
	t.Helper()
	data, err := recipes.FS.ReadFile("python3.yml")
	require.NoError(t, err)
	recipe, err := yaml.NewRecipeParser().Parse(data)
	require.NoError(t, err)
	return recipe
}
