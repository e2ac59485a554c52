package yaml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicenseManifest_ShipLicense(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	m := NewLicenseManifest()

	require.NoError(t, m.ShipLicense(ctx, root, "python3", "3.6.7", "PSFL"))
	require.NoError(t, m.ShipLicense(ctx, root, "zlib", "1.3.1", "Zlib"))
	require.NoError(t, m.ShipLicense(ctx, root, "python3", "3.7.1", "PSFL"))

	entries, err := ReadLicenseManifest(root)
	require.NoError(t, err)
	assert.Equal(t, map[string]LicenseEntry{
		"python3": {Version: "3.7.1", License: "PSFL"},
		"zlib":    {Version: "1.3.1", License: "Zlib"},
	}, entries)
}

func TestLicenseManifest_RequiresLicense(t *testing.T) {
	err := NewLicenseManifest().ShipLicense(context.Background(), t.TempDir(), "python3", "3.7.1", "")
	assert.Error(t, err)
}

func TestReadLicenseManifest_Missing(t *testing.T) {
	entries, err := ReadLicenseManifest(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
