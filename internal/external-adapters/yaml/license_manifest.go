package yaml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// LicenseManifestPath is the manifest location relative to an install root
const LicenseManifestPath = "LICENSES/manifest.yml"

// LicenseEntry is one shipped component in the manifest
type LicenseEntry struct {
	Version string `yaml:"version"`
	License string `yaml:"license"`
}

type licenseManifest struct {
	Components map[string]LicenseEntry `yaml:"components"`
}

// LicenseManifest records the license of every component installed into a root
type LicenseManifest struct {
	mu sync.Mutex
}

// NewLicenseManifest creates a license shipper backed by a YAML manifest
func NewLicenseManifest() *LicenseManifest {
	return &LicenseManifest{}
}

// ShipLicense records component at version under licenseID
func (m *LicenseManifest) ShipLicense(_ context.Context, installRoot, component, version, licenseID string) error {
	if licenseID == "" {
		return fmt.Errorf("component %s declares no license", component)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(installRoot, LicenseManifestPath)
	manifest, err := ReadLicenseManifest(installRoot)
	if err != nil {
		return err
	}
	manifest[component] = LicenseEntry{Version: version, License: licenseID}

	data, err := yaml.Marshal(&licenseManifest{Components: manifest})
	if err != nil {
		return fmt.Errorf("failed to encode license manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create license directory: %w", err)
	}
	//nolint:gosec // G306: license manifest is shipped with the installed tree
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write license manifest: %w", err)
	}
	return nil
}

// ReadLicenseManifest loads the manifest under installRoot; a missing
// manifest yields an empty map
func ReadLicenseManifest(installRoot string) (map[string]LicenseEntry, error) {
	path := filepath.Join(installRoot, LicenseManifestPath)
	manifest := &licenseManifest{}

	//nolint:gosec // G304: path is derived from the configured install root
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read license manifest: %w", err)
	default:
		if err := yaml.Unmarshal(data, manifest); err != nil {
			return nil, fmt.Errorf("failed to parse license manifest %s: %w", path, err)
		}
	}
	if manifest.Components == nil {
		manifest.Components = make(map[string]LicenseEntry)
	}
	return manifest.Components, nil
}
