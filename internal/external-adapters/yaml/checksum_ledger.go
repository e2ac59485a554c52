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

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// ChecksumLedger persists the first checksum seen for every
// component/version/archive triple and refuses any later change to it.
// Keying by archive name rather than URL makes a mirror move that keeps the
// file name subject to the same check.
type ChecksumLedger struct {
	path string
	mu   sync.Mutex
}

type ledgerFile struct {
	// component -> version -> archive name -> digest
	Pins map[string]map[string]map[string]string `yaml:"pins"`
}

// NewChecksumLedger creates a ledger stored at path
func NewChecksumLedger(path string) *ChecksumLedger {
	return &ChecksumLedger{path: path}
}

// Pin records src's checksum, or fails with ErrChecksumConflict when a
// different checksum was pinned before for the same source
func (l *ChecksumLedger) Pin(_ context.Context, src *entities.VersionSourceDescriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, err := l.load()
	if err != nil {
		return err
	}

	want := src.Digest().String()
	versions := ledger.Pins[src.Component]
	if versions == nil {
		versions = make(map[string]map[string]string)
		ledger.Pins[src.Component] = versions
	}
	archives := versions[src.Version]
	if archives == nil {
		archives = make(map[string]string)
		versions[src.Version] = archives
	}

	archive := src.ArchiveName()
	if pinned, ok := archives[archive]; ok {
		if pinned != want {
			return fmt.Errorf("%w: %s %s (%s, now from %s) was published as %s, recipe now declares %s",
				entities.ErrChecksumConflict, src.Component, src.Version, archive, src.URL, pinned, want)
		}
		return nil
	}

	archives[archive] = want
	return l.save(ledger)
}

func (l *ChecksumLedger) load() (*ledgerFile, error) {
	ledger := &ledgerFile{}
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read checksum ledger: %w", err)
	default:
		if err := yaml.Unmarshal(data, ledger); err != nil {
			return nil, fmt.Errorf("failed to parse checksum ledger %s: %w", l.path, err)
		}
	}
	if ledger.Pins == nil {
		ledger.Pins = make(map[string]map[string]map[string]string)
	}
	return ledger, nil
}

func (l *ChecksumLedger) save(ledger *ledgerFile) error {
	data, err := yaml.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("failed to encode checksum ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write checksum ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace checksum ledger: %w", err)
	}
	return nil
}
