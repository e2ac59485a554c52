package yaml

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

func ledgerSource(sum string) *entities.VersionSourceDescriptor {
	return &entities.VersionSourceDescriptor{
		Component: "python3",
		Version:   "3.7.1",
		URL:       "https://python.org/ftp/python/3.7.1/Python-3.7.1.tgz",
		Checksum:  sum,
		Algorithm: digest.SHA256,
	}
}

func TestChecksumLedger_Pin(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "checksums.yml")
	first := "36c1b81ac29d0f8341f727ef40864d99d8206897be96be73dc34d4739c9c9f06"
	changed := "1111111111111111111111111111111111111111111111111111111111111111"

	require.NoError(t, NewChecksumLedger(path).Pin(ctx, ledgerSource(first)))

	// Pins survive across ledger instances
	ledger := NewChecksumLedger(path)
	assert.NoError(t, ledger.Pin(ctx, ledgerSource(first)))

	err := ledger.Pin(ctx, ledgerSource(changed))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrChecksumConflict))

	other := ledgerSource(changed)
	other.Version = "3.6.7"
	assert.NoError(t, ledger.Pin(ctx, other))
}

func TestChecksumLedger_Pin_MirrorMove(t *testing.T) {
	ctx := context.Background()
	ledger := NewChecksumLedger(filepath.Join(t.TempDir(), "checksums.yml"))
	first := "36c1b81ac29d0f8341f727ef40864d99d8206897be96be73dc34d4739c9c9f06"
	changed := "1111111111111111111111111111111111111111111111111111111111111111"
	require.NoError(t, ledger.Pin(ctx, ledgerSource(first)))

	// same archive from a new host keeps its pin
	mirror := ledgerSource(first)
	mirror.URL = "https://mirror.example.org/python/Python-3.7.1.tgz"
	assert.NoError(t, ledger.Pin(ctx, mirror))

	mirror.Checksum = changed
	err := ledger.Pin(ctx, mirror)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrChecksumConflict))

	// a different artifact of the same version is pinned on its own
	windows := ledgerSource(changed)
	windows.URL = "https://s3.amazonaws.com/dd-agent-omnibus/python-windows-3.7.1-amd64.zip"
	assert.NoError(t, ledger.Pin(ctx, windows))
}
