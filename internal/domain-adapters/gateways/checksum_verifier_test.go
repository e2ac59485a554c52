package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// TestVerifyChecksum tests digest verification for the supported algorithms
func TestVerifyChecksum(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	content := []byte("Hello, World! This is a test file for checksum verification.")
	require.NoError(t, os.WriteFile(testFile, content, 0600))

	verifier := NewChecksumVerifier()
	ctx := context.Background()

	for _, alg := range []digest.Algorithm{digest.SHA256, digest.SHA512} {
		t.Run(alg.String(), func(t *testing.T) {
			want := alg.FromBytes(content)

			got, err := verifier.CalculateChecksum(ctx, testFile, alg)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			assert.NoError(t, verifier.VerifyChecksum(ctx, testFile, alg, want.Encoded()))

			wrong := alg.FromString("something else").Encoded()
			err = verifier.VerifyChecksum(ctx, testFile, alg, wrong)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrChecksumMismatch))
		})
	}
}

func TestVerifyChecksum_Errors(t *testing.T) {
	verifier := NewChecksumVerifier()
	ctx := context.Background()

	err := verifier.VerifyChecksum(ctx, "/nonexistent/file.tgz", digest.SHA256, digest.FromString("x").Encoded())
	require.Error(t, err)
	assert.False(t, errors.Is(err, entities.ErrChecksumMismatch))

	err = verifier.VerifyChecksum(ctx, "/nonexistent/file.tgz", digest.SHA256, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expected checksum")

	_, err = verifier.CalculateChecksum(ctx, "/nonexistent/file.tgz", digest.Algorithm("md5"))
	assert.Error(t, err)
}

func TestCalculateChecksum_Cancelled(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(testFile, make([]byte, 1<<20), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChecksumVerifier().CalculateChecksum(ctx, testFile, digest.SHA256)
	assert.ErrorIs(t, err, context.Canceled)
}
