package gateways

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// checksumVerifier implements checksum verification over go-digest
type checksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewChecksumVerifier() *checksumVerifier {
	return &checksumVerifier{}
}

// VerifyChecksum verifies a file's digest under the given algorithm.
// A mismatch wraps entities.ErrChecksumMismatch.
func (v *checksumVerifier) VerifyChecksum(ctx context.Context, filePath string, algorithm digest.Algorithm, expectedSum string) error {
	expected := digest.NewDigestFromEncoded(algorithm, expectedSum)
	if err := expected.Validate(); err != nil {
		return fmt.Errorf("invalid expected checksum: %w", err)
	}

	actual, err := v.CalculateChecksum(ctx, filePath, algorithm)
	if err != nil {
		return err
	}

	if actual != expected {
		return fmt.Errorf("%w: %s: expected %s, got %s", entities.ErrChecksumMismatch, filePath, expected, actual)
	}

	return nil
}

// CalculateChecksum streams a file through the algorithm's hash
func (v *checksumVerifier) CalculateChecksum(ctx context.Context, filePath string, algorithm digest.Algorithm) (digest.Digest, error) {
	if !algorithm.Available() {
		return "", fmt.Errorf("checksum algorithm %q is not available", algorithm)
	}

	//nolint:gosec // G304: File path is the fetched archive for checksum calculation
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	digester := algorithm.Digester()
	if _, err := io.Copy(digester.Hash(), &ctxReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return digester.Digest(), nil
}

// ctxReader stops long hashes and copies once ctx is cancelled
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
