package gateways

import (
	"context"
	"fmt"
	"sync"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter to implement the domain gateway interface
type gpgVerifier struct {
	verifier *gpg.Verifier

	mu       sync.Mutex
	imported map[string]bool
}

// NewGPGVerifier creates a new GPG verifier gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier(verifier *gpg.Verifier) *gpgVerifier {
	if verifier == nil {
		verifier = gpg.NewVerifier()
	}
	return &gpgVerifier{verifier: verifier, imported: make(map[string]bool)}
}

// ImportKeysFromURL imports a KEYS file once per URL
func (g *gpgVerifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.imported[keysURL] {
		return nil
	}
	if err := g.verifier.ImportKeysFromURL(ctx, keysURL); err != nil {
		return fmt.Errorf("failed to import GPG keys from %s: %w", keysURL, err)
	}
	g.imported[keysURL] = true
	return nil
}

// VerifySignature verifies a detached signature; every failure wraps
// entities.ErrSignatureInvalid
func (g *gpgVerifier) VerifySignature(ctx context.Context, filePath, sigURL string) error {
	if err := g.verifier.VerifySignature(ctx, filePath, sigURL); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrSignatureInvalid, err)
	}
	return nil
}
