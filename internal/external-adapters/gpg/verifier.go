// Package gpg provides OpenPGP detached-signature verification for source archives.
package gpg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const (
	maxKeysFileSize  = 10 << 20
	maxSignatureSize = 10 << 10
	armoredSigPrefix = "-----BEGIN PGP SIGNATURE"
)

// Verifier implements signature verification using ProtonMail's go-crypto,
// a maintained fork of golang.org/x/crypto/openpgp
type Verifier struct {
	mu         sync.RWMutex
	keyring    openpgp.EntityList
	httpClient *http.Client
}

// NewVerifier creates a new GPG verifier
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ImportKeysFromURL imports all keys from a published KEYS file
// (python.org publishes pubkeys.txt in this form)
func (v *Verifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	body, err := v.open(ctx, keysURL)
	if err != nil {
		return fmt.Errorf("failed to download KEYS file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer body.Close()

	return v.importArmored(io.LimitReader(body, maxKeysFileSize))
}

// ImportKeyFromFile imports a trusted keyring from a local file, armored or binary
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is user-provided for GPG key import
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}
	return v.add(entities)
}

func (v *Verifier) importArmored(r io.Reader) error {
	entities, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return fmt.Errorf("failed to parse KEYS file: %w", err)
	}
	return v.add(entities)
}

func (v *Verifier) add(entities openpgp.EntityList) error {
	if len(entities) == 0 {
		return fmt.Errorf("no keys found")
	}
	v.mu.Lock()
	v.keyring = append(v.keyring, entities...)
	v.mu.Unlock()
	return nil
}

// VerifySignature downloads the detached signature at sigURL and checks it against filePath
func (v *Verifier) VerifySignature(ctx context.Context, filePath, sigURL string) error {
	body, err := v.open(ctx, sigURL)
	if err != nil {
		return fmt.Errorf("failed to download signature: %w", err)
	}
	//nolint:errcheck // Defer close
	defer body.Close()

	sigData, err := io.ReadAll(io.LimitReader(body, maxSignatureSize))
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	return v.verify(filePath, sigData)
}

func (v *Verifier) verify(filePath string, sigData []byte) error {
	v.mu.RLock()
	keyring := v.keyring
	v.mu.RUnlock()

	if len(keyring) == 0 {
		return fmt.Errorf("no GPG keys imported, call ImportKeysFromURL first")
	}
	if len(sigData) < 10 {
		return fmt.Errorf("signature file too small to be valid GPG signature")
	}

	//nolint:gosec // G304: filePath is the fetched archive
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	if bytes.HasPrefix(bytes.TrimSpace(sigData), []byte(armoredSigPrefix)) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, f, bytes.NewReader(sigData), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, f, bytes.NewReader(sigData), nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// open reads an http(s) or file URL
func (v *Verifier) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "file" {
		//nolint:gosec // G304: file:// URLs come from recipe configuration
		return os.Open(u.Path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// KeyCount returns the number of keys in the keyring
func (v *Verifier) KeyCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keyring)
}
