package gateways

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// S3Config configures access to s3:// source mirrors. Empty keys fall back
// to the AWS_* / MINIO_* environment variables, then anonymous access.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Downloader fetches source archives over http(s), s3 or file URLs and
// verifies them before they become visible at the destination path
type Downloader struct {
	httpClient *http.Client
	verifier   gateways.ChecksumVerifier
	logger     interfaces.Logger
	s3Config   S3Config

	s3Once   sync.Once
	s3Client *minio.Client
	s3Err    error
}

// DownloaderOption customizes a Downloader
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.httpClient = c }
}

// WithS3 configures the object-store client used for s3:// URLs
func WithS3(cfg S3Config) DownloaderOption {
	return func(d *Downloader) { d.s3Config = cfg }
}

// NewDownloader creates a new downloader
func NewDownloader(verifier gateways.ChecksumVerifier, logger interfaces.Logger, opts ...DownloaderOption) *Downloader {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	d := &Downloader{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for large downloads
		},
		verifier: verifier,
		logger:   logger,
		s3Config: S3Config{Endpoint: "s3.amazonaws.com", UseSSL: true},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads src to dest. A previously fetched archive that still
// verifies is reused. New downloads land in dest+".part" and are renamed
// only after the checksum matches, so dest never holds unverified content.
func (d *Downloader) Fetch(ctx context.Context, src *entities.VersionSourceDescriptor, dest string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("failed to create source directory: %w", err)
	}

	if _, err := os.Stat(dest); err == nil {
		err := d.verifier.VerifyChecksum(ctx, dest, src.Algorithm, src.Checksum)
		if err == nil {
			d.logger.Info("using cached source", interfaces.F("path", dest))
			return dest, nil
		}
		d.logger.Warn("cached source failed verification, fetching again",
			interfaces.F("path", dest), interfaces.F("error", err))
		if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to remove stale source: %w", err)
		}
	}

	part := dest + ".part"
	if err := d.download(ctx, src.URL, part); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("download failed: %w", err)
	}

	if err := d.verifier.VerifyChecksum(ctx, part, src.Algorithm, src.Checksum); err != nil {
		_ = os.Remove(part)
		return "", err
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("failed to move verified source into place: %w", err)
	}
	return dest, nil
}

func (d *Downloader) download(ctx context.Context, rawURL, dest string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid source url %q: %w", rawURL, err)
	}

	var body io.ReadCloser
	switch u.Scheme {
	case "http", "https":
		body, err = d.openHTTP(ctx, rawURL)
	case "s3":
		body, err = d.openS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	case "file":
		//nolint:gosec // G304: file:// sources are local mirrors named by the recipe
		body, err = os.Open(u.Path)
	default:
		return &unsupportedSchemeError{scheme: u.Scheme}
	}
	if err != nil {
		return err
	}
	//nolint:errcheck // Defer close on source stream
	defer body.Close()

	// Create destination file
	//nolint:gosec // G304: File path dest is function parameter for download destination
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	d.logger.Info("downloaded source", interfaces.F("url", rawURL), interfaces.F("bytes", written))
	return nil
}

func (d *Downloader) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "cauldron/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (d *Downloader) openS3(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	client, err := d.s3()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	// GetObject is lazy; Stat surfaces missing objects and auth errors up front.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("s3 stat %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

func (d *Downloader) s3() (*minio.Client, error) {
	d.s3Once.Do(func() {
		cfg := d.s3Config
		creds := credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
		if cfg.AccessKey != "" {
			creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
		}
		d.s3Client, d.s3Err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:     creds,
			Secure:    cfg.UseSSL,
			Region:    cfg.Region,
			Transport: newTransport(),
		})
	})
	return d.s3Client, d.s3Err
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// HTTPStatusError reports a non-200 response from a source server
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Temporary reports whether the server may answer differently on retry
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// unsupportedSchemeError marks a source URL no fetcher can serve
type unsupportedSchemeError struct {
	scheme string
}

func (e *unsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported source scheme %q", e.scheme)
}

func (e *unsupportedSchemeError) Temporary() bool { return false }
