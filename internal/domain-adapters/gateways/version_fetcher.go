package gateways

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"time"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

const (
	// Max retries for transient errors
	maxRetries = 3
	// Initial backoff duration
	initialBackoff = 1 * time.Second
	// Max backoff duration
	maxBackoff = 32 * time.Second
	// maxIndexSize bounds a release index page
	maxIndexSize = 10 << 20
)

// VersionFetcher lists the versions announced on upstream release pages
type VersionFetcher struct {
	httpClient *http.Client
	logger     interfaces.Logger
	backoff    func(attempt int) time.Duration
}

// NewVersionFetcher creates a new version fetcher
func NewVersionFetcher(logger interfaces.Logger) *VersionFetcher {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &VersionFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		backoff: calculateBackoff,
	}
}

// ListVersions fetches spec.URL and returns every version matched by
// spec.Pattern that is not excluded, in page order without duplicates
func (vf *VersionFetcher) ListVersions(ctx context.Context, spec entities.UpstreamSpec) ([]string, error) {
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	var exclude *regexp.Regexp
	if spec.Exclude != "" {
		if exclude, err = regexp.Compile(spec.Exclude); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}

	page, err := vf.fetchIndex(ctx, spec.URL)
	if err != nil {
		return nil, err
	}

	matches := re.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no match found for pattern %s at %s", spec.Pattern, spec.URL)
	}

	seen := make(map[string]bool)
	var versions []string
	for _, m := range matches {
		// the first capture group if present and non-empty, otherwise the whole match
		version := m[0]
		if len(m) > 1 && m[1] != "" {
			version = m[1]
		}
		if exclude != nil && exclude.MatchString(m[0]) {
			continue
		}
		if seen[version] {
			continue
		}
		seen[version] = true
		versions = append(versions, version)
	}

	vf.logger.Debug("listed upstream versions",
		interfaces.F("url", spec.URL), interfaces.F("count", len(versions)))
	return versions, nil
}

func (vf *VersionFetcher) fetchIndex(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := vf.doWithRetry(ctx, req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(body), nil
}

// doWithRetry executes an HTTP request with exponential backoff retry
func (vf *VersionFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(vf.backoff(attempt - 1)):
			}
		}

		resp, err = vf.httpClient.Do(req)
		if err != nil {
			// Network errors are retryable
			if attempt < maxRetries && ctx.Err() == nil {
				continue
			}
			return nil, err
		}

		// Success or non-retryable error
		if !isRetryableStatus(resp.StatusCode) || attempt == maxRetries {
			return resp, nil
		}

		vf.logger.Warn("upstream index request failed, retrying",
			interfaces.F("url", req.URL.String()),
			interfaces.F("status", resp.StatusCode),
			interfaces.F("attempt", attempt+1))
		//nolint:errcheck,gosec // G104: Best effort close before retry
		resp.Body.Close()
	}

	return resp, err
}

// isRetryableStatus checks if an HTTP status code is retryable
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// calculateBackoff returns the backoff duration for a retry attempt
func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}
