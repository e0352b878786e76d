package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/toozej/diagramcheck/pkg/useragent"
)

// Fetcher downloads a remote resource fully into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// maxDownloadSize caps a single download (prevents unbounded memory use).
const maxDownloadSize = 512 << 20

// HTTPFetcher handles downloading dependencies over HTTP(S)
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *log.Entry
}

// NewHTTPFetcher creates a new fetcher with the given timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Minute // Long timeout for large downloads
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: useragent.Get(),
		logger:    log.WithField("component", "http_fetcher"),
	}
}

// Fetch performs a single GET. There is no retry: any failure is returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req) // #nosec G107 -- URL comes from configuration
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if len(data) > maxDownloadSize {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("response exceeds %d bytes", maxDownloadSize)}
	}

	f.logger.WithFields(log.Fields{
		"url":         url,
		"bytes":       len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Downloaded dependency")

	return data, nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
