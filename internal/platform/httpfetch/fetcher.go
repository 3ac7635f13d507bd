// Package httpfetch downloads remote source images over HTTP.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/imagetask-api/internal/generation"
	"github.com/phrazzld/imagetask-api/internal/redact"
)

// DefaultMaxBytes caps a download when no limit is configured.
const DefaultMaxBytes int64 = 50 << 20

// StatusError is returned for any non-2xx response. A 404 also matches
// generation.ErrSourceNotFound under errors.Is.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", redact.SourceReference(e.URL), e.StatusCode)
}

// Is matches generation.ErrSourceNotFound for 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == generation.ErrSourceNotFound && e.StatusCode == http.StatusNotFound
}

// Fetcher implements generation.Fetcher with an http.Client.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

var _ generation.Fetcher = (*Fetcher)(nil)

// New creates a Fetcher. A zero timeout leaves requests bounded only by their
// context; a non-positive maxBytes selects DefaultMaxBytes.
func New(timeout time.Duration, maxBytes int64, logger *slog.Logger) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   15 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				MaxIdleConnsPerHost:   4,
			},
		},
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "http_fetcher")),
	}
}

// Fetch downloads url and returns the full body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", redact.SourceReference(url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: declared %d bytes", generation.ErrSourceTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", generation.ErrSourceTooLarge, f.maxBytes)
	}

	f.logger.DebugContext(ctx, "source downloaded",
		slog.String("url", redact.SourceReference(url)),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}
