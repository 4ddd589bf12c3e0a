// Package fetch provides the resilient HTTP fetcher used by every source
// adapter and the content enricher.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// Config holds fetcher parameters. Timeout applies per attempt, not per call.
type Config struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
}

// Fetcher performs HTTP GETs with bounded retries and a fixed per-attempt
// timeout. The full response body is buffered; there is no streaming
// contract.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
}

// New creates a fetcher with the given config, applying defaults for unset
// fields
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "aidaily/1.0 (+https://localhost; ingestion)"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
	}
}

// Text fetches url and returns the response body as text. It attempts up to
// MaxRetries+1 times; timeouts, connection errors and non-2xx statuses all
// count as failed attempts. Once attempts are exhausted the last underlying
// error is returned, wrapped with the url.
func (f *Fetcher) Text(ctx context.Context, url string) (string, error) {
	var body string
	retrier := repeater.NewBackoff(f.maxRetries+1, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		text, aerr := f.attempt(ctx, url)
		if aerr != nil {
			return aerr
		}
		body = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch failed for %s: %w", url, err)
	}
	return body, nil
}

// attempt performs a single GET, following redirects, requiring a 2xx status
func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}
