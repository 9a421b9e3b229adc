// Package feed implements the conditional fetch client, entry
// normalization and feed registration.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/feedtide/feedtide/pkg/domain"
)

// FetchResult is the outcome of one successful fetch attempt. Either
// NotModified is true or Feed is set.
type FetchResult struct {
	NotModified  bool
	Feed         *domain.ParsedFeed
	ETag         string
	LastModified string
	TTLMinutes   int // 0 when the feed carries no <ttl>
}

// HTTPFetcher performs conditional GET requests against feed URLs
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with a fixed request timeout bounding
// worst-case latency per feed
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch performs one conditional GET. Cache validators from the previous
// response are sent when present; a 304 answer short-circuits without
// reading the body. On success the new validators and the feed-advisory
// TTL are captured alongside the normalized document.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, etag, lastModified string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{NotModified: true}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestFailedError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%d - %s", resp.StatusCode, statusText(resp.StatusCode)),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read body: %w", err)}
	}

	// the ttl element is scanned from the raw body because gofeed drops it
	ttl := extractTTL(body)

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	return &FetchResult{
		Feed:         normalizeFeed(parsed),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		TTLMinutes:   ttl,
	}, nil
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
