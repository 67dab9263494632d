package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher performs a single bounded-timeout fetch of a feed URL and parses
// the response. No retries: the next refresh cycle is the retry mechanism.
type Fetcher struct {
	client    *http.Client
	parser    *Parser
	userAgent string
	timeout   time.Duration
}

func NewFetcher(client *http.Client, parser *Parser, userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:    client,
		parser:    parser,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Run fetches and parses one feed. Any transport error, non-2xx status, or
// parse failure is returned to the caller, who treats it as "zero posts
// from this feed this cycle".
func (f *Fetcher) Run(ctx context.Context, url string) ([]Item, int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	return f.parser.Run(data)
}
