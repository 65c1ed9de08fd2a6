// Package webcrawl is the thin external-collaborator boundary for web-page
// sources feeding the chunker's web-page path (spec §6). It fetches a page
// over HTTP and hands the raw HTML to internal/chunk; the crawling policy
// itself (scope, depth, link discovery) is out of core and owned by the
// caller.
package webcrawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Page is one fetched web document, ready for WebChunker.ChunkWeb.
type Page struct {
	URL  string
	Path string
	HTML string
}

// Fetcher retrieves a single page's HTML over HTTP.
type Fetcher struct {
	http *http.Client
}

// NewFetcher builds a Fetcher with a bounded per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{http: &http.Client{Timeout: timeout}}
}

// Fetch retrieves pageURL and returns its HTML body plus the URL path
// component to use as the chunker's relPath.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, err
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("read page body: %w", err)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return Page{URL: pageURL, Path: path, HTML: string(body)}, nil
}
