package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Default fetch settings used by NewHTTPFetcher.
const (
	defaultUserAgent   = "linkscan/1.0"
	defaultMaxBodySize = 5 * 1024 * 1024 // 5MB
	acceptHeader       = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Response is a fetched page.
type Response struct {
	// URL is the final URL after redirects. References on the page are
	// resolved against it.
	URL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the raw Content-Type header value.
	ContentType string

	// Body holds at most the fetcher's body limit.
	Body []byte
}

// Fetcher retrieves a single page.
// A non-2xx status is reported as a *StatusError.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return f(ctx, rawURL)
}

// HTTPFetcher fetches pages with an *http.Client.
// Proxying, cookies and site headers are the client's concern.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
// Longer bodies are truncated.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher using the given client.
// A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   defaultUserAgent,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET request for rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return out, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return out, fmt.Errorf("failed to read body: %w", err)
	}
	out.Body = body

	return out, nil
}
