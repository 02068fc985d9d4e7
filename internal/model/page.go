package model

import "strings"

// PageStatus is the outcome of a scheduled fetch.
type PageStatus string

const (
	// PageFetched means the page was fetched with a 2xx status and its
	// references were extracted.
	PageFetched PageStatus = "fetched"

	// PageFailed means the fetch failed. The subtree below this page is
	// left unexplored.
	PageFailed PageStatus = "failed"
)

// Page is one entry of the crawl trace.
// Pages appear in the order the crawler scheduled them.
type Page struct {
	// URL is the absolute URL that was fetched.
	URL string `json:"url"`

	// Depth is the crawl depth of the page. The seed has depth 1.
	Depth int `json:"depth"`

	// Status is the outcome of the fetch.
	Status PageStatus `json:"status"`

	// StatusCode is the HTTP response status code, or 0 when no response
	// was received.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type,omitempty"`

	// Title is the page title extracted from the <title> tag.
	Title string `json:"title,omitempty"`

	// LinksFound is the number of distinct references extracted from the page.
	LinksFound int `json:"links_found,omitempty"`

	// Size is the number of body bytes read.
	Size int64 `json:"size,omitempty"`

	// Error describes why the fetch failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the fetch of this page failed.
func (p *Page) Failed() bool {
	return p.Status == PageFailed
}

// IsHTML returns true if the content type indicates an HTML document.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
