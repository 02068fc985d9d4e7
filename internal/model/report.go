package model

import (
	"context"
	"errors"
	"time"
)

// CrawlReport is the result of one crawl run.
// It is built by the crawler and is read-only once returned.
type CrawlReport struct {
	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// Domain is the authority of the seed, used for classification.
	Domain string `json:"domain"`

	// DomainPolicy is the name of the policy that decided internal vs external.
	DomainPolicy string `json:"domain_policy"`

	// MaxDepth is the depth bound of the crawl. Zero means unbounded.
	MaxDepth int `json:"max_depth"`

	// StartedAt and FinishedAt bracket the crawl.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Internal holds every admitted link on the seed's domain.
	Internal LinkSet `json:"internal"`

	// External holds every link on another domain. External links are
	// recorded but never fetched.
	External LinkSet `json:"external"`

	// Pages is the crawl trace in scheduling order.
	Pages []Page `json:"pages"`

	// Stats summarizes the run.
	Stats CrawlStats `json:"stats"`

	// Error is the error that ended the crawl early, if any.
	Error error `json:"-"`

	// ErrorMessage is the string representation of Error for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// CrawlStats summarizes a crawl run.
type CrawlStats struct {
	// PagesFetched is the number of pages fetched successfully.
	PagesFetched int `json:"pages_fetched"`

	// Failures is the number of pages whose fetch failed.
	Failures int `json:"failures"`

	// DurationMillis is the wall-clock duration of the crawl.
	DurationMillis int64 `json:"duration_ms"` //nolint:tagliatelle // unit suffix

	// BudgetExhausted is true when the page budget stopped scheduling.
	BudgetExhausted bool `json:"budget_exhausted,omitempty"`

	// TimedOut is true when the wall-clock ceiling stopped scheduling.
	TimedOut bool `json:"timed_out,omitempty"`

	// Canceled is true when the caller canceled the crawl.
	Canceled bool `json:"canceled,omitempty"`
}

// NewCrawlReport creates an empty report for the given seed.
func NewCrawlReport(seed, domain string) *CrawlReport {
	return &CrawlReport{
		Seed:      seed,
		Domain:    domain,
		StartedAt: time.Now(),
		Pages:     make([]Page, 0),
	}
}

// AddPage appends a trace entry and updates the counters.
func (r *CrawlReport) AddPage(p Page) {
	r.Pages = append(r.Pages, p)
	if p.Failed() {
		r.Stats.Failures++
		return
	}
	r.Stats.PagesFetched++
}

// Finish stamps the finish time and records err as the reason the crawl
// ended early. A nil err leaves the report marked as complete.
func (r *CrawlReport) Finish(err error) {
	r.FinishedAt = time.Now()
	r.Stats.DurationMillis = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	if err == nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
	if errors.Is(err, context.Canceled) {
		r.Stats.Canceled = true
	}
}

// Duration returns the wall-clock duration of the crawl.
func (r *CrawlReport) Duration() time.Duration {
	return time.Duration(r.Stats.DurationMillis) * time.Millisecond
}

// Partial reports whether the crawl stopped before exhausting its frontier.
func (r *CrawlReport) Partial() bool {
	return r.Stats.BudgetExhausted || r.Stats.TimedOut || r.Stats.Canceled
}

// TotalInternal returns the number of internal links.
func (r *CrawlReport) TotalInternal() int {
	return r.Internal.Len()
}

// TotalExternal returns the number of external links.
func (r *CrawlReport) TotalExternal() int {
	return r.External.Len()
}

// TotalLinks returns the number of internal and external links.
func (r *CrawlReport) TotalLinks() int {
	return r.TotalInternal() + r.TotalExternal()
}

// Visited returns the URLs that were scheduled for fetch, in order.
func (r *CrawlReport) Visited() []string {
	out := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		out = append(out, p.URL)
	}
	return out
}

// Failures returns the trace entries whose fetch failed.
func (r *CrawlReport) Failures() []Page {
	out := make([]Page, 0, r.Stats.Failures)
	for _, p := range r.Pages {
		if p.Failed() {
			out = append(out, p)
		}
	}
	return out
}
