// Package crawler implements the depth-bounded link crawl.
//
// # Architecture
//
// The Engine coordinates a crawl. A single coordinator goroutine owns the
// worklist, the visited set and the internal/external link sets; a bounded
// number of workers only fetch pages and extract references. Every decision
// to fetch a URL is made by the coordinator, so a URL is fetched at most once
// even when many fetches are in flight.
//
// # Components
//
//   - Engine: schedules fetches, applies depth admission and budgets
//   - Fetcher: retrieves one page (HTTPFetcher is the net/http implementation)
//   - Parser: extracts raw href/src/action references from an HTML document
//   - Classifier: resolves references and decides internal vs external
//   - DomainPolicy: the pluggable "same site" rule used by the Classifier
//
// # Depth
//
// The seed has depth 1 and a reference found on a page at depth D has depth
// D+1. An internal reference is recorded and fetched only when its depth does
// not exceed the configured maximum. External references are always recorded
// and never fetched.
//
// # Usage
//
//	engine := crawler.NewEngine(crawler.NewHTTPFetcher(client), crawler.WithMaxDepth(2))
//	report, err := engine.Crawl(ctx, "https://example.com/")
package crawler
