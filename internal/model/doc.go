// Package model defines the core data structures shared by the crawler,
// the report writers and the history database.
//
// The main types are:
//   - LinkSet: a deduplicated set of absolute URLs
//   - Page: one entry of the crawl trace (a fetched or failed page)
//   - CrawlReport: the complete result of one crawl run
//   - LinkDiff: the change in discovered links between two runs
//
// All types serialize to JSON for report output and database storage.
package model
