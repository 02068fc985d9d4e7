// Package pipeline runs the stages of one crawl and batches crawls of
// several seeds.
//
// A Pipeline executes Steps in order against a Run: CrawlStep produces
// the report, HistoryStep archives it and MetricsStep records the run
// gauges. BatchProcessor crawls many seeds with bounded concurrency using
// errgroup, building a fresh Pipeline per seed so that site-specific
// settings never leak between runs.
package pipeline
