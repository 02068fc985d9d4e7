// Package database archives crawl reports in SQLite.
//
// Each run is a row of crawl_runs holding its summary counts and the full
// report as JSON; crawl_links indexes every discovered link by run so that
// runs referencing a URL can be found without decoding reports. The
// archive backs `linkscan history`, which lists runs and diffs the two
// most recent reports of a seed.
//
// The driver is modernc.org/sqlite, which needs no cgo.
package database
