package config

import (
	"errors"

	"github.com/nao1215/linkscan/internal/crawler"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to react to a specific problem.
var (
	// ErrNoSeed is returned when no seed URL is specified.
	ErrNoSeed = errors.New("no seed URL specified: provide one with --url")

	// ErrInvalidSeed is returned when a seed is not an absolute http(s) URL with a host.
	// It is the crawler's sentinel, so validation and crawling reject the same seeds.
	ErrInvalidSeed = crawler.ErrInvalidSeed

	// ErrInvalidThreshold is returned when an explicitly given depth threshold is not positive.
	ErrInvalidThreshold = errors.New("invalid threshold: must be a positive integer")

	// ErrInvalidTimeout is returned when the per-fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the number of fetch workers is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	// Use 0 for an unlimited budget.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxDuration is returned when the wall-clock budget is negative.
	ErrInvalidMaxDuration = errors.New("invalid max duration: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidDomainPolicy is returned for an unknown domain policy name.
	ErrInvalidDomainPolicy = errors.New("invalid domain policy: must be one of exact, subdomain, registrable")

	// ErrConflictingProxy is returned when both --proxy and --tor are specified.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")
)
