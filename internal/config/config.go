package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/linkscan/internal/crawler"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkscan"

	// DefaultMaxDepth of 0 means the crawl is not bounded by depth.
	DefaultMaxDepth = 0

	// DefaultTimeout bounds a single fetch, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of fetches allowed in flight at once.
	DefaultConcurrency = 4

	// DefaultMaxPages of 0 means no page budget.
	DefaultMaxPages = 0

	// DefaultMaxDuration of 0 means no wall-clock ceiling.
	DefaultMaxDuration = time.Duration(0)

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 2

	// DefaultUserAgent identifies linkscan in HTTP requests.
	DefaultUserAgent = "linkscan/1.0 (+https://github.com/nao1215/linkscan)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultDBFile is the history database file name inside the data directory.
	DefaultDBFile = "linkscan.db"
)

// Domain policy names accepted by --domain-policy and the config file.
const (
	// DomainPolicyExact treats a URL as internal when its authority equals the seed's.
	DomainPolicyExact = "exact"
	// DomainPolicySubdomain also treats subdomains of the seed host as internal.
	DomainPolicySubdomain = "subdomain"
	// DomainPolicyRegistrable compares registrable domains (eTLD+1).
	DomainPolicyRegistrable = "registrable"
)

// DomainPolicies lists every accepted domain policy name.
var DomainPolicies = []string{DomainPolicyExact, DomainPolicySubdomain, DomainPolicyRegistrable}

// Config holds all configuration options for linkscan.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Seeds are the starting URLs. Each seed is crawled as an independent run.
	Seeds []string

	// MaxDepth bounds the depth of fetched and recorded internal links.
	// The seed is at depth 1. Zero means unbounded.
	MaxDepth int

	// ThresholdSet records whether MaxDepth came from an explicit --threshold.
	// An explicit threshold must be positive.
	ThresholdSet bool

	// Concurrency is the number of fetches in flight per crawl.
	Concurrency int

	// MaxPages caps the number of pages fetched per crawl. Zero means unlimited.
	MaxPages int

	// Timeout bounds each individual fetch.
	Timeout time.Duration

	// MaxDuration caps the wall-clock time of one crawl. Zero means no ceiling.
	MaxDuration time.Duration

	// DomainPolicy selects how internal links are recognized.
	DomainPolicy string

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// IgnorePatterns and FollowPatterns restrict which internal URLs are fetched.
	IgnorePatterns []string
	FollowPatterns []string

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// Simple lists links without grouping.
	Simple bool

	// ExtSort adds the external links grouped by extension.
	ExtSort bool

	// JSONReport and MarkdownReport select the output format.
	// They are mutually exclusive. Plain text is used when both are false.
	JSONReport     bool
	MarkdownReport bool

	// OutputFile is the report destination. Empty means stdout.
	// An existing file is never overwritten.
	OutputFile string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes fetches through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory of the history database.
	DBDir string

	// SaveHistory archives finished crawl reports into the history database.
	SaveHistory bool

	// MetricsFile is the path of a Prometheus textfile written after the crawl.
	MetricsFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		Concurrency:       DefaultConcurrency,
		MaxPages:          DefaultMaxPages,
		Timeout:           DefaultTimeout,
		MaxDuration:       DefaultMaxDuration,
		DomainPolicy:      DomainPolicyExact,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveHistory:       true,
	}
}

// XDGDataDir returns the XDG data directory for linkscan.
// On Linux: ~/.local/share/linkscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkscan.
// On Linux: ~/.config/linkscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for linkscan.
// On Linux: ~/.cache/linkscan
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first problem found.
// It runs once after CLI parsing, before any network activity.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	for _, seed := range c.Seeds {
		if _, err := crawler.ParseSeed(seed); err != nil {
			return err
		}
	}

	if c.MaxDepth < 0 || (c.ThresholdSet && c.MaxDepth <= 0) {
		return ErrInvalidThreshold
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxDuration < 0 {
		return ErrInvalidMaxDuration
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.DomainPolicy != "" && !slices.Contains(DomainPolicies, c.DomainPolicy) {
		return ErrInvalidDomainPolicy
	}

	if c.ProxyAddress != "" && c.UseTor {
		return ErrConflictingProxy
	}

	return nil
}

// DBPath returns the history database path for this configuration.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, DefaultDBFile)
}
