package config

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing crawl behavior per website.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth for this site.
	// If zero, the CLI threshold (or unbounded) is used.
	Depth int `yaml:"depth,omitempty"`

	// DomainPolicy overrides --domain-policy for this site.
	DomainPolicy string `yaml:"domainPolicy,omitempty"`

	// UserAgent overrides the User-Agent header for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are URL path patterns that are never fetched.
	// Patterns use glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are fetched.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .linkscan configuration file.
type File struct {
	// Sites maps hosts (e.g. "example.com" or "example.com:8080") to their
	// site-specific configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merged over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.DomainPolicy != "" {
		result.DomainPolicy = siteConfig.DomainPolicy
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}
