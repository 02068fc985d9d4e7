package crawler

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Domain policy names.
const (
	PolicyExact       = "exact"
	PolicySubdomain   = "subdomain"
	PolicyRegistrable = "registrable"
)

// DomainPolicy decides whether a URL belongs to the same site as the seed.
type DomainPolicy interface {
	// Name returns the policy name used in configuration and reports.
	Name() string

	// SameSite reports whether candidate is internal to seed.
	SameSite(seed, candidate *url.URL) bool
}

// ExactDomain treats a URL as internal when its authority (host and port)
// equals the seed's.
type ExactDomain struct{}

// Name implements DomainPolicy.
func (ExactDomain) Name() string { return PolicyExact }

// SameSite implements DomainPolicy.
func (ExactDomain) SameSite(seed, candidate *url.URL) bool {
	return Domain(candidate) == Domain(seed)
}

// SubdomainAware treats the seed host and any of its subdomains as internal.
// Ports are ignored.
type SubdomainAware struct{}

// Name implements DomainPolicy.
func (SubdomainAware) Name() string { return PolicySubdomain }

// SameSite implements DomainPolicy.
func (SubdomainAware) SameSite(seed, candidate *url.URL) bool {
	s := strings.ToLower(seed.Hostname())
	c := strings.ToLower(candidate.Hostname())
	return c == s || strings.HasSuffix(c, "."+s)
}

// RegistrableDomain treats URLs sharing the seed's registrable domain
// (eTLD+1, e.g. "example.co.uk") as internal. Hosts without a registrable
// domain, such as IP addresses or "localhost", fall back to host equality.
type RegistrableDomain struct{}

// Name implements DomainPolicy.
func (RegistrableDomain) Name() string { return PolicyRegistrable }

// SameSite implements DomainPolicy.
func (RegistrableDomain) SameSite(seed, candidate *url.URL) bool {
	return registrable(seed) == registrable(candidate)
}

func registrable(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}
	return host
}

// ParsePolicy returns the policy with the given name.
// An empty name selects ExactDomain.
func ParsePolicy(name string) (DomainPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyExact:
		return ExactDomain{}, nil
	case PolicySubdomain:
		return SubdomainAware{}, nil
	case PolicyRegistrable:
		return RegistrableDomain{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Domain returns the authority of u (host plus optional port).
func Domain(u *url.URL) string {
	return u.Host
}

// Classifier resolves references found during a crawl and decides whether
// they are internal to the seed.
type Classifier struct {
	seed   *url.URL
	policy DomainPolicy
}

// NewClassifier creates a classifier for the given seed.
// A nil policy means ExactDomain.
func NewClassifier(seed *url.URL, policy DomainPolicy) *Classifier {
	if policy == nil {
		policy = ExactDomain{}
	}
	return &Classifier{seed: seed, policy: policy}
}

// Resolve turns a raw reference into a normalized absolute URL.
// A reference with its own scheme is taken as is; anything else is resolved
// against base following RFC 3986. Only http and https URLs with a host are
// accepted.
func (c *Classifier) Resolve(base *url.URL, raw string) (*url.URL, bool) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	if ref.Scheme == "" {
		if base == nil {
			return nil, false
		}
		ref = base.ResolveReference(ref)
	}
	u := normalizeURL(ref)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// IsInternal reports whether u belongs to the seed's site.
func (c *Classifier) IsInternal(u *url.URL) bool {
	return c.policy.SameSite(c.seed, u)
}

// normalizeURL returns a copy of u suitable for deduplication: the fragment
// is dropped, scheme and host are lowercased, and an empty path becomes "/".
func normalizeURL(u *url.URL) *url.URL {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" && n.Opaque == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return &n
}

// ParseSeed validates and normalizes a seed URL. The normalized form is
// the Seed of the resulting report.
func ParseSeed(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSeed, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, raw)
	}
	return normalizeURL(u), nil
}
