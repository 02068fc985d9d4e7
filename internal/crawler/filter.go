package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// pathFilter decides which internal URLs are fetched based on glob
// patterns matched against the URL path. Filtered URLs are still
// classified and recorded.
type pathFilter struct {
	ignore []string
	follow []string
}

// allows reports whether u may be fetched.
// An ignore match always wins. When follow patterns exist, the path must
// match at least one of them.
func (f pathFilter) allows(u *url.URL) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.follow) == 0 {
		return true
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
		return strings.HasSuffix(path, "."+ext)
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash are matched against the last segment.
	if !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		return err == nil && matched
	}
	return false
}
