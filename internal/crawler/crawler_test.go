package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSite serves HTML pages from memory and counts fetches per URL.
type fakeSite struct {
	pages map[string]string
	delay time.Duration

	mu     sync.Mutex
	counts map[string]int

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{pages: pages, counts: make(map[string]int)}
}

func (s *fakeSite) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		current := s.maxInflight.Load()
		if n <= current || s.maxInflight.CompareAndSwap(current, n) {
			break
		}
	}

	s.mu.Lock()
	s.counts[rawURL]++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	body, ok := s.pages[rawURL]
	if !ok {
		return &Response{URL: rawURL, StatusCode: http.StatusNotFound}, &StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return &Response{URL: rawURL, StatusCode: http.StatusOK, ContentType: "text/html; charset=utf-8", Body: []byte(body)}, nil
}

func (s *fakeSite) count(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[rawURL]
}

func (s *fakeSite) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

func links(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">x</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("http://a.example/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(`<html><head><title> Test Page </title></head></html>`))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("extracts href src and action from reference elements", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<link rel="stylesheet" href="/style.css">
			<script src="app.js"></script>
		</head><body>
			<a href="/about">About</a>
			<img src="http://cdn.example/logo.png">
			<iframe src="https://video.example/embed"></iframe>
			<form action="/search"></form>
			<div href="/ignored-div"></div>
			<video src="/ignored-video.mp4"></video>
		</body></html>`

		parser, err := NewParser("http://a.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{
			"/style.css",
			"app.js",
			"/about",
			"http://cdn.example/logo.png",
			"https://video.example/embed",
			"/search",
		}
		if !slices.Equal(result.References, want) {
			t.Errorf("expected %v, got %v", want, result.References)
		}
	})

	t.Run("skips non-navigable references", func(t *testing.T) {
		t.Parallel()

		html := links("javascript:void(0)", "mailto:a@example.com", "tel:+100", "data:text/plain,hi", "#top", "", "   ", "JavaScript:alert(1)", "/kept")
		parser, err := NewParser("http://a.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if !slices.Equal(result.References, []string{"/kept"}) {
			t.Errorf("expected only /kept, got %v", result.References)
		}
	})

	t.Run("collapses duplicates within a page", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("http://a.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(links("/a", "/b", "/a", " /b ")))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if !slices.Equal(result.References, []string{"/a", "/b"}) {
			t.Errorf("expected [/a /b], got %v", result.References)
		}
	})

	t.Run("honors base href", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("http://a.example/dir/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(`<html><head><base href="/other/"></head><body><a href="x.html">x</a></body></html>`))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Base.String() != "http://a.example/other/" {
			t.Errorf("expected base http://a.example/other/, got %s", result.Base)
		}
	})

	t.Run("malformed markup yields recovered references", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("http://a.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(`<a href="/ok"><div><<<>>> <a href=`))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if !slices.Contains(result.References, "/ok") {
			t.Errorf("expected /ok to be recovered, got %v", result.References)
		}
	})

	t.Run("returns error for invalid base URL", func(t *testing.T) {
		t.Parallel()

		if _, err := NewParser("://invalid"); err == nil {
			t.Error("expected error for invalid base URL")
		}
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("non-HTML content yields no references", func(t *testing.T) {
		t.Parallel()

		result, err := Extract(&Response{
			URL:         "http://a.example/file.pdf",
			ContentType: "application/pdf",
			Body:        []byte(`<a href="/looks-like-html">x</a>`),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.References) != 0 {
			t.Errorf("expected no references, got %v", result.References)
		}
	})

	t.Run("sniffs a missing content type", func(t *testing.T) {
		t.Parallel()

		result, err := Extract(&Response{
			URL:  "http://a.example/",
			Body: []byte(`<!DOCTYPE html><html><body><a href="/sniffed">x</a></body></html>`),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(result.References, []string{"/sniffed"}) {
			t.Errorf("expected [/sniffed], got %v", result.References)
		}
	})

	t.Run("decodes declared charset", func(t *testing.T) {
		t.Parallel()

		body := []byte("<html><body><a href=\"/caf\xe9.html\">x</a></body></html>")
		result, err := Extract(&Response{
			URL:         "http://a.example/",
			ContentType: "text/html; charset=iso-8859-1",
			Body:        body,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(result.References, []string{"/café.html"}) {
			t.Errorf("expected [/café.html], got %v", result.References)
		}
	})
}

func TestClassifier(t *testing.T) {
	t.Parallel()

	seed, _ := url.Parse("http://a.example/index")
	base, _ := url.Parse("http://a.example/docs/page.html")
	c := NewClassifier(seed, nil)

	tests := []struct {
		name     string
		raw      string
		want     string
		ok       bool
		internal bool
	}{
		{name: "relative path", raw: "guide.html", want: "http://a.example/docs/guide.html", ok: true, internal: true},
		{name: "root relative", raw: "/about", want: "http://a.example/about", ok: true, internal: true},
		{name: "parent directory", raw: "../up", want: "http://a.example/up", ok: true, internal: true},
		{name: "absolute external", raw: "https://other.example/x", want: "https://other.example/x", ok: true},
		{name: "protocol relative", raw: "//cdn.example/lib.js", want: "http://cdn.example/lib.js", ok: true},
		{name: "fragment is dropped", raw: "/about#team", want: "http://a.example/about", ok: true, internal: true},
		{name: "host is lowercased", raw: "HTTP://A.EXAMPLE/Path", want: "http://a.example/Path", ok: true, internal: true},
		{name: "empty path becomes root", raw: "http://other.example", want: "http://other.example/", ok: true},
		{name: "relative name starting with http", raw: "httpdocs/a.html", want: "http://a.example/docs/httpdocs/a.html", ok: true, internal: true},
		{name: "different port is external", raw: "http://a.example:8080/", want: "http://a.example:8080/", ok: true},
		{name: "ftp rejected", raw: "ftp://files.example/a", ok: false},
		{name: "mailto rejected", raw: "mailto:x@a.example", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, ok := c.Resolve(base, tt.raw)
			if ok != tt.ok {
				t.Fatalf("Resolve(%q) ok = %v, expected %v", tt.raw, ok, tt.ok)
			}
			if !ok {
				return
			}
			if u.String() != tt.want {
				t.Errorf("Resolve(%q) = %q, expected %q", tt.raw, u.String(), tt.want)
			}
			if got := c.IsInternal(u); got != tt.internal {
				t.Errorf("IsInternal(%q) = %v, expected %v", u, got, tt.internal)
			}
		})
	}
}

func TestDomainPolicies(t *testing.T) {
	t.Parallel()

	mustParse := func(s string) *url.URL {
		u, err := url.Parse(s)
		if err != nil {
			t.Fatal(err)
		}
		return u
	}
	seed := mustParse("https://www.example.co.uk/")

	tests := []struct {
		candidate                     string
		exact, subdomain, registrable bool
	}{
		{"https://www.example.co.uk/a", true, true, true},
		{"https://blog.www.example.co.uk/", false, true, true},
		{"https://shop.example.co.uk/", false, false, true},
		{"https://www.example.co.uk:8443/", false, true, true},
		{"https://example.com/", false, false, false},
		{"https://evilwww.example.co.uk/", false, false, true},
		{"https://other.co.uk/", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			t.Parallel()

			c := mustParse(tt.candidate)
			if got := (ExactDomain{}).SameSite(seed, c); got != tt.exact {
				t.Errorf("exact: got %v, expected %v", got, tt.exact)
			}
			if got := (SubdomainAware{}).SameSite(seed, c); got != tt.subdomain {
				t.Errorf("subdomain: got %v, expected %v", got, tt.subdomain)
			}
			if got := (RegistrableDomain{}).SameSite(seed, c); got != tt.registrable {
				t.Errorf("registrable: got %v, expected %v", got, tt.registrable)
			}
		})
	}

	t.Run("registrable falls back to host equality for IPs", func(t *testing.T) {
		t.Parallel()
		ip := mustParse("http://127.0.0.1:8080/")
		if !(RegistrableDomain{}).SameSite(ip, mustParse("http://127.0.0.1:9090/x")) {
			t.Error("expected same IP host to be same site")
		}
		if (RegistrableDomain{}).SameSite(ip, mustParse("http://127.0.0.2/")) {
			t.Error("expected different IP host to be external")
		}
	})
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]string{
		"":            PolicyExact,
		"exact":       PolicyExact,
		"Subdomain":   PolicySubdomain,
		"registrable": PolicyRegistrable,
	} {
		p, err := ParsePolicy(name)
		if err != nil {
			t.Errorf("ParsePolicy(%q) returned error: %v", name, err)
			continue
		}
		if p.Name() != want {
			t.Errorf("ParsePolicy(%q) = %q, expected %q", name, p.Name(), want)
		}
	}

	if _, err := ParsePolicy("fuzzy"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin/dashboard", true},
		{"/admin/*", "/admin", true},
		{"/admin/*", "/administrator", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.pdfx", false},
		{"/api/v?", "/api/v1", true},
		{"/api/v?", "/api/v10", false},
		{"logout*", "/account/logout-now", true},
		{"/exact", "/exact", true},
		{"[", "/anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	u := func(p string) *url.URL { return &url.URL{Scheme: "http", Host: "a.example", Path: p} }

	t.Run("no patterns allows all", func(t *testing.T) {
		t.Parallel()
		if !(pathFilter{}).allows(u("/anything")) {
			t.Error("expected URL to be allowed")
		}
	})

	t.Run("ignore takes precedence over follow", func(t *testing.T) {
		t.Parallel()
		f := pathFilter{ignore: []string{"/docs/private/*"}, follow: []string{"/docs/*"}}
		if !f.allows(u("/docs/guide")) {
			t.Error("expected /docs/guide to be allowed")
		}
		if f.allows(u("/docs/private/key")) {
			t.Error("expected ignored path to be rejected")
		}
		if f.allows(u("/blog/post")) {
			t.Error("expected path outside follow patterns to be rejected")
		}
	})

	t.Run("empty path treated as root", func(t *testing.T) {
		t.Parallel()
		f := pathFilter{follow: []string{"/"}}
		if !f.allows(u("")) {
			t.Error("expected empty path to match /")
		}
	})
}

func TestEngineCrawl(t *testing.T) {
	t.Parallel()

	t.Run("depth threshold bounds recording and fetching", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/index": links("/page2"),
			"http://a.example/page2": links("page3", "http://other.example/"),
			"http://a.example/page3": links("/page4"),
		})
		engine := NewEngine(site, WithMaxDepth(2), WithLogger(quietLogger()))

		report, err := engine.Crawl(context.Background(), "http://a.example/index")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := report.Internal.Members(); !slices.Equal(got, []string{"http://a.example/page2"}) {
			t.Errorf("expected internal {page2}, got %v", got)
		}
		if got := report.External.Members(); !slices.Equal(got, []string{"http://other.example/"}) {
			t.Errorf("expected external {other.example}, got %v", got)
		}
		if site.count("http://a.example/page3") != 0 {
			t.Error("page3 exceeds the threshold and must not be fetched")
		}
		if report.Stats.PagesFetched != 2 {
			t.Errorf("expected 2 pages fetched, got %d", report.Stats.PagesFetched)
		}
		if report.MaxDepth != 2 {
			t.Errorf("expected MaxDepth 2 in report, got %d", report.MaxDepth)
		}
	})

	t.Run("threshold of one fetches only the seed", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/": links("/a", "http://b.example/x"),
		})
		report, err := NewEngine(site, WithMaxDepth(1), WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.TotalInternal() != 0 {
			t.Errorf("expected no internal links, got %v", report.Internal.Members())
		}
		if report.TotalExternal() != 1 {
			t.Errorf("expected external links to be recorded regardless of depth, got %v", report.External.Members())
		}
		if site.total() != 1 {
			t.Errorf("expected one fetch, got %d", site.total())
		}
	})

	t.Run("self loop is classified once and not refetched", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/": links("/", "http://a.example/#top", "http://a.example"),
		})
		report, err := NewEngine(site, WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := report.Internal.Members(); !slices.Equal(got, []string{"http://a.example/"}) {
			t.Errorf("expected internal {seed}, got %v", got)
		}
		if site.count("http://a.example/") != 1 {
			t.Errorf("expected seed to be fetched once, got %d", site.count("http://a.example/"))
		}
	})

	t.Run("unbounded crawl reaches the whole site and terminates on cycles", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/":  links("/a", "/b"),
			"http://a.example/a": links("/b", "/c", "https://x.example/"),
			"http://a.example/b": links("/a", "/"),
			"http://a.example/c": links("/a", "https://y.example/img.png"),
		})
		report, err := NewEngine(site, WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantInternal := []string{"http://a.example/", "http://a.example/a", "http://a.example/b", "http://a.example/c"}
		if got := report.Internal.Members(); !slices.Equal(got, wantInternal) {
			t.Errorf("expected %v, got %v", wantInternal, got)
		}
		if report.TotalExternal() != 2 {
			t.Errorf("expected 2 external links, got %v", report.External.Members())
		}
		for _, u := range wantInternal {
			if c := site.count(u); c != 1 {
				t.Errorf("expected %s to be fetched once, got %d", u, c)
			}
		}
		for _, u := range report.Internal.Members() {
			if report.External.Has(u) {
				t.Errorf("%s is both internal and external", u)
			}
		}
	})

	t.Run("fetch failure truncates only its branch", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/":       links("/missing", "/ok"),
			"http://a.example/ok":     links("/deeper"),
			"http://a.example/deeper": links(),
		})
		var failed []string
		engine := NewEngine(site,
			WithLogger(quietLogger()),
			WithFailureHook(func(u string, _ int, err error) {
				var se *StatusError
				if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
					failed = append(failed, u)
				}
			}))

		report, err := engine.Crawl(context.Background(), "http://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(failed, []string{"http://a.example/missing"}) {
			t.Errorf("expected failure hook for /missing, got %v", failed)
		}
		if report.Stats.Failures != 1 {
			t.Errorf("expected 1 failure, got %d", report.Stats.Failures)
		}
		if !report.Internal.Has("http://a.example/missing") {
			t.Error("a failed link is still an internal link")
		}
		if site.count("http://a.example/deeper") != 1 {
			t.Error("expected sibling branch to be crawled")
		}
		failures := report.Failures()
		if len(failures) != 1 || failures[0].StatusCode != http.StatusNotFound {
			t.Errorf("unexpected failures %+v", failures)
		}
	})

	t.Run("visit hook reports pages in scheduling order with depth", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/":  links("/a"),
			"http://a.example/a": links(),
		})
		var visits []string
		engine := NewEngine(site,
			WithConcurrency(1),
			WithLogger(quietLogger()),
			WithVisitHook(func(u string, depth int) {
				visits = append(visits, fmt.Sprintf("%d %s", depth, u))
			}))

		report, err := engine.Crawl(context.Background(), "http://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"1 http://a.example/", "2 http://a.example/a"}
		if !slices.Equal(visits, want) {
			t.Errorf("expected %v, got %v", want, visits)
		}
		if !slices.Equal(report.Visited(), []string{"http://a.example/", "http://a.example/a"}) {
			t.Errorf("unexpected visited list %v", report.Visited())
		}
	})

	t.Run("ignore patterns keep links recorded but unfetched", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/":            links("/admin/panel", "/docs/a"),
			"http://a.example/docs/a":      links(),
			"http://a.example/admin/panel": links("/admin/secret"),
		})
		report, err := NewEngine(site,
			WithIgnorePatterns([]string{"/admin/*"}),
			WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Internal.Has("http://a.example/admin/panel") {
			t.Error("expected ignored link to be recorded")
		}
		if site.count("http://a.example/admin/panel") != 0 {
			t.Error("expected ignored link not to be fetched")
		}
	})

	t.Run("rejects invalid seed", func(t *testing.T) {
		t.Parallel()

		for _, seed := range []string{"", "/relative", "ftp://a.example/", "http://"} {
			_, err := NewEngine(newFakeSite(nil)).Crawl(context.Background(), seed)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("Crawl(%q): expected ErrInvalidSeed, got %v", seed, err)
			}
		}
	})
}

func TestEngineBudgets(t *testing.T) {
	t.Parallel()

	chain := func(n int) map[string]string {
		pages := make(map[string]string)
		for i := range n {
			u := fmt.Sprintf("http://a.example/p%d", i)
			pages[u] = links(fmt.Sprintf("/p%d", i+1))
		}
		return pages
	}

	t.Run("max pages stops scheduling", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(chain(10))
		report, err := NewEngine(site, WithMaxPages(3), WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/p0")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.total() != 3 {
			t.Errorf("expected 3 fetches, got %d", site.total())
		}
		if !report.Stats.BudgetExhausted {
			t.Error("expected BudgetExhausted")
		}
		if !report.Partial() {
			t.Error("expected a partial report")
		}
	})

	t.Run("max duration stops scheduling and drains", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(chain(50))
		site.delay = 30 * time.Millisecond
		report, err := NewEngine(site,
			WithMaxDuration(10*time.Millisecond),
			WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/p0")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Stats.TimedOut {
			t.Error("expected TimedOut")
		}
		if report.Stats.PagesFetched != 1 {
			t.Errorf("expected the in-flight seed fetch to drain, got %d pages", report.Stats.PagesFetched)
		}
	})

	t.Run("cancellation returns partial results", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{
			"http://a.example/":      links("/slow1", "/slow2"),
			"http://a.example/slow1": links("/never"),
			"http://a.example/slow2": links(),
		})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// In-flight fetches honour their context, so they only complete if
		// cancellation does not reach them.
		slow := FetcherFunc(func(fctx context.Context, rawURL string) (*Response, error) {
			if strings.Contains(rawURL, "slow") {
				select {
				case <-fctx.Done():
					return nil, fctx.Err()
				case <-time.After(50 * time.Millisecond):
				}
			}
			return site.Fetch(fctx, rawURL)
		})
		engine := NewEngine(slow,
			WithLogger(quietLogger()),
			WithVisitHook(func(u string, _ int) {
				if strings.HasSuffix(u, "/slow2") {
					cancel()
				}
			}))

		report, err := engine.Crawl(ctx, "http://a.example/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if report == nil {
			t.Fatal("expected a partial report")
		}
		if !report.Stats.Canceled {
			t.Error("expected Canceled in stats")
		}
		if report.Stats.PagesFetched != 3 {
			t.Errorf("expected in-flight fetches to complete, got %d pages", report.Stats.PagesFetched)
		}
		if report.Stats.Failures != 0 {
			t.Errorf("expected no failures, got %d: %+v", report.Stats.Failures, report.Pages)
		}
		if site.count("http://a.example/never") != 0 {
			t.Error("expected no new fetch to be scheduled after cancellation")
		}
	})

	t.Run("cancellation during a single fetch keeps the page", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{"http://a.example/": links("/next")})
		site.delay = 100 * time.Millisecond
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		engine := NewEngine(site,
			WithLogger(quietLogger()),
			WithVisitHook(func(string, int) {
				time.AfterFunc(10*time.Millisecond, cancel)
			}))

		report, err := engine.Crawl(ctx, "http://a.example/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if report.Stats.PagesFetched != 1 || report.Stats.Failures != 0 {
			t.Errorf("expected the seed fetch to finish, got %+v", report.Stats)
		}
		if site.count("http://a.example/next") != 0 {
			t.Error("expected /next not to be fetched")
		}
	})

	t.Run("concurrent workers fetch each URL once", func(t *testing.T) {
		t.Parallel()

		pages := make(map[string]string)
		for i := range 40 {
			var hrefs []string
			for j := range 40 {
				if j != i {
					hrefs = append(hrefs, fmt.Sprintf("/n%d", j))
				}
			}
			pages[fmt.Sprintf("http://a.example/n%d", i)] = links(hrefs...)
		}
		site := newFakeSite(pages)
		site.delay = time.Millisecond

		report, err := NewEngine(site, WithConcurrency(8), WithLogger(quietLogger())).Crawl(context.Background(), "http://a.example/n0")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.TotalInternal() != 40 {
			t.Errorf("expected 40 internal links, got %d", report.TotalInternal())
		}
		for u := range pages {
			if c := site.count(u); c != 1 {
				t.Errorf("expected %s to be fetched once, got %d", u, c)
			}
		}
		if m := site.maxInflight.Load(); m > 8 {
			t.Errorf("expected at most 8 fetches in flight, got %d", m)
		}
	})

	t.Run("independent engines do not share state", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string]string{"http://a.example/": links("/x")})
		engine := NewEngine(site, WithLogger(quietLogger()))

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				report, err := engine.Crawl(context.Background(), "http://a.example/")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if report.Stats.PagesFetched != 1 || report.Stats.Failures != 1 {
					t.Errorf("unexpected stats %+v", report.Stats)
				}
			}()
		}
		wg.Wait()
	})
}

func TestEngineWithHTTPServer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != "linkscan-test" {
			http.Error(w, "bad agent", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Home</title><link href="/style.css"></head><body>
			<a href="/docs/">Docs</a>
			<a href="/old">Old</a>
			<img src="/logo.png">
			<a href="/gone">Gone</a>
			<a href="https://github.com/nao1215">GitHub</a>
		</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<a href="guide.pdf">Guide</a>`)) //nolint:errcheck
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(`a { background: url(/never-parsed.png) }`)) //nolint:errcheck
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'}) //nolint:errcheck
	})
	mux.HandleFunc("/docs/guide.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4")) //nolint:errcheck
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client(), WithUserAgent("linkscan-test"), WithMaxBodySize(1024))
	report, err := NewEngine(fetcher, WithLogger(quietLogger())).Crawl(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, path := range []string{"/docs/", "/old", "/logo.png", "/style.css", "/gone", "/docs/guide.pdf"} {
		if !report.Internal.Has(server.URL + path) {
			t.Errorf("expected %s to be internal, got %v", path, report.Internal.Members())
		}
	}
	if report.Internal.Has(server.URL + "/never-parsed.png") {
		t.Error("non-HTML content must not be parsed")
	}
	if !report.External.Has("https://github.com/nao1215") {
		t.Errorf("expected GitHub link to be external, got %v", report.External.Members())
	}
	if report.Stats.Failures != 1 {
		t.Errorf("expected the 404 to be the only failure, got %d", report.Stats.Failures)
	}
	if report.Pages[0].Title != "Home" {
		t.Errorf("expected seed title to be recorded, got %q", report.Pages[0].Title)
	}
}

func TestEngineOffSiteRedirect(t *testing.T) {
	t.Parallel()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/elsewhere">Elsewhere</a> <a href="https://harvested.example/">Harvested</a>`)) //nolint:errcheck
	}))
	defer other.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/away">Away</a>`)) //nolint:errcheck
	})
	mux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL+"/landing", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(server.Client())
	report, err := NewEngine(fetcher, WithLogger(quietLogger())).Crawl(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !report.Internal.Has(server.URL + "/away") {
		t.Errorf("expected /away to be internal, got %v", report.Internal.Members())
	}
	if report.TotalExternal() != 0 {
		t.Errorf("expected links of the off-site page to be skipped, got %v", report.External.Members())
	}
	if report.TotalInternal() != 1 {
		t.Errorf("expected only /away to be internal, got %v", report.Internal.Members())
	}
	if report.Stats.PagesFetched != 2 || report.Stats.Failures != 0 {
		t.Errorf("unexpected stats %+v", report.Stats)
	}
}

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/big":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(strings.Repeat("a", 100))) //nolint:errcheck
		case "/error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			if r.Header.Get("Accept") == "" {
				t.Error("expected Accept header")
			}
			_, _ = w.Write([]byte("ok")) //nolint:errcheck
		}
	}))
	t.Cleanup(server.Close)

	f := NewHTTPFetcher(server.Client(), WithMaxBodySize(10))

	t.Run("truncates large bodies", func(t *testing.T) {
		t.Parallel()
		resp, err := f.Fetch(context.Background(), server.URL+"/big")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(resp.Body))
		}
	})

	t.Run("non-2xx returns StatusError", func(t *testing.T) {
		t.Parallel()
		resp, err := f.Fetch(context.Background(), server.URL+"/error")
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if se.StatusCode != http.StatusInternalServerError || resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("unexpected status %d", se.StatusCode)
		}
		if !strings.Contains(se.Error(), "Internal Server Error") {
			t.Errorf("unexpected message %q", se.Error())
		}
	})

	t.Run("respects context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.Fetch(ctx, server.URL+"/"); err == nil {
			t.Error("expected error for canceled context")
		}
	})
}
