package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkscan/internal/model"
)

// Default engine settings.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// Engine crawls a website from a seed URL.
// An Engine holds configuration only; every call to Crawl owns its own
// state, so one Engine may run several crawls concurrently.
type Engine struct {
	fetcher Fetcher

	// maxDepth bounds the depth of recorded and fetched internal links.
	// The seed has depth 1. Zero means unbounded.
	maxDepth int

	// maxPages caps the number of pages scheduled for fetch. Zero means unlimited.
	maxPages int

	// maxDuration stops scheduling after this much wall-clock time. Zero means no ceiling.
	maxDuration time.Duration

	// timeout bounds each fetch.
	timeout time.Duration

	// concurrency is the number of fetches in flight.
	concurrency int

	policy   DomainPolicy
	filter   pathFilter
	logger   *slog.Logger
	recorder Recorder

	onVisit   func(url string, depth int)
	onFailure func(url string, depth int, err error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the depth threshold. Zero or a negative value means unbounded.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = max(depth, 0)
	}
}

// WithMaxPages sets the page budget. Zero means unlimited.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		e.maxPages = max(n, 0)
	}
}

// WithMaxDuration sets the wall-clock ceiling of a crawl. Zero means none.
func WithMaxDuration(d time.Duration) Option {
	return func(e *Engine) {
		e.maxDuration = max(d, 0)
	}
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConcurrency sets the number of fetches allowed in flight.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithDomainPolicy sets the rule deciding which links are internal.
func WithDomainPolicy(p DomainPolicy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policy = p
		}
	}
}

// WithIgnorePatterns sets URL path patterns that are never fetched.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.filter.ignore = patterns
	}
}

// WithFollowPatterns restricts fetching to URL paths matching at least one pattern.
func WithFollowPatterns(patterns []string) Option {
	return func(e *Engine) {
		e.filter.follow = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the measurement sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithVisitHook registers a function called each time a page is scheduled
// for fetch.
func WithVisitHook(fn func(url string, depth int)) Option {
	return func(e *Engine) {
		e.onVisit = fn
	}
}

// WithFailureHook registers a function called each time a fetch fails.
func WithFailureHook(fn func(url string, depth int, err error)) Option {
	return func(e *Engine) {
		e.onFailure = fn
	}
}

// NewEngine creates a new Engine fetching pages with fetcher.
func NewEngine(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:     fetcher,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		policy:      ExactDomain{},
		logger:      slog.Default(),
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// task is one worklist entry.
type task struct {
	url   string
	depth int
}

// fetchResult is what a worker hands back to the coordinator.
type fetchResult struct {
	task    task
	resp    *Response
	parsed  *ParseResult
	err     error
	elapsed time.Duration
}

// crawlState is owned by the coordinator goroutine of one Crawl call.
type crawlState struct {
	classifier *Classifier
	report     *model.CrawlReport
	visited    model.LinkSet
	pending    []task
	scheduled  int
}

// Crawl crawls from seed and returns the collected links.
//
// Fetch failures never abort the crawl; they are recorded in the report
// and the failed page's subtree stays unexplored. When ctx is canceled,
// scheduling stops, in-flight fetches are drained and the partial report
// is returned together with ctx.Err(). Budget exhaustion also returns a
// partial report, flagged in its stats, with a nil error.
func (e *Engine) Crawl(ctx context.Context, seed string) (*model.CrawlReport, error) {
	seedURL, err := ParseSeed(seed)
	if err != nil {
		return nil, err
	}

	st := &crawlState{
		classifier: NewClassifier(seedURL, e.policy),
		report:     model.NewCrawlReport(seedURL.String(), Domain(seedURL)),
	}
	st.report.DomainPolicy = e.policy.Name()
	st.report.MaxDepth = e.maxDepth

	st.visited.Add(seedURL.String())
	st.pending = append(st.pending, task{url: seedURL.String(), depth: 1})

	e.logger.Debug("starting crawl", "seed", seedURL.String(), "policy", e.policy.Name(), "max_depth", e.maxDepth)

	var deadline <-chan time.Time
	if e.maxDuration > 0 {
		timer := time.NewTimer(e.maxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	results := make(chan fetchResult)
	var g errgroup.Group
	done := ctx.Done()
	inflight := 0
	stopped := false
	var stopErr error

	for {
		for !stopped && len(st.pending) > 0 && inflight < e.concurrency {
			if e.maxPages > 0 && st.scheduled >= e.maxPages {
				st.report.Stats.BudgetExhausted = true
				stopped = true
				e.logger.Debug("page budget exhausted", "seed", st.report.Seed, "max_pages", e.maxPages)
				break
			}
			t := st.pending[0]
			st.pending = st.pending[1:]
			st.scheduled++
			inflight++

			e.logger.Debug("crawling", "url", t.url, "depth", t.depth)
			if e.onVisit != nil {
				e.onVisit(t.url, t.depth)
			}
			g.Go(func() error {
				results <- e.fetch(ctx, t)
				return nil
			})
		}

		if inflight == 0 {
			break
		}

		select {
		case res := <-results:
			inflight--
			e.handle(st, res)
		case <-done:
			done = nil
			stopped = true
			stopErr = ctx.Err()
			e.logger.Debug("crawl canceled, draining in-flight fetches", "seed", st.report.Seed, "in_flight", inflight)
		case <-deadline:
			deadline = nil
			stopped = true
			st.report.Stats.TimedOut = true
			e.logger.Debug("crawl duration exceeded, draining in-flight fetches", "seed", st.report.Seed, "in_flight", inflight)
		}
	}

	// Cancellation may race with the last result.
	if stopErr == nil {
		stopErr = ctx.Err()
	}

	// Workers always return nil; Wait only guarantees they have exited.
	_ = g.Wait() //nolint:errcheck // workers never fail

	st.report.Finish(stopErr)
	e.logger.Debug("crawl finished",
		"seed", st.report.Seed,
		"pages", st.report.Stats.PagesFetched,
		"failures", st.report.Stats.Failures,
		"internal", st.report.TotalInternal(),
		"external", st.report.TotalExternal())

	return st.report, stopErr
}

// fetch runs on a worker goroutine. It touches no crawl state.
// Cancellation of ctx does not reach a started fetch; only the per-fetch
// timeout bounds it.
func (e *Engine) fetch(ctx context.Context, t task) fetchResult {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.fetcher.Fetch(fctx, t.url)
	res := fetchResult{task: t, resp: resp, err: err, elapsed: time.Since(start)}
	if err != nil {
		return res
	}

	parsed, perr := Extract(resp)
	if perr != nil {
		// Unparseable content yields no references.
		e.logger.Debug("failed to parse page", "url", t.url, "error", perr)
		parsed = &ParseResult{References: make([]string, 0)}
	}
	res.parsed = parsed
	return res
}

// handle runs on the coordinator. It records the page, classifies its
// references and schedules admitted internal links.
func (e *Engine) handle(st *crawlState, res fetchResult) {
	page := model.Page{URL: res.task.url, Depth: res.task.depth}
	if res.resp != nil {
		page.StatusCode = res.resp.StatusCode
		page.ContentType = res.resp.ContentType
	}

	e.recorder.ObserveFetch(page.StatusCode, res.elapsed, res.err)

	if res.err != nil {
		page.Status = model.PageFailed
		page.Error = res.err.Error()
		st.report.AddPage(page)
		e.logger.Warn("failed to crawl", "url", res.task.url, "depth", res.task.depth, "error", res.err)
		if e.onFailure != nil {
			e.onFailure(res.task.url, res.task.depth, res.err)
		}
		return
	}

	page.Status = model.PageFetched
	page.Size = int64(len(res.resp.Body))
	page.Title = res.parsed.Title
	page.LinksFound = len(res.parsed.References)
	st.report.AddPage(page)

	// A redirect may leave the site; such a page is external and not expanded.
	finalURL := res.resp.URL
	if finalURL == "" {
		finalURL = res.task.url
	}
	final, err := url.Parse(finalURL)
	if err != nil || !st.classifier.IsInternal(final) {
		e.logger.Debug("page redirected off-site, not expanded", "url", res.task.url, "final_url", finalURL)
		return
	}

	base := res.parsed.Base
	if base == nil {
		base = final
	}

	childDepth := res.task.depth + 1
	for _, raw := range res.parsed.References {
		u, ok := st.classifier.Resolve(base, raw)
		if !ok {
			continue
		}
		link := u.String()

		if !st.classifier.IsInternal(u) {
			if st.report.External.Add(link) {
				e.recorder.ObserveLink(false)
			}
			continue
		}

		if e.maxDepth > 0 && childDepth > e.maxDepth {
			continue
		}
		if st.report.Internal.Add(link) {
			e.recorder.ObserveLink(true)
		}
		if st.visited.Has(link) || !e.filter.allows(u) {
			continue
		}
		st.visited.Add(link)
		st.pending = append(st.pending, task{url: link, depth: childDepth})
	}
}
