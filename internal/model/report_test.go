package model

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func TestNewCrawlReport(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("https://example.com/", "example.com")

	if report.Seed != "https://example.com/" {
		t.Errorf("expected seed to be set, got %q", report.Seed)
	}
	if report.Domain != "example.com" {
		t.Errorf("expected domain to be set, got %q", report.Domain)
	}
	if report.StartedAt.IsZero() || time.Since(report.StartedAt) > time.Second {
		t.Error("expected StartedAt to be recent")
	}
	if report.Pages == nil {
		t.Error("expected Pages to be initialized")
	}
	if report.TotalLinks() != 0 {
		t.Errorf("expected no links, got %d", report.TotalLinks())
	}
}

func TestCrawlReportPages(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("https://example.com/", "example.com")
	report.AddPage(Page{URL: "https://example.com/", Depth: 1, Status: PageFetched, StatusCode: 200})
	report.AddPage(Page{URL: "https://example.com/missing", Depth: 2, Status: PageFailed, StatusCode: 404, Error: "404 Not Found"})
	report.AddPage(Page{URL: "https://example.com/a", Depth: 2, Status: PageFetched, StatusCode: 200})

	if report.Stats.PagesFetched != 2 {
		t.Errorf("expected 2 fetched pages, got %d", report.Stats.PagesFetched)
	}
	if report.Stats.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", report.Stats.Failures)
	}

	wantVisited := []string{"https://example.com/", "https://example.com/missing", "https://example.com/a"}
	if got := report.Visited(); !slices.Equal(got, wantVisited) {
		t.Errorf("expected %v, got %v", wantVisited, got)
	}

	failures := report.Failures()
	if len(failures) != 1 || failures[0].URL != "https://example.com/missing" {
		t.Errorf("unexpected failures %v", failures)
	}
}

func TestCrawlReportTotals(t *testing.T) {
	t.Parallel()

	report := NewCrawlReport("http://s.example/", "s.example")
	report.Internal.Add("http://s.example/a")
	report.Internal.Add("http://s.example/b")
	report.External.Add("http://x.example/")

	if report.TotalInternal() != 2 {
		t.Errorf("expected 2 internal, got %d", report.TotalInternal())
	}
	if report.TotalExternal() != 1 {
		t.Errorf("expected 1 external, got %d", report.TotalExternal())
	}
	if report.TotalLinks() != 3 {
		t.Errorf("expected 3 total, got %d", report.TotalLinks())
	}
}

func TestCrawlReportFinish(t *testing.T) {
	t.Parallel()

	t.Run("nil error leaves report complete", func(t *testing.T) {
		t.Parallel()
		report := NewCrawlReport("http://s.example/", "s.example")
		report.Finish(nil)
		if report.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
		if report.Partial() {
			t.Error("expected a complete report")
		}
		if report.ErrorMessage != "" {
			t.Errorf("expected no error message, got %q", report.ErrorMessage)
		}
	})

	t.Run("cancellation marks the report partial", func(t *testing.T) {
		t.Parallel()
		report := NewCrawlReport("http://s.example/", "s.example")
		report.Finish(fmt.Errorf("crawl stopped: %w", context.Canceled))
		if !report.Stats.Canceled {
			t.Error("expected Canceled to be set")
		}
		if !report.Partial() {
			t.Error("expected a partial report")
		}
		if !errors.Is(report.Error, context.Canceled) {
			t.Errorf("expected wrapped context.Canceled, got %v", report.Error)
		}
	})
}

func TestDiff(t *testing.T) {
	t.Parallel()

	older := NewCrawlReport("http://s.example/", "s.example")
	older.Internal = NewLinkSet("http://s.example/a", "http://s.example/b")
	older.External = NewLinkSet("http://x.example/")

	newer := NewCrawlReport("http://s.example/", "s.example")
	newer.Internal = NewLinkSet("http://s.example/b", "http://s.example/c")
	newer.External = NewLinkSet("http://x.example/", "http://y.example/")

	d := Diff(older, newer)
	if !d.HasChanges() {
		t.Fatal("expected changes")
	}
	if !slices.Equal(d.AddedInternal, []string{"http://s.example/c"}) {
		t.Errorf("unexpected added internal %v", d.AddedInternal)
	}
	if !slices.Equal(d.RemovedInternal, []string{"http://s.example/a"}) {
		t.Errorf("unexpected removed internal %v", d.RemovedInternal)
	}
	if !slices.Equal(d.AddedExternal, []string{"http://y.example/"}) {
		t.Errorf("unexpected added external %v", d.AddedExternal)
	}
	if len(d.RemovedExternal) != 0 {
		t.Errorf("expected no removed external, got %v", d.RemovedExternal)
	}

	if Diff(newer, newer).HasChanges() {
		t.Error("a report compared with itself must have no changes")
	}
}
