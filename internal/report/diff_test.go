package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/linkscan/internal/model"
)

func createTestDiff() *model.LinkDiff {
	older := model.NewCrawlReport("https://example.com/", "example.com")
	older.StartedAt = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	older.Internal = model.NewLinkSet("https://example.com/old", "https://example.com/kept")
	older.External = model.NewLinkSet("https://gone.example/")

	newer := model.NewCrawlReport("https://example.com/", "example.com")
	newer.StartedAt = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	newer.Internal = model.NewLinkSet("https://example.com/new", "https://example.com/kept")
	newer.External = model.NewLinkSet()

	return model.Diff(older, newer)
}

func TestWriteDiffText(t *testing.T) {
	t.Parallel()

	t.Run("lists changes", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := WriteDiffText(&buf, createTestDiff()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{
			"Link changes for https://example.com/",
			"Previous crawl: 2025-01-01 10:00:00",
			"Current crawl:  2025-01-02 10:00:00",
			"New internal links (1):\n  [+] https://example.com/new\n",
			"Removed internal links (1):\n  [-] https://example.com/old\n",
			"Removed external links (1):\n  [-] https://gone.example/\n",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
		if strings.Contains(out, "kept") {
			t.Errorf("expected unchanged links to be omitted, got:\n%s", out)
		}
		if strings.Contains(out, "New external links") {
			t.Errorf("expected empty sections to be omitted, got:\n%s", out)
		}
	})

	t.Run("reports no changes", func(t *testing.T) {
		t.Parallel()
		r := model.NewCrawlReport("https://example.com/", "example.com")
		var buf bytes.Buffer
		if err := WriteDiffText(&buf, model.Diff(r, r)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No link changes.") {
			t.Errorf("expected no-change message, got:\n%s", buf.String())
		}
	})
}

func TestWriteDiffJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteDiffJSON(&buf, createTestDiff()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got model.LinkDiff
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(got.AddedInternal) != 1 || got.AddedInternal[0] != "https://example.com/new" {
		t.Errorf("unexpected added internal links: %v", got.AddedInternal)
	}
	if !got.NewerStartedAt.Equal(time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected newer timestamp: %v", got.NewerStartedAt)
	}
}

func TestWriteDiffMarkdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteDiffMarkdown(&buf, createTestDiff()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# Link Changes: https://example.com/",
		"| Internal | +1",
		"## New Internal Links (1)",
		"- https://example.com/new",
		"## Removed External Links (1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
