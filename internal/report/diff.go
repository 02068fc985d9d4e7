package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/linkscan/internal/model"
)

const diffTimeLayout = "2006-01-02 15:04:05"

// WriteDiffText writes the link changes between two crawls as plain text.
func WriteDiffText(output io.Writer, d *model.LinkDiff) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Link changes for %s\n", d.Seed)
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "\nPrevious crawl: %s\n", d.OlderStartedAt.Format(diffTimeLayout))
	fmt.Fprintf(&sb, "Current crawl:  %s\n", d.NewerStartedAt.Format(diffTimeLayout))

	fmt.Fprintf(&sb, "\n  %-10s  %-8s  %-8s\n", "Kind", "Added", "Removed")
	sb.WriteString("  " + strings.Repeat("-", 30) + "\n")
	fmt.Fprintf(&sb, "  %-10s  %-8s  %-8s\n", "Internal",
		fmt.Sprintf("+%d", len(d.AddedInternal)), fmt.Sprintf("-%d", len(d.RemovedInternal)))
	fmt.Fprintf(&sb, "  %-10s  %-8s  %-8s\n", "External",
		fmt.Sprintf("+%d", len(d.AddedExternal)), fmt.Sprintf("-%d", len(d.RemovedExternal)))

	if !d.HasChanges() {
		sb.WriteString("\nNo link changes.\n")
	}
	writeDiffSection(&sb, "New internal links", "+", d.AddedInternal)
	writeDiffSection(&sb, "Removed internal links", "-", d.RemovedInternal)
	writeDiffSection(&sb, "New external links", "+", d.AddedExternal)
	writeDiffSection(&sb, "Removed external links", "-", d.RemovedExternal)

	_, err := io.WriteString(output, sb.String())
	return err
}

func writeDiffSection(sb *strings.Builder, title, mark string, links []string) {
	if len(links) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s (%d):\n", title, len(links))
	for _, link := range links {
		fmt.Fprintf(sb, "  [%s] %s\n", mark, link)
	}
}

// WriteDiffJSON writes the link changes between two crawls as indented JSON.
func WriteDiffJSON(output io.Writer, d *model.LinkDiff) error {
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

// WriteDiffMarkdown writes the link changes between two crawls as Markdown.
func WriteDiffMarkdown(output io.Writer, d *model.LinkDiff) error {
	md := markdown.NewMarkdown(output)

	md.H1("Link Changes: " + d.Seed)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Added", "Removed"},
		Rows: [][]string{
			{"Internal", fmt.Sprintf("+%d", len(d.AddedInternal)), fmt.Sprintf("-%d", len(d.RemovedInternal))},
			{"External", fmt.Sprintf("+%d", len(d.AddedExternal)), fmt.Sprintf("-%d", len(d.RemovedExternal))},
		},
	})
	md.PlainText("")
	md.PlainTextf("Previous crawl: %s, current crawl: %s",
		d.OlderStartedAt.Format(diffTimeLayout), d.NewerStartedAt.Format(diffTimeLayout))
	md.PlainText("")

	if !d.HasChanges() {
		md.Note("No link changes.")
		md.PlainText("")
	}

	sections := []struct {
		title string
		links []string
	}{
		{"New Internal Links", d.AddedInternal},
		{"Removed Internal Links", d.RemovedInternal},
		{"New External Links", d.AddedExternal},
		{"Removed External Links", d.RemovedExternal},
	}
	for _, s := range sections {
		if len(s.links) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", s.title, len(s.links)))
		md.PlainText("")
		md.BulletList(s.links...)
		md.PlainText("")
	}

	return md.Build()
}
