package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkscan/internal/model"
)

// TextWriter outputs the plain-text report.
//
// The layout is, in order: the crawl trace, a summary header, internal
// links (grouped by extension unless simple), the internal total, external
// links (grouped by domain unless simple), optionally external links
// grouped by extension, the external total and the grand total.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...Option) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write outputs the report in text format.
func (w *TextWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	if w.opts.trace {
		w.writeTrace(&sb, report)
	}
	w.writeHeader(&sb, report)

	sb.WriteString("\nInternal links:\n\n")
	if w.opts.simple {
		writeFlat(&sb, report.Internal)
	} else {
		writeGroups(&sb, GroupByExtension(report.Internal))
	}
	fmt.Fprintf(&sb, "\nTotal Internal Links = %d\n", report.TotalInternal())

	sb.WriteString("\nExternal links:\n\n")
	if w.opts.simple {
		writeFlat(&sb, report.External)
	} else {
		writeGroups(&sb, GroupByDomain(report.External))
	}

	if w.opts.extSort {
		sb.WriteString("\nExternal links sorted based on extensions:\n\n")
		writeGroups(&sb, GroupByExtension(report.External))
	}

	fmt.Fprintf(&sb, "\nTotal External Links = %d\n", report.TotalExternal())
	fmt.Fprintf(&sb, "\nTotal Links = %d\n\n", report.TotalLinks())

	return io.WriteString(w.output, sb.String())
}

// writeTrace writes one line per scheduled page.
func (w *TextWriter) writeTrace(sb *strings.Builder, report *model.CrawlReport) {
	for _, page := range report.Pages {
		fmt.Fprintf(sb, "Crawling: %s\n", page.URL)
		if page.Failed() {
			fmt.Fprintf(sb, "Failed to crawl: %s (%s)\n", page.URL, page.Error)
		}
	}
}

// writeHeader writes the summary banner.
func (w *TextWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          LINKSCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	p := w.printer
	sb.WriteString(p.Sprintf("Seed:           %s\n", report.Seed))
	sb.WriteString(p.Sprintf("Domain:         %s (%s)\n", report.Domain, report.DomainPolicy))
	sb.WriteString(p.Sprintf("Depth:          %s\n", depthLabel(report)))
	sb.WriteString(p.Sprintf("Crawl Date:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(p.Sprintf("Duration:       %v\n", report.Duration()))
	sb.WriteString(p.Sprintf("Pages Fetched:  %d\n", report.Stats.PagesFetched))
	sb.WriteString(p.Sprintf("Failures:       %d\n", report.Stats.Failures))
	sb.WriteString(p.Sprintf("Status:         %s\n", status(report)))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
}

func writeFlat(sb *strings.Builder, set model.LinkSet) {
	for _, link := range set.Members() {
		fmt.Fprintf(sb, "\t%s\n", link)
	}
}

func writeGroups(sb *strings.Builder, groups []Group) {
	for _, g := range groups {
		fmt.Fprintf(sb, "%s\n\n", g.Key)
		for _, link := range g.Links {
			fmt.Fprintf(sb, "\t%s\n", link)
		}
		sb.WriteString("\n")
	}
}

// WriteTotals writes the totals of each report. It is used to echo the
// outcome on the terminal when the report itself went to a file.
func WriteTotals(output io.Writer, reports ...*model.CrawlReport) error {
	var sb strings.Builder
	for _, r := range reports {
		if len(reports) > 1 {
			fmt.Fprintf(&sb, "\n%s\n", r.Seed)
		}
		fmt.Fprintf(&sb, "\nTotal Internal Links Found = %d\n", r.TotalInternal())
		fmt.Fprintf(&sb, "\nTotal External Links Found = %d\n", r.TotalExternal())
		fmt.Fprintf(&sb, "\nTotal Links Found = %d\n", r.TotalLinks())
	}
	_, err := io.WriteString(output, sb.String())
	return err
}
