package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkscan/internal/model"
)

// MarkdownWriter outputs reports as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...Option) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output, opts)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	if w.opts.trace {
		w.writeTrace(md, report)
	}
	w.writeLinks(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("linkscan Report")
	md.PlainText("")

	p := w.printer
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Domain", "`" + report.Domain + "`"},
			{"Domain Policy", report.DomainPolicy},
			{"Depth", depthLabel(report)},
			{"Crawl Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().String()},
			{"Pages Fetched", p.Sprintf("%d", report.Stats.PagesFetched)},
			{"Failures", p.Sprintf("%d", report.Stats.Failures)},
			{"Status", status(report)},
		},
	})
	md.PlainText("")

	switch {
	case report.Partial():
		md.Warningf("The crawl stopped early: %s.", status(report))
	case report.Stats.Failures > 0:
		md.Note(p.Sprintf("%d page(s) could not be fetched. Their links are unexplored.", report.Stats.Failures))
	}
	md.PlainText("")
}

// writeSummary writes the totals table and the distribution chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	p := w.printer
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"Internal", p.Sprintf("%d", report.TotalInternal())},
			{"External", p.Sprintf("%d", report.TotalExternal())},
			{"**Total**", "**" + p.Sprintf("%d", report.TotalLinks()) + "**"},
		},
	})
	md.PlainText("")

	if report.TotalLinks() == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Distribution"),
		piechart.WithShowData(true),
	)
	if n := report.TotalInternal(); n > 0 {
		chart.LabelAndIntValue("Internal", uint64(n))
	}
	if n := report.TotalExternal(); n > 0 {
		chart.LabelAndIntValue("External", uint64(n))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeTrace writes the crawl trace as a table.
func (w *MarkdownWriter) writeTrace(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Crawl Trace")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages were fetched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		code := "-"
		if page.StatusCode != 0 {
			code = strconv.Itoa(page.StatusCode)
		}
		result := "✅ fetched"
		if page.Failed() {
			result = "❌ " + truncateString(page.Error, 60)
		}
		rows = append(rows, []string{page.URL, strconv.Itoa(page.Depth), code, result})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Status", "Result"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeLinks writes the internal and external listings.
func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Internal Links")
	md.PlainText("")
	if w.opts.simple {
		writeMarkdownList(md, report.Internal.Members())
	} else {
		writeMarkdownGroups(md, GroupByExtension(report.Internal))
	}
	md.PlainTextf("Total Internal Links = %d", report.TotalInternal())
	md.PlainText("")

	md.H2("External Links")
	md.PlainText("")
	if w.opts.simple {
		writeMarkdownList(md, report.External.Members())
	} else {
		writeMarkdownGroups(md, GroupByDomain(report.External))
	}

	if w.opts.extSort {
		md.H2("External Links by Extension")
		md.PlainText("")
		writeMarkdownGroups(md, GroupByExtension(report.External))
	}

	md.PlainTextf("Total External Links = %d", report.TotalExternal())
	md.PlainText("")
	md.PlainTextf("Total Links = %d", report.TotalLinks())
	md.PlainText("")
}

func writeMarkdownList(md *markdown.Markdown, links []string) {
	if len(links) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}
	md.BulletList(links...)
	md.PlainText("")
}

func writeMarkdownGroups(md *markdown.Markdown, groups []Group) {
	if len(groups) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}
	for _, g := range groups {
		md.H3(g.Key)
		md.PlainText("")
		md.BulletList(g.Links...)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkscan %s](https://github.com/nao1215/linkscan)*", w.opts.version)
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
