package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/linkscan/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
// Each call to Write emits one JSON document followed by a newline, so a
// batch of seeds produces a stream of documents.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...Option) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output, opts)}
}

// JSONReport wraps a crawl report with its groupings and totals.
type JSONReport struct {
	// Version is the linkscan version that generated this report.
	Version string `json:"version"`

	// GeneratedAt is when the document was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Report is the full crawl report.
	Report *model.CrawlReport `json:"report"`

	// InternalByExtension groups internal links by extension. Omitted in simple mode.
	InternalByExtension []Group `json:"internal_by_extension,omitempty"`

	// ExternalByDomain groups external links by domain. Omitted in simple mode.
	ExternalByDomain []Group `json:"external_by_domain,omitempty"`

	// ExternalByExtension groups external links by extension when requested.
	ExternalByExtension []Group `json:"external_by_extension,omitempty"`

	// Totals repeats the link counts.
	Totals Totals `json:"totals"`
}

// Totals holds the link counts of a report.
type Totals struct {
	Internal int `json:"internal"`
	External int `json:"external"`
	Links    int `json:"links"`
}

// NewJSONReport builds the JSON document for a report.
func (w *JSONWriter) NewJSONReport(report *model.CrawlReport) *JSONReport {
	doc := &JSONReport{
		Version:     w.opts.version,
		GeneratedAt: time.Now(),
		Report:      report,
		Totals: Totals{
			Internal: report.TotalInternal(),
			External: report.TotalExternal(),
			Links:    report.TotalLinks(),
		},
	}
	if !w.opts.simple {
		doc.InternalByExtension = GroupByExtension(report.Internal)
		doc.ExternalByDomain = GroupByDomain(report.External)
	}
	if w.opts.extSort {
		doc.ExternalByExtension = GroupByExtension(report.External)
	}
	if !w.opts.trace {
		trimmed := *report
		trimmed.Pages = nil
		doc.Report = &trimmed
	}
	return doc
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(w.NewJSONReport(report))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.opts.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
