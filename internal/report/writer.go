package report

import (
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/linkscan/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one crawl report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// It stops on the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Option configures how a writer lays out a report.
type Option func(*settings)

type settings struct {
	// simple lists links without grouping.
	simple bool

	// extSort adds external links grouped by extension.
	extSort bool

	// trace includes the per-page crawl trace.
	trace bool

	// pretty indents JSON output.
	pretty bool

	// version is embedded in JSON and Markdown output.
	version string
}

// WithSimple lists links as flat sets instead of groups.
func WithSimple(simple bool) Option {
	return func(s *settings) {
		s.simple = simple
	}
}

// WithExtSort adds a listing of external links grouped by extension.
func WithExtSort(extSort bool) Option {
	return func(s *settings) {
		s.extSort = extSort
	}
}

// WithTrace controls whether the crawl trace is written. It is on by default.
func WithTrace(trace bool) Option {
	return func(s *settings) {
		s.trace = trace
	}
}

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() Option {
	return func(s *settings) {
		s.pretty = true
	}
}

// WithVersion sets the linkscan version recorded in the output.
func WithVersion(version string) Option {
	return func(s *settings) {
		s.version = version
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output  io.Writer
	opts    settings
	printer *message.Printer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer, opts []Option) baseWriter {
	s := settings{trace: true, version: "dev"}
	for _, opt := range opts {
		opt(&s)
	}
	return baseWriter{
		output:  output,
		opts:    s,
		printer: message.NewPrinter(language.English),
	}
}

// status returns a short description of how the crawl ended.
func status(report *model.CrawlReport) string {
	switch {
	case report.Stats.Canceled:
		return "Canceled (partial results)"
	case report.Stats.TimedOut:
		return "Time budget exceeded (partial results)"
	case report.Stats.BudgetExhausted:
		return "Page budget exhausted (partial results)"
	case report.ErrorMessage != "":
		return "Error - " + report.ErrorMessage
	default:
		return "Complete"
	}
}

// depthLabel renders the depth threshold of a report.
func depthLabel(report *model.CrawlReport) string {
	if report.MaxDepth <= 0 {
		return "unbounded"
	}
	return strconv.Itoa(report.MaxDepth)
}
