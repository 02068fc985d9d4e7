package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/linkscan/internal/model"
)

// ErrNoReport is returned by steps that need a report when CrawlStep did
// not produce one.
var ErrNoReport = errors.New("no crawl report")

// Crawler runs one crawl. *crawler.Engine implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlReport, error)
}

// CrawlStep crawls the run's seed.
type CrawlStep struct {
	crawler Crawler
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(c Crawler) *CrawlStep {
	return &CrawlStep{crawler: c}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls the seed. An interrupted crawl still sets the partial report
// before the error is returned.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	report, err := s.crawler.Crawl(ctx, run.Seed)
	if report != nil {
		run.Report = report
	}
	if err != nil {
		return fmt.Errorf("crawl %s: %w", run.Seed, err)
	}
	return nil
}

// Archiver stores reports. *database.HistoryDB implements it.
type Archiver interface {
	SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// HistoryStep archives the report. Storage failures are logged, not returned.
type HistoryStep struct {
	archive Archiver
	logger  *slog.Logger
}

// NewHistoryStep creates a HistoryStep.
func NewHistoryStep(archive Archiver, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{archive: archive, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do saves the report.
func (s *HistoryStep) Do(ctx context.Context, run *Run) error {
	if run.Report == nil {
		return ErrNoReport
	}
	id, err := s.archive.SaveReport(ctx, run.Report)
	if err != nil {
		s.logger.Warn("failed to archive crawl report", "seed", run.Seed, "error", err)
		return nil
	}
	run.RunID = id
	s.logger.Debug("crawl report archived", "seed", run.Seed, "run_id", id)
	return nil
}

// RunObserver records per-run measurements. *metrics.Metrics implements it.
type RunObserver interface {
	ObserveRun(report *model.CrawlReport)
}

// MetricsStep records the run gauges.
type MetricsStep struct {
	observer RunObserver
}

// NewMetricsStep creates a MetricsStep.
func NewMetricsStep(o RunObserver) *MetricsStep {
	return &MetricsStep{observer: o}
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// Do records the report's gauges.
func (s *MetricsStep) Do(_ context.Context, run *Run) error {
	if run.Report == nil {
		return ErrNoReport
	}
	s.observer.ObserveRun(run.Report)
	return nil
}
