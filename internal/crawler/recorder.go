package crawler

import "time"

// Recorder receives crawl measurements. The metrics package provides a
// Prometheus implementation.
// Methods are called from the coordinator goroutine of each crawl, but a
// Recorder shared between concurrent crawls must be safe for concurrent use.
type Recorder interface {
	// ObserveFetch records one completed fetch. err is nil on success.
	ObserveFetch(statusCode int, elapsed time.Duration, err error)

	// ObserveLink records a newly discovered link.
	ObserveLink(internal bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(int, time.Duration, error) {}
func (nopRecorder) ObserveLink(bool)                       {}
