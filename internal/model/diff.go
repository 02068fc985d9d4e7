package model

import "time"

// LinkDiff describes how the discovered links changed between two crawls
// of the same seed.
type LinkDiff struct {
	// Seed is the seed both crawls started from.
	Seed string `json:"seed"`

	// OlderStartedAt and NewerStartedAt identify the two crawls.
	OlderStartedAt time.Time `json:"older_started_at"`
	NewerStartedAt time.Time `json:"newer_started_at"`

	AddedInternal   []string `json:"added_internal"`
	RemovedInternal []string `json:"removed_internal"`
	AddedExternal   []string `json:"added_external"`
	RemovedExternal []string `json:"removed_external"`
}

// Diff compares an older report with a newer one.
func Diff(older, newer *CrawlReport) *LinkDiff {
	return &LinkDiff{
		Seed:            newer.Seed,
		OlderStartedAt:  older.StartedAt,
		NewerStartedAt:  newer.StartedAt,
		AddedInternal:   newer.Internal.Difference(older.Internal),
		RemovedInternal: older.Internal.Difference(newer.Internal),
		AddedExternal:   newer.External.Difference(older.External),
		RemovedExternal: older.External.Difference(newer.External),
	}
}

// HasChanges reports whether any link was added or removed.
func (d *LinkDiff) HasChanges() bool {
	return len(d.AddedInternal)+len(d.RemovedInternal)+len(d.AddedExternal)+len(d.RemovedExternal) > 0
}
