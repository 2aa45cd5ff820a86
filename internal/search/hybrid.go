// Package search — primary/fallback composition.
package search

import (
	"context"
	"log/slog"
)

// HybridDriver consults a primary driver and a fallback. By default the
// fallback only runs when the primary errors or comes back empty; with merge
// enabled both always run and their hits are re-ranked together.
type HybridDriver struct {
	primary  Driver
	fallback Driver
	merge    bool
	logger   *slog.Logger
}

// NewHybridDriver composes two drivers.
func NewHybridDriver(primary, fallback Driver, merge bool, logger *slog.Logger) *HybridDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridDriver{primary: primary, fallback: fallback, merge: merge, logger: logger}
}

// Search queries the primary and, depending on configuration, the fallback.
func (d *HybridDriver) Search(ctx context.Context, query, index string, limit int) ([]Result, error) {
	primary, err := d.primary.Search(ctx, query, index, limit)
	if err != nil {
		d.logger.Warn("hybrid search: primary failed, using fallback", "index", index, "error", err)
		return d.fallback.Search(ctx, query, index, limit)
	}
	if !d.merge {
		if len(primary) == 0 {
			return d.fallback.Search(ctx, query, index, limit)
		}
		return primary, nil
	}

	secondary, err := d.fallback.Search(ctx, query, index, limit)
	if err != nil {
		d.logger.Warn("hybrid search: fallback failed, keeping primary hits", "index", index, "error", err)
		return primary, nil
	}
	merged := append(primary, secondary...)
	sortResults(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// SearchMultiple merges independent per-index searches.
func (d *HybridDriver) SearchMultiple(ctx context.Context, query string, indexes []string, limit int) ([]Result, error) {
	return searchMultiple(ctx, d, query, indexes, limit)
}

// Index forwards to both drivers. The primary's outcome wins unless it
// failed, in which case a successful fallback outcome still counts.
func (d *HybridDriver) Index(ctx context.Context, index, recordID string) IndexOutcome {
	outcome := d.primary.Index(ctx, index, recordID)
	fallbackOutcome := d.fallback.Index(ctx, index, recordID)
	if outcome == OutcomeFailedNonFatal {
		return fallbackOutcome
	}
	return outcome
}

// Delete forwards to both drivers.
func (d *HybridDriver) Delete(ctx context.Context, index, recordID string) {
	d.primary.Delete(ctx, index, recordID)
	d.fallback.Delete(ctx, index, recordID)
}
