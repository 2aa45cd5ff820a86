// Package search provides the swappable retrieval backends: database
// full-text, vector similarity, hybrid, and a null driver used when search is
// disabled. All variants share one capability contract and produce scores
// normalized into [0,1] regardless of the engine's native relevance signal.
package search

import "context"

// Result is one ranked hit. Record is the re-hydrated knowledge record
// (*knowledge.Learning or *knowledge.QueryPattern for the built-in indexes).
type Result struct {
	Record any
	Score  float64
	Index  string
}

// IndexOutcome names the result of a best-effort indexing attempt, so the
// swallow-and-continue contract around embedding side effects stays testable.
type IndexOutcome int

const (
	// OutcomeIndexed means the record was (re-)embedded and stored.
	OutcomeIndexed IndexOutcome = iota
	// OutcomeSkippedUnchanged means the content hash matched the stored
	// embedding, so no work was done.
	OutcomeSkippedUnchanged
	// OutcomeFailedNonFatal means indexing failed; the failure was logged
	// and must not block the record write that triggered it.
	OutcomeFailedNonFatal
)

func (o IndexOutcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeSkippedUnchanged:
		return "skipped-unchanged"
	case OutcomeFailedNonFatal:
		return "failed-non-fatal"
	}
	return "unknown"
}

// Driver is the capability contract every search backend implements.
type Driver interface {
	// Search returns ranked results from one index, best first.
	Search(ctx context.Context, query, index string, limit int) ([]Result, error)

	// SearchMultiple searches each index independently, merges, sorts by
	// descending score (stable, so same-score hits keep backend order) and
	// truncates to limit.
	SearchMultiple(ctx context.Context, query string, indexes []string, limit int) ([]Result, error)

	// Index makes a record retrievable. Failures are absorbed and reported
	// through the outcome, never as an error.
	Index(ctx context.Context, index, recordID string) IndexOutcome

	// Delete removes a record from the backend. Best effort.
	Delete(ctx context.Context, index, recordID string)
}
