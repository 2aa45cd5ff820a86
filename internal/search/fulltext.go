// Package search — database full-text driver.
// Uses the engine's native relevance signal where one exists (FTS5 bm25 on
// sqlite, to_tsvector ranking on postgres, MATCH AGAINST on mysql, CONTAINS
// on sqlserver) and a naive substring match as the universal fallback.
package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
)

// fallbackMatchScore is assigned to every substring-fallback hit: the
// fallback has no relevance signal to rank by.
const fallbackMatchScore = 0.5

// ftsTables maps index names to their table/column layout for the engines
// that query the knowledge tables directly.
var ftsTables = map[string]struct {
	table   string
	columns []string
}{
	knowledge.IndexLearnings:     {table: "learning", columns: []string{"title", "description"}},
	knowledge.IndexQueryPatterns: {table: "query_pattern", columns: []string{"name", "question", "summary"}},
}

// FulltextDriver searches the knowledge tables with the engine's native
// full-text feature.
type FulltextDriver struct {
	db     *sql.DB
	store  *knowledge.Store
	engine string
	logger *slog.Logger
}

// NewFulltextDriver creates a FulltextDriver for the given engine.
func NewFulltextDriver(db *sql.DB, store *knowledge.Store, engine string, logger *slog.Logger) *FulltextDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FulltextDriver{db: db, store: store, engine: engine, logger: logger}
}

// Search returns ranked hits from one index.
func (d *FulltextDriver) Search(ctx context.Context, query, index string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	if _, known := ftsTables[index]; !known {
		return nil, fmt.Errorf("search: unknown index %q", index)
	}

	switch d.engine {
	case "sqlite":
		return d.searchSQLiteFTS(ctx, query, index, limit)
	case "postgres":
		return d.searchRanked(ctx, index, d.postgresQuery(index), normalizePostgresRank, query, limit)
	case "mysql":
		return d.searchRanked(ctx, index, d.mysqlQuery(index), normalizeMySQLRelevance, query, query, limit)
	case "sqlserver":
		return d.searchRanked(ctx, index, d.sqlserverQuery(index), func(float64) float64 { return fallbackMatchScore }, query, limit)
	default:
		return d.searchLike(ctx, query, index, limit)
	}
}

// SearchMultiple merges independent per-index searches.
func (d *FulltextDriver) SearchMultiple(ctx context.Context, query string, indexes []string, limit int) ([]Result, error) {
	return searchMultiple(ctx, d, query, indexes, limit)
}

// Index is a no-op for the full-text driver: the knowledge tables carry their
// own full-text indexes (FTS5 triggers on sqlite, native catalogs elsewhere).
func (d *FulltextDriver) Index(_ context.Context, _, _ string) IndexOutcome {
	return OutcomeSkippedUnchanged
}

// Delete is a no-op for the same reason.
func (d *FulltextDriver) Delete(_ context.Context, _, _ string) {}

// ─── engine strategies ───────────────────────────────────────────────────────

func (d *FulltextDriver) searchSQLiteFTS(ctx context.Context, query, index string, limit int) ([]Result, error) {
	match := ftsMatchQuery(query)
	if match == "" {
		return nil, nil
	}

	switch index {
	case knowledge.IndexLearnings:
		records, ranks, err := d.store.SearchLearningsFTS(ctx, match, limit)
		if err != nil {
			return nil, err
		}
		results := make([]Result, len(records))
		for i, r := range records {
			results[i] = Result{Record: r, Score: normalizeBM25(ranks[i]), Index: index}
		}
		return results, nil
	default:
		records, ranks, err := d.store.SearchQueryPatternsFTS(ctx, match, limit)
		if err != nil {
			return nil, err
		}
		results := make([]Result, len(records))
		for i, r := range records {
			results[i] = Result{Record: r, Score: normalizeBM25(ranks[i]), Index: index}
		}
		return results, nil
	}
}

func (d *FulltextDriver) searchLike(ctx context.Context, query, index string, limit int) ([]Result, error) {
	switch index {
	case knowledge.IndexLearnings:
		records, err := d.store.SearchLearningsLike(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		results := make([]Result, len(records))
		for i, r := range records {
			results[i] = Result{Record: r, Score: fallbackMatchScore, Index: index}
		}
		return results, nil
	default:
		records, err := d.store.SearchQueryPatternsLike(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		results := make([]Result, len(records))
		for i, r := range records {
			results[i] = Result{Record: r, Score: fallbackMatchScore, Index: index}
		}
		return results, nil
	}
}

// searchRanked runs an engine-specific (id, relevance) query and re-hydrates
// each hit from the store.
func (d *FulltextDriver) searchRanked(ctx context.Context, index, query string, normalize func(float64) float64, args ...any) ([]Result, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: fulltext %s: %w", index, err)
	}
	defer rows.Close() //nolint:errcheck

	var results []Result
	for rows.Next() {
		var (
			id   string
			rank float64
		)
		if scanErr := rows.Scan(&id, &rank); scanErr != nil {
			return nil, fmt.Errorf("search: scan fulltext hit: %w", scanErr)
		}
		record, loadErr := loadRecord(ctx, d.store, index, id)
		if errors.Is(loadErr, knowledge.ErrNotFound) {
			continue
		}
		if loadErr != nil {
			return nil, loadErr
		}
		results = append(results, Result{Record: record, Score: normalize(rank), Index: index})
	}
	return results, rows.Err()
}

func (d *FulltextDriver) postgresQuery(index string) string {
	t := ftsTables[index]
	vector := "to_tsvector('english', " + strings.Join(t.columns, " || ' ' || ") + ")"
	return fmt.Sprintf(
		`SELECT id, ts_rank(%s, plainto_tsquery('english', $1)) AS rank
		 FROM %s WHERE %s @@ plainto_tsquery('english', $1)
		 ORDER BY rank DESC LIMIT $2`, vector, t.table, vector)
}

func (d *FulltextDriver) mysqlQuery(index string) string {
	t := ftsTables[index]
	cols := strings.Join(t.columns, ", ")
	return fmt.Sprintf(
		`SELECT id, MATCH(%s) AGAINST(? IN NATURAL LANGUAGE MODE) AS relevance
		 FROM %s WHERE MATCH(%s) AGAINST(? IN NATURAL LANGUAGE MODE)
		 ORDER BY relevance DESC LIMIT ?`, cols, t.table, cols)
}

func (d *FulltextDriver) sqlserverQuery(index string) string {
	t := ftsTables[index]
	return fmt.Sprintf(
		`SELECT TOP (@p2) id, 1.0 AS relevance FROM %s WHERE CONTAINS((%s), @p1)`,
		t.table, strings.Join(t.columns, ", "))
}

// ─── score normalization ─────────────────────────────────────────────────────

// normalizeBM25 maps an FTS5 bm25 rank (more negative = better match) into
// [0,1].
func normalizeBM25(rank float64) float64 {
	return math.Min(1, math.Abs(rank)/10)
}

// normalizePostgresRank clamps ts_rank output into [0,1].
func normalizePostgresRank(rank float64) float64 {
	return math.Max(0, math.Min(1, rank))
}

// normalizeMySQLRelevance squashes the unbounded MATCH AGAINST relevance
// into [0,1).
func normalizeMySQLRelevance(relevance float64) float64 {
	if relevance <= 0 {
		return 0
	}
	return relevance / (1 + relevance)
}

// ftsMatchQuery turns free text into a safe FTS5 OR query of quoted terms.
func ftsMatchQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		cleaned := strings.Trim(f, `"'?!,.;:()`)
		if cleaned == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(cleaned, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// ─── shared helpers ──────────────────────────────────────────────────────────

// loadRecord re-hydrates one record by index and id.
func loadRecord(ctx context.Context, store *knowledge.Store, index, id string) (any, error) {
	switch index {
	case knowledge.IndexLearnings:
		return store.FindLearning(ctx, id)
	case knowledge.IndexQueryPatterns:
		return store.FindQueryPattern(ctx, id)
	}
	return nil, fmt.Errorf("search: unknown index %q", index)
}

// searchText returns the canonical search text for one record, used for both
// full-text mirrors and embedding.
func searchText(record any) string {
	switch r := record.(type) {
	case *knowledge.Learning:
		return r.SearchText()
	case *knowledge.QueryPattern:
		return r.SearchText()
	}
	return ""
}

// searchMultiple is the shared SearchMultiple implementation: independent
// per-index search, merge, stable sort by descending score, truncate.
func searchMultiple(ctx context.Context, d Driver, query string, indexes []string, limit int) ([]Result, error) {
	var merged []Result
	for _, index := range indexes {
		results, err := d.Search(ctx, query, index, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}
	sortResults(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// sortResults orders by descending score; the sort is stable so ties keep
// the order the backends returned them in.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
