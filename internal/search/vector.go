// Package search — embedding-based semantic driver.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
)

// Distance metrics for scoring vector hits.
const (
	MetricCosine       = "cosine"
	MetricInnerProduct = "inner_product"
	MetricL2           = "l2"
)

// Embedder turns text into a vector. LLM drivers that support embeddings
// satisfy this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorDriver scores records by embedding similarity. Vectors live in the
// knowledge store keyed by a content hash, so re-indexing an unchanged record
// is a cheap skip.
type VectorDriver struct {
	store    *knowledge.Store
	embedder Embedder
	metric   string
	logger   *slog.Logger
}

// NewVectorDriver creates a VectorDriver. Unknown metrics fall back to cosine.
func NewVectorDriver(store *knowledge.Store, embedder Embedder, metric string, logger *slog.Logger) *VectorDriver {
	switch metric {
	case MetricCosine, MetricInnerProduct, MetricL2:
	default:
		metric = MetricCosine
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorDriver{store: store, embedder: embedder, metric: metric, logger: logger}
}

// Search embeds the query and ranks every stored vector in the index.
func (d *VectorDriver) Search(ctx context.Context, query, index string, limit int) ([]Result, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	queryVector, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	stored, err := d.store.EmbeddingsForIndex(ctx, index)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, e := range stored {
		score := vectorScore(d.metric, queryVector, e.Vector)
		record, loadErr := loadRecord(ctx, d.store, index, e.RecordID)
		if errors.Is(loadErr, knowledge.ErrNotFound) {
			continue
		}
		if loadErr != nil {
			return nil, loadErr
		}
		results = append(results, Result{Record: record, Score: score, Index: index})
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchMultiple merges independent per-index searches.
func (d *VectorDriver) SearchMultiple(ctx context.Context, query string, indexes []string, limit int) ([]Result, error) {
	return searchMultiple(ctx, d, query, indexes, limit)
}

// Index embeds one record and stores the vector. The record's search text is
// hashed first: an unchanged hash skips the embedding call entirely. Failures
// are reported through the outcome, never as errors — indexing runs in the
// background and must not take the write path down with it.
func (d *VectorDriver) Index(ctx context.Context, index, recordID string) IndexOutcome {
	record, err := loadRecord(ctx, d.store, index, recordID)
	if err != nil {
		d.logger.Warn("vector index: load record", "index", index, "record_id", recordID, "error", err)
		return OutcomeFailedNonFatal
	}
	text := searchText(record)
	if text == "" {
		d.logger.Warn("vector index: empty search text", "index", index, "record_id", recordID)
		return OutcomeFailedNonFatal
	}
	hash := contentHash(text)

	existing, err := d.store.FindEmbedding(ctx, index, recordID)
	if err == nil && existing.ContentHash == hash {
		return OutcomeSkippedUnchanged
	}
	if err != nil && !errors.Is(err, knowledge.ErrNotFound) {
		d.logger.Warn("vector index: lookup embedding", "index", index, "record_id", recordID, "error", err)
		return OutcomeFailedNonFatal
	}

	vector, err := d.embedder.Embed(ctx, text)
	if err != nil {
		d.logger.Warn("vector index: embed", "index", index, "record_id", recordID, "error", err)
		return OutcomeFailedNonFatal
	}
	if err := d.store.UpsertEmbedding(ctx, &knowledge.EmbeddingRecord{
		RecordIndex: index,
		RecordID:    recordID,
		ContentHash: hash,
		Vector:      vector,
	}); err != nil {
		d.logger.Warn("vector index: store embedding", "index", index, "record_id", recordID, "error", err)
		return OutcomeFailedNonFatal
	}
	return OutcomeIndexed
}

// Delete drops the stored vector. Best effort.
func (d *VectorDriver) Delete(ctx context.Context, index, recordID string) {
	if err := d.store.DeleteEmbedding(ctx, index, recordID); err != nil {
		d.logger.Warn("vector delete", "index", index, "record_id", recordID, "error", err)
	}
}

// contentHash fingerprints a record's search text.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ─── distance → score ────────────────────────────────────────────────────────

// vectorScore maps the metric-specific distance between two vectors into a
// comparable score: cosine and inner product reward closeness directly, l2 is
// inverted so smaller distances score higher. Mismatched dimensions score 0.
func vectorScore(metric string, a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	switch metric {
	case MetricInnerProduct:
		return math.Max(0, dotProduct(a, b))
	case MetricL2:
		return 1 / (1 + l2Distance(a, b))
	default:
		return math.Max(0, 1-cosineDistance(a, b))
	}
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 − cosine similarity. Zero-norm vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	dot := dotProduct(a, b)
	normA := math.Sqrt(dotProduct(a, a))
	normB := math.Sqrt(dotProduct(b, b))
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(normA*normB)
}
