// Package search — driver selection and background indexing.
package search

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/infra/config"
	"github.com/askdb-ai/askdb/internal/infra/eventbus"
)

// NewDriver builds the configured search driver. Vector and hybrid drivers
// need an embedder; when none is available they degrade to full-text with a
// warning rather than failing startup.
func NewDriver(cfg config.Config, db *sql.DB, store *knowledge.Store, engine string, embedder Embedder, logger *slog.Logger) Driver {
	if logger == nil {
		logger = slog.Default()
	}
	fulltext := NewFulltextDriver(db, store, engine, logger)

	switch cfg.SearchDriver {
	case "null":
		return NewNullDriver()
	case "vector":
		if embedder == nil {
			logger.Warn("search: vector driver configured without an embedder, using fulltext")
			return fulltext
		}
		return NewVectorDriver(store, embedder, cfg.DistanceMetric, logger)
	case "hybrid":
		if embedder == nil {
			logger.Warn("search: hybrid driver configured without an embedder, using fulltext")
			return fulltext
		}
		vector := NewVectorDriver(store, embedder, cfg.DistanceMetric, logger)
		return NewHybridDriver(vector, fulltext, cfg.HybridMergeBoth, logger)
	default:
		return fulltext
	}
}

// Indexer keeps the search driver in sync with knowledge record writes by
// consuming bus events off the request path.
type Indexer struct {
	driver Driver
	logger *slog.Logger
}

// NewIndexer creates an Indexer over the given driver.
func NewIndexer(driver Driver, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{driver: driver, logger: logger}
}

// Start consumes record events until ctx is cancelled. Run it in a goroutine.
func (ix *Indexer) Start(ctx context.Context, bus eventbus.EventBus) {
	saved := bus.Subscribe(eventbus.TopicRecordSaved)
	deleted := bus.Subscribe(eventbus.TopicRecordDeleted)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-saved:
			if !ok {
				return
			}
			payload, isRecord := evt.Payload.(knowledge.RecordEventPayload)
			if !isRecord {
				continue
			}
			outcome := ix.driver.Index(ctx, payload.Index, payload.RecordID)
			ix.logger.Debug("search index",
				"index", payload.Index, "record_id", payload.RecordID, "outcome", outcome.String())
		case evt, ok := <-deleted:
			if !ok {
				return
			}
			payload, isRecord := evt.Payload.(knowledge.RecordEventPayload)
			if !isRecord {
				continue
			}
			ix.driver.Delete(ctx, payload.Index, payload.RecordID)
		}
	}
}
