package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/askdb-ai/askdb/internal/infra/eventbus"
	"github.com/askdb-ai/askdb/internal/infra/sqlite"
)

func newTestStore(t *testing.T, bus eventbus.EventBus) (*Store, *sql.DB) {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db, bus), db
}

// ============================================================================
// Learning tests
// ============================================================================

func TestStore_CreateAndFindLearning(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	l := &Learning{
		Title:       "Cast text dates before comparing years",
		Description: "Use CAST(col AS DATE) when filtering by year",
		Category:    CategoryTypeError,
		SQL:         "SELECT CAST(race_date AS DATE) FROM race_wins",
	}
	if err := store.CreateLearning(ctx, l); err != nil {
		t.Fatalf("CreateLearning failed: %v", err)
	}
	if l.ID == "" {
		t.Fatal("expected generated id")
	}

	found, err := store.FindLearning(ctx, l.ID)
	if err != nil {
		t.Fatalf("FindLearning failed: %v", err)
	}
	if found.Title != l.Title || found.Category != CategoryTypeError || found.SQL != l.SQL {
		t.Errorf("roundtrip mismatch: %+v", found)
	}
}

func TestStore_FindLearning_Missing_ReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	if _, err := store.FindLearning(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_CreateLearning_PublishesRecordSaved(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events := bus.Subscribe(eventbus.TopicRecordSaved)

	store, _ := newTestStore(t, bus)
	l := &Learning{Title: "t", Description: "d", Category: CategoryDataQuality}
	if err := store.CreateLearning(context.Background(), l); err != nil {
		t.Fatalf("CreateLearning failed: %v", err)
	}

	select {
	case evt := <-events:
		payload, ok := evt.Payload.(RecordEventPayload)
		if !ok {
			t.Fatalf("unexpected payload type %T", evt.Payload)
		}
		if payload.Index != IndexLearnings || payload.RecordID != l.ID {
			t.Errorf("unexpected payload %+v", payload)
		}
	default:
		t.Fatal("expected a record_saved event")
	}
}

// ============================================================================
// Query pattern tests
// ============================================================================

func TestStore_CreateQueryPattern_RoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	p := &QueryPattern{
		Name:       "races per year",
		Question:   "How many races were there in 2019?",
		SQL:        "SELECT COUNT(DISTINCT venue) FROM race_wins WHERE strftime('%Y', race_date) = '2019'",
		Summary:    "Counts distinct venues per season",
		TablesUsed: []string{"race_wins"},
	}
	if err := store.CreateQueryPattern(ctx, p); err != nil {
		t.Fatalf("CreateQueryPattern failed: %v", err)
	}

	found, err := store.FindQueryPattern(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindQueryPattern failed: %v", err)
	}
	if found.Question != p.Question || len(found.TablesUsed) != 1 || found.TablesUsed[0] != "race_wins" {
		t.Errorf("roundtrip mismatch: %+v", found)
	}
}

func TestStore_CreateQueryPattern_DuplicateQuestionRejected(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	first := &QueryPattern{Name: "a", Question: "How many races in 2019?", SQL: "SELECT 1", Summary: "s", TablesUsed: []string{"race_wins"}}
	if err := store.CreateQueryPattern(ctx, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	dup := &QueryPattern{Name: "b", Question: "how many RACES in 2019?", SQL: "SELECT 2", Summary: "s", TablesUsed: []string{"race_wins"}}
	if err := store.CreateQueryPattern(ctx, dup); !errors.Is(err, ErrDuplicateQuestion) {
		t.Errorf("expected ErrDuplicateQuestion, got %v", err)
	}
}

// ============================================================================
// Table metadata tests
// ============================================================================

func TestStore_UpsertTableMetadata_ReplacesPerConnectionAndTable(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	meta := &TableMetadata{
		Connection:  "default",
		TableName:   "race_wins",
		Description: "one row per race win",
		Columns:     []ColumnDescriptor{{Name: "venue", Type: "TEXT"}},
	}
	if err := store.UpsertTableMetadata(ctx, meta); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	meta.Description = "one row per win, per driver"
	if err := store.UpsertTableMetadata(ctx, meta); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	all, err := store.TableMetadataFor(ctx, "default")
	if err != nil {
		t.Fatalf("TableMetadataFor failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(all))
	}
	if all[0].Description != "one row per win, per driver" {
		t.Errorf("expected updated description, got %q", all[0].Description)
	}
	if len(all[0].Columns) != 1 || all[0].Columns[0].Name != "venue" {
		t.Errorf("expected columns to survive roundtrip, got %+v", all[0].Columns)
	}
}

// ============================================================================
// Conversation tests
// ============================================================================

func TestStore_ConversationMessages_OrderedAndCascadeDeleted(t *testing.T) {
	t.Parallel()

	store, db := newTestStore(t, nil)
	ctx := context.Background()

	conv := &Conversation{Title: "race questions", Connection: "default"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	for _, content := range []string{"first", "second", "third"} {
		if err := store.AppendMessage(ctx, &Message{ConversationID: conv.ID, Role: "user", Content: content}); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := store.Messages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Errorf("message %d: expected %q, got %q", i, want, msgs[i].Content)
		}
	}

	if err := store.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	var remaining int
	if err := db.QueryRow(`SELECT COUNT(*) FROM message WHERE conversation_id = ?`, conv.ID).Scan(&remaining); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected messages cascade-deleted, %d remain", remaining)
	}
}

// ============================================================================
// Search tests
// ============================================================================

func TestStore_SearchLearningsFTS_MatchesAndRanks(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	seed := []*Learning{
		{Title: "date casting in sqlite", Description: "use strftime for year filters", Category: CategoryTypeError},
		{Title: "venue dedup", Description: "count distinct venues not rows", Category: CategoryQueryPattern},
	}
	for _, l := range seed {
		if err := store.CreateLearning(ctx, l); err != nil {
			t.Fatalf("seed learning: %v", err)
		}
	}

	found, ranks, err := store.SearchLearningsFTS(ctx, "venues", 10)
	if err != nil {
		t.Fatalf("SearchLearningsFTS failed: %v", err)
	}
	if len(found) != 1 || found[0].Title != "venue dedup" {
		t.Fatalf("expected the venue learning, got %+v", found)
	}
	if len(ranks) != 1 {
		t.Errorf("expected a rank per result, got %v", ranks)
	}
}

func TestStore_SearchLearningsLike_SubstringFallback(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	l := &Learning{Title: "NULL venue rows", Description: "some 2018 rows have no venue", Category: CategoryDataQuality}
	if err := store.CreateLearning(ctx, l); err != nil {
		t.Fatalf("seed learning: %v", err)
	}

	found, err := store.SearchLearningsLike(ctx, "venue", 10)
	if err != nil {
		t.Fatalf("SearchLearningsLike failed: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("expected 1 match, got %d", len(found))
	}
}

// ============================================================================
// Embedding tests
// ============================================================================

func TestStore_Embedding_UpsertAndFind(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	e := &EmbeddingRecord{
		RecordIndex: IndexLearnings,
		RecordID:    "rec-1",
		ContentHash: "abc123",
		Vector:      []float32{0.1, 0.2, 0.3},
	}
	if err := store.UpsertEmbedding(ctx, e); err != nil {
		t.Fatalf("UpsertEmbedding failed: %v", err)
	}

	found, err := store.FindEmbedding(ctx, IndexLearnings, "rec-1")
	if err != nil {
		t.Fatalf("FindEmbedding failed: %v", err)
	}
	if found.ContentHash != "abc123" || len(found.Vector) != 3 {
		t.Errorf("roundtrip mismatch: %+v", found)
	}

	// Replace on conflict.
	e.ContentHash = "def456"
	e.Vector = []float32{0.9}
	if err := store.UpsertEmbedding(ctx, e); err != nil {
		t.Fatalf("second UpsertEmbedding failed: %v", err)
	}
	all, err := store.EmbeddingsForIndex(ctx, IndexLearnings)
	if err != nil {
		t.Fatalf("EmbeddingsForIndex failed: %v", err)
	}
	if len(all) != 1 || all[0].ContentHash != "def456" {
		t.Errorf("expected single replaced embedding, got %+v", all)
	}

	if err := store.DeleteEmbedding(ctx, IndexLearnings, "rec-1"); err != nil {
		t.Fatalf("DeleteEmbedding failed: %v", err)
	}
	if _, err := store.FindEmbedding(ctx, IndexLearnings, "rec-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
