package tool

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/schema"
	"github.com/askdb-ai/askdb/internal/domain/sqlguard"
	"github.com/askdb-ai/askdb/internal/infra/eventbus"
	"github.com/askdb-ai/askdb/internal/infra/sqlite"
	"github.com/askdb-ai/askdb/internal/search"
)

// ============================================================================
// Fixtures
// ============================================================================

func newGuard() *sqlguard.Guard {
	return sqlguard.New(
		[]string{"SELECT", "WITH"},
		[]string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE"},
	)
}

func newDataDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open data sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	_, err = db.Exec(`CREATE TABLE race_wins (id INTEGER PRIMARY KEY, venue TEXT, season INTEGER)`)
	if err != nil {
		t.Fatalf("create race_wins: %v", err)
	}
	for i, venue := range []string{"monza", "spa", "suzuka", "monaco", "silverstone"} {
		if _, err := db.Exec(`INSERT INTO race_wins (id, venue, season) VALUES (?, ?, 2019)`, i+1, venue); err != nil {
			t.Fatalf("seed race_wins: %v", err)
		}
	}
	return db
}

func newKnowledgeStore(t *testing.T, bus eventbus.EventBus) (*knowledge.Store, *sql.DB) {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return knowledge.NewStore(db, bus), db
}

// ============================================================================
// run_sql tests
// ============================================================================

func TestRunSQLTruncatesRows(t *testing.T) {
	t.Parallel()

	db := newDataDB(t)
	tl := NewRunSQL(db, newGuard(), eventbus.New(), 2, "default")

	res := tl.Execute(context.Background(), map[string]any{"sql": "SELECT venue FROM race_wins ORDER BY id"})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["row_count"] != 2 || data["total_rows"] != 5 || data["truncated"] != true {
		t.Fatalf("data = %+v", data)
	}
	rows := data["rows"].([]map[string]any)
	if len(rows) != 2 || rows[0]["venue"] != "monza" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestRunSQLAcceptsQueryArgument(t *testing.T) {
	t.Parallel()

	db := newDataDB(t)
	tl := NewRunSQL(db, newGuard(), eventbus.New(), 100, "default")

	res := tl.Execute(context.Background(), map[string]any{"query": "SELECT COUNT(*) AS n FROM race_wins"})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
}

func TestRunSQLGuardRejectionRaisesNoEvent(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events := bus.Subscribe(eventbus.TopicSQLError)
	db := newDataDB(t)
	tl := NewRunSQL(db, newGuard(), bus, 100, "default")

	res := tl.Execute(context.Background(), map[string]any{"sql": "DROP TABLE race_wins"})
	if res.Success {
		t.Fatal("forbidden statement accepted")
	}
	if !strings.Contains(res.Error, "rejected") {
		t.Fatalf("error = %q", res.Error)
	}

	select {
	case evt := <-events:
		t.Fatalf("safety rejection published %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	// The table is untouched.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM race_wins`).Scan(&n); err != nil || n != 5 {
		t.Fatalf("race_wins rows = %d, err %v", n, err)
	}
}

func TestRunSQLExecutionFailurePublishesEvent(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events := bus.Subscribe(eventbus.TopicSQLError)
	db := newDataDB(t)
	tl := NewRunSQL(db, newGuard(), bus, 100, "racing")

	ctx := WithQuestion(context.Background(), "how many podiums?")
	res := tl.Execute(ctx, map[string]any{"sql": "SELECT * FROM podiums"})
	if res.Success {
		t.Fatal("query against missing table succeeded")
	}

	select {
	case evt := <-events:
		payload, ok := evt.Payload.(knowledge.SQLErrorEvent)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if payload.SQL != "SELECT * FROM podiums" || payload.Question != "how many podiums?" || payload.Connection != "racing" {
			t.Fatalf("payload = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no sql.error event published")
	}
}

func TestRunSQLMissingArgument(t *testing.T) {
	t.Parallel()

	tl := NewRunSQL(newDataDB(t), newGuard(), eventbus.New(), 100, "default")
	if res := tl.Execute(context.Background(), map[string]any{}); res.Success {
		t.Fatal("missing sql argument accepted")
	}
}

// ============================================================================
// introspect_schema tests
// ============================================================================

func TestIntrospectSchemaListsTables(t *testing.T) {
	t.Parallel()

	tl := NewIntrospectSchema(schema.New(newDataDB(t), "sqlite"))
	res := tl.Execute(context.Background(), map[string]any{})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	tables := res.Data.(map[string]any)["tables"].([]string)
	if len(tables) != 1 || tables[0] != "race_wins" {
		t.Fatalf("tables = %v", tables)
	}
}

func TestIntrospectSchemaDescribesTable(t *testing.T) {
	t.Parallel()

	tl := NewIntrospectSchema(schema.New(newDataDB(t), "sqlite"))
	res := tl.Execute(context.Background(), map[string]any{"table_name": "race_wins"})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["table"] != "race_wins" {
		t.Fatalf("table = %v", data["table"])
	}
	samples := data["samples"].([]map[string]any)
	if len(samples) != 3 {
		t.Fatalf("samples = %d, want capped at 3", len(samples))
	}

	// Samples can be turned off.
	res = tl.Execute(context.Background(), map[string]any{"table_name": "race_wins", "include_samples": false})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if samples := res.Data.(map[string]any)["samples"].([]map[string]any); len(samples) != 0 {
		t.Fatalf("samples = %d, want 0", len(samples))
	}
}

func TestIntrospectSchemaUnknownTable(t *testing.T) {
	t.Parallel()

	tl := NewIntrospectSchema(schema.New(newDataDB(t), "sqlite"))
	res := tl.Execute(context.Background(), map[string]any{"table_name": "podiums"})
	if res.Success {
		t.Fatal("unknown table accepted")
	}
	if !strings.Contains(res.Error, "race_wins") {
		t.Fatalf("error should list available tables: %q", res.Error)
	}
}

// ============================================================================
// search_knowledge tests
// ============================================================================

func TestSearchKnowledge(t *testing.T) {
	t.Parallel()

	store, kdb := newKnowledgeStore(t, eventbus.New())
	ctx := context.Background()
	err := store.CreateLearning(ctx, &knowledge.Learning{
		Title:       "Season casting",
		Description: "cast season before numeric comparison",
		Category:    knowledge.CategoryTypeError,
	})
	if err != nil {
		t.Fatalf("create learning: %v", err)
	}
	err = store.CreateQueryPattern(ctx, &knowledge.QueryPattern{
		Name:     "wins per season",
		Question: "race wins per season",
		SQL:      "SELECT season, COUNT(*) FROM race_wins GROUP BY season",
		Summary:  "season grouping",
	})
	if err != nil {
		t.Fatalf("create pattern: %v", err)
	}

	tl := NewSearchKnowledge(search.NewFulltextDriver(kdb, store, "sqlite", nil))

	res := tl.Execute(ctx, map[string]any{"query": "season"})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["count"] != 2 {
		t.Fatalf("count = %v, want both records", data["count"])
	}

	res = tl.Execute(ctx, map[string]any{"query": "season", "type": "learnings"})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	hits := res.Data.(map[string]any)["results"].([]map[string]any)
	if len(hits) != 1 || hits[0]["title"] != "Season casting" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0]["index"] != knowledge.IndexLearnings {
		t.Fatalf("index = %v", hits[0]["index"])
	}
}

func TestSearchKnowledgeValidation(t *testing.T) {
	t.Parallel()

	store, kdb := newKnowledgeStore(t, eventbus.New())
	tl := NewSearchKnowledge(search.NewFulltextDriver(kdb, store, "sqlite", nil))
	ctx := context.Background()

	if res := tl.Execute(ctx, map[string]any{}); res.Success {
		t.Fatal("missing query accepted")
	}
	if res := tl.Execute(ctx, map[string]any{"query": "x", "type": "everything"}); res.Success {
		t.Fatal("invalid type accepted")
	}
}

// ============================================================================
// save_learning / save_validated_query tests
// ============================================================================

func TestSaveLearning(t *testing.T) {
	t.Parallel()

	store, _ := newKnowledgeStore(t, eventbus.New())
	tl := NewSaveLearning(store, true)
	ctx := context.Background()

	res := tl.Execute(ctx, map[string]any{
		"title":       "Venue duplicates",
		"description": "group by venue id, names repeat",
		"category":    "data_quality",
	})
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	id := res.Data.(map[string]any)["id"].(string)
	saved, err := store.FindLearning(ctx, id)
	if err != nil {
		t.Fatalf("FindLearning: %v", err)
	}
	if saved.Category != knowledge.CategoryDataQuality {
		t.Fatalf("Category = %q", saved.Category)
	}
}

func TestSaveLearningValidation(t *testing.T) {
	t.Parallel()

	store, _ := newKnowledgeStore(t, eventbus.New())
	ctx := context.Background()

	disabled := NewSaveLearning(store, false)
	if res := disabled.Execute(ctx, map[string]any{"title": "t", "description": "d", "category": "type_error"}); res.Success {
		t.Fatal("disabled tool accepted a learning")
	} else if !strings.Contains(res.Error, "disabled") {
		t.Fatalf("error = %q", res.Error)
	}

	tl := NewSaveLearning(store, true)
	cases := []map[string]any{
		{"description": "d", "category": "type_error"},
		{"title": "t", "category": "type_error"},
		{"title": "t", "description": "d", "category": "made_up"},
	}
	for _, args := range cases {
		if res := tl.Execute(ctx, args); res.Success {
			t.Fatalf("invalid args accepted: %+v", args)
		}
	}
}

func TestSaveValidatedQuery(t *testing.T) {
	t.Parallel()

	store, _ := newKnowledgeStore(t, eventbus.New())
	tl := NewSaveValidatedQuery(store, newGuard(), true)
	ctx := context.Background()

	args := map[string]any{
		"name":     "races per year",
		"question": "how many races were there in 2019",
		"sql":      "SELECT COUNT(DISTINCT venue) FROM race_wins WHERE season = 2019",
		"summary":  "distinct venues per season",
		"tables":   []any{"race_wins"},
	}
	res := tl.Execute(ctx, args)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}

	// Same question again is a duplicate.
	if res := tl.Execute(ctx, args); res.Success || !strings.Contains(res.Error, "already exists") {
		t.Fatalf("duplicate result = %+v", res)
	}
}

func TestSaveValidatedQueryRejectsUnsafeSQL(t *testing.T) {
	t.Parallel()

	store, _ := newKnowledgeStore(t, eventbus.New())
	tl := NewSaveValidatedQuery(store, newGuard(), true)

	res := tl.Execute(context.Background(), map[string]any{
		"name":     "bad",
		"question": "remove everything",
		"sql":      "DELETE FROM race_wins",
		"summary":  "nope",
		"tables":   []any{"race_wins"},
	})
	if res.Success {
		t.Fatal("write statement accepted as a pattern")
	}
}
