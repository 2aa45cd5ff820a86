package tool

import (
	"context"
	"database/sql"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/schema"
	"github.com/askdb-ai/askdb/internal/domain/sqlguard"
	"github.com/askdb-ai/askdb/internal/infra/eventbus"
)

// RunSQL executes model-generated SQL against the data connection, after the
// safety guard accepts it. Execution failures (a valid-looking query the real
// schema rejects) additionally raise a sql.error event for the learning loop;
// safety rejections do not.
type RunSQL struct {
	db         *sql.DB
	guard      *sqlguard.Guard
	bus        eventbus.EventBus
	maxRows    int
	connection string
}

// NewRunSQL creates the run_sql tool.
func NewRunSQL(db *sql.DB, guard *sqlguard.Guard, bus eventbus.EventBus, maxRows int, connection string) *RunSQL {
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &RunSQL{db: db, guard: guard, bus: bus, maxRows: maxRows, connection: connection}
}

func (t *RunSQL) Name() string { return "run_sql" }

func (t *RunSQL) Description() string {
	return "Execute a read-only SQL query against the database and return the rows. " +
		"Only SELECT and WITH statements are allowed."
}

func (t *RunSQL) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "The SQL query to execute.",
			},
		},
		"required": []string{"sql"},
	}
}

func (t *RunSQL) Execute(ctx context.Context, args map[string]any) Result {
	query := stringArg(args, "sql", "query")
	if query == "" {
		return Fail("missing required argument: sql")
	}

	if err := t.guard.Validate(query); err != nil {
		return Fail("query rejected: %v. Rewrite it as a single read-only statement and try again.", err)
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		t.publishError(ctx, query, err)
		return Fail("query execution failed: %v", err)
	}
	defer rows.Close() //nolint:errcheck

	all, err := schema.ScanRows(rows)
	if err != nil {
		t.publishError(ctx, query, err)
		return Fail("reading query results failed: %v", err)
	}

	total := len(all)
	truncated := total > t.maxRows
	if truncated {
		all = all[:t.maxRows]
	}
	return OK(map[string]any{
		"rows":       all,
		"row_count":  len(all),
		"total_rows": total,
		"truncated":  truncated,
	})
}

func (t *RunSQL) publishError(ctx context.Context, query string, err error) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(eventbus.TopicSQLError, knowledge.SQLErrorEvent{
		SQL:        query,
		Error:      err.Error(),
		Question:   QuestionFrom(ctx),
		Connection: t.connection,
	})
}
