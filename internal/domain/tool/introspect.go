package tool

import (
	"context"
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/schema"
)

// IntrospectSchema lists tables or describes one table in detail. Sample rows
// are included for the model's understanding of the data shapes; they are not
// query results.
type IntrospectSchema struct {
	introspector *schema.Introspector
}

// NewIntrospectSchema creates the introspect_schema tool.
func NewIntrospectSchema(introspector *schema.Introspector) *IntrospectSchema {
	return &IntrospectSchema{introspector: introspector}
}

func (t *IntrospectSchema) Name() string { return "introspect_schema" }

func (t *IntrospectSchema) Description() string {
	return "List the tables in the database, or describe one table's columns, " +
		"keys and a few sample rows. Call without table_name to list tables."
}

func (t *IntrospectSchema) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table_name": map[string]any{
				"type":        "string",
				"description": "Table to describe. Omit to list all tables.",
			},
			"include_samples": map[string]any{
				"type":        "boolean",
				"description": "Include up to 3 sample rows (default true).",
			},
		},
	}
}

func (t *IntrospectSchema) Execute(ctx context.Context, args map[string]any) Result {
	table := stringArg(args, "table_name", "table")
	if table == "" {
		tables, err := t.introspector.Tables(ctx)
		if err != nil {
			return Fail("listing tables failed: %v", err)
		}
		return OK(map[string]any{"tables": tables})
	}

	exists, err := t.introspector.TableExists(ctx, table)
	if err != nil {
		return Fail("checking table %q failed: %v", table, err)
	}
	if !exists {
		tables, listErr := t.introspector.Tables(ctx)
		if listErr != nil {
			return Fail("unknown table %q", table)
		}
		return Fail("unknown table %q. Available tables: %s", table, strings.Join(tables, ", "))
	}

	ts, err := t.introspector.Describe(ctx, table, boolArg(args, "include_samples", true))
	if err != nil {
		return Fail("describing table %q failed: %v", table, err)
	}
	return OK(map[string]any{
		"table":       ts.Name,
		"description": schema.Format(ts),
		"columns":     ts.Columns,
		"samples":     ts.SampleRows,
	})
}
