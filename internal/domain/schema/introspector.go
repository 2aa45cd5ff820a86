// Package schema introspects relational database metadata for grounding
// context and the schema tool. It tolerates MySQL-, PostgreSQL-, SQL-Server-
// and SQLite-flavored metadata APIs behind one Introspector type.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Supported engine identifiers.
const (
	EngineSQLite    = "sqlite"
	EngineMySQL     = "mysql"
	EnginePostgres  = "postgres"
	EngineSQLServer = "sqlserver"
)

// maxSampleRows caps sample-row output. Samples are for the model's
// understanding only, never presented as query results.
const maxSampleRows = 3

// Column describes one table column.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
}

// ForeignKey describes one outgoing reference.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// TableSchema is the full metadata for one table.
type TableSchema struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	SampleRows  []map[string]any
}

// Introspector reads table metadata from a live connection.
type Introspector struct {
	db     *sql.DB
	engine string
}

// New creates an Introspector for the given engine. Unknown engines fall back
// to SQLite-flavored queries.
func New(db *sql.DB, engine string) *Introspector {
	return &Introspector{db: db, engine: engine}
}

// Tables lists all user table names.
func (in *Introspector) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch in.engine {
	case EngineMySQL:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	case EnginePostgres:
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	case EngineSQLServer:
		query = `SELECT name FROM sys.tables ORDER BY name`
	default:
		query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	}

	rows, err := in.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("schema: list tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			return nil, fmt.Errorf("schema: scan table name: %w", scanErr)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableExists reports whether name exactly matches a known table.
func (in *Introspector) TableExists(ctx context.Context, name string) (bool, error) {
	tables, err := in.Tables(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t == name {
			return true, nil
		}
	}
	return false, nil
}

// Describe returns full column, key and sample-row metadata for one table.
// The table name must come from Tables (callers verify via TableExists) so
// identifier interpolation below is safe.
func (in *Introspector) Describe(ctx context.Context, table string, includeSamples bool) (*TableSchema, error) {
	exists, err := in.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("schema: unknown table %q", table)
	}

	columns, err := in.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	fks, err := in.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	ts := &TableSchema{Name: table, Columns: columns, ForeignKeys: fks}
	if includeSamples {
		// best effort: a sampling failure does not fail the describe.
		if samples, sampleErr := in.sampleRows(ctx, table); sampleErr == nil {
			ts.SampleRows = samples
		}
	}
	return ts, nil
}

// ColumnNames returns just the column names of one table.
func (in *Introspector) ColumnNames(ctx context.Context, table string) ([]string, error) {
	ts, err := in.Describe(ctx, table, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ts.Columns))
	for i, c := range ts.Columns {
		names[i] = c.Name
	}
	return names, nil
}

func (in *Introspector) columns(ctx context.Context, table string) ([]Column, error) {
	if in.engine == EngineSQLite || !isInformationSchemaEngine(in.engine) {
		return in.sqliteColumns(ctx, table)
	}
	return in.informationSchemaColumns(ctx, table)
}

func (in *Introspector) sqliteColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(EngineSQLite, table)))
	if err != nil {
		return nil, fmt.Errorf("schema: table_info %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if scanErr := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); scanErr != nil {
			return nil, fmt.Errorf("schema: scan table_info: %w", scanErr)
		}
		cols = append(cols, Column{
			Name:       name,
			Type:       colType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}
	return cols, rows.Err()
}

func (in *Introspector) informationSchemaColumns(ctx context.Context, table string) ([]Column, error) {
	var query string
	switch in.engine {
	case EngineMySQL:
		query = `SELECT column_name, data_type, is_nullable, column_key = 'PRI'
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`
	case EnginePostgres:
		query = `SELECT c.column_name, c.data_type, c.is_nullable,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON kcu.constraint_name = tc.constraint_name
				WHERE tc.table_name = c.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
					AND kcu.column_name = c.column_name
			)
			FROM information_schema.columns c
			WHERE c.table_schema = 'public' AND c.table_name = $1 ORDER BY c.ordinal_position`
	case EngineSQLServer:
		query = `SELECT c.name, t.name, c.is_nullable,
			CASE WHEN ic.column_id IS NULL THEN 0 ELSE 1 END
			FROM sys.columns c
			JOIN sys.types t ON t.user_type_id = c.user_type_id
			LEFT JOIN sys.index_columns ic
				ON ic.object_id = c.object_id AND ic.column_id = c.column_id
				AND ic.index_id = (
					SELECT index_id FROM sys.indexes
					WHERE object_id = c.object_id AND is_primary_key = 1
				)
			WHERE c.object_id = OBJECT_ID(@p1) ORDER BY c.column_id`
	}

	rows, err := in.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("schema: columns %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []Column
	for rows.Next() {
		var (
			name, colType string
			nullable      any
			primary       bool
		)
		if scanErr := rows.Scan(&name, &colType, &nullable, &primary); scanErr != nil {
			return nil, fmt.Errorf("schema: scan columns: %w", scanErr)
		}
		cols = append(cols, Column{
			Name:       name,
			Type:       colType,
			Nullable:   isNullableValue(nullable),
			PrimaryKey: primary,
		})
	}
	return cols, rows.Err()
}

func (in *Introspector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	switch in.engine {
	case EngineMySQL:
		return in.queryForeignKeys(ctx, `SELECT column_name, referenced_table_name, referenced_column_name
			FROM information_schema.key_column_usage
			WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL`, table)
	case EnginePostgres:
		return in.queryForeignKeys(ctx, `SELECT kcu.column_name, ccu.table_name, ccu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name
			JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name
			WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_name = $1`, table)
	case EngineSQLServer:
		return in.queryForeignKeys(ctx, `SELECT cp.name, tr.name, cr.name
			FROM sys.foreign_key_columns fkc
			JOIN sys.tables tp ON tp.object_id = fkc.parent_object_id
			JOIN sys.columns cp ON cp.object_id = fkc.parent_object_id AND cp.column_id = fkc.parent_column_id
			JOIN sys.tables tr ON tr.object_id = fkc.referenced_object_id
			JOIN sys.columns cr ON cr.object_id = fkc.referenced_object_id AND cr.column_id = fkc.referenced_column_id
			WHERE tp.name = @p1`, table)
	default:
		return in.sqliteForeignKeys(ctx, table)
	}
}

func (in *Introspector) sqliteForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(EngineSQLite, table)))
	if err != nil {
		return nil, fmt.Errorf("schema: foreign_key_list %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var fks []ForeignKey
	for rows.Next() {
		var (
			id, seq                      int
			refTable, from, to           string
			onUpdate, onDelete, matching string
		)
		if scanErr := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matching); scanErr != nil {
			return nil, fmt.Errorf("schema: scan foreign_key_list: %w", scanErr)
		}
		fks = append(fks, ForeignKey{Column: from, RefTable: refTable, RefColumn: to})
	}
	return fks, rows.Err()
}

func (in *Introspector) queryForeignKeys(ctx context.Context, query, table string) ([]ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("schema: foreign keys %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if scanErr := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); scanErr != nil {
			return nil, fmt.Errorf("schema: scan foreign keys: %w", scanErr)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// sampleRows fetches at most maxSampleRows rows from the table.
func (in *Introspector) sampleRows(ctx context.Context, table string) ([]map[string]any, error) {
	var query string
	if in.engine == EngineSQLServer {
		query = fmt.Sprintf("SELECT TOP %d * FROM %s", maxSampleRows, quoteIdent(in.engine, table))
	} else {
		query = fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(in.engine, table), maxSampleRows)
	}

	rows, err := in.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("schema: sample rows %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	return ScanRows(rows)
}

// ScanRows converts a generic result set into a slice of column→value maps.
// []byte values are converted to strings so results serialize cleanly.
func ScanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("schema: columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if scanErr := rows.Scan(ptrs...); scanErr != nil {
			return nil, fmt.Errorf("schema: scan row: %w", scanErr)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Format renders a table schema as labeled text for the model.
func Format(ts *TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", ts.Name)
	b.WriteString("Columns:\n")
	for _, c := range ts.Columns {
		fmt.Fprintf(&b, "  - %s (%s", c.Name, c.Type)
		if c.PrimaryKey {
			b.WriteString(", primary key")
		}
		if !c.Nullable {
			b.WriteString(", not null")
		}
		b.WriteString(")\n")
	}
	if len(ts.ForeignKeys) > 0 {
		b.WriteString("Foreign keys:\n")
		for _, fk := range ts.ForeignKeys {
			fmt.Fprintf(&b, "  - %s -> %s.%s\n", fk.Column, fk.RefTable, fk.RefColumn)
		}
	}
	return b.String()
}

// MatchTableNames extracts table names likely referenced by a question:
// direct substring match, singular form (trailing "s" trimmed), and
// underscore/space variants against every known table name. This is a
// best-effort relevance hint, not a guarantee.
func MatchTableNames(question string, tables []string) []string {
	q := strings.ToLower(question)
	var matched []string
	for _, table := range tables {
		lower := strings.ToLower(table)
		candidates := []string{
			lower,
			strings.TrimSuffix(lower, "s"),
			strings.ReplaceAll(lower, "_", " "),
			strings.ReplaceAll(lower, "_", ""),
		}
		for _, c := range candidates {
			if c != "" && strings.Contains(q, c) {
				matched = append(matched, table)
				break
			}
		}
	}
	return matched
}

func isInformationSchemaEngine(engine string) bool {
	switch engine {
	case EngineMySQL, EnginePostgres, EngineSQLServer:
		return true
	}
	return false
}

// isNullableValue interprets the engine-specific nullable signal: booleans
// arrive as-is, information_schema reports "YES"/"NO" strings.
func isNullableValue(v any) bool {
	switch n := v.(type) {
	case bool:
		return n
	case string:
		return strings.EqualFold(n, "YES")
	case []byte:
		return strings.EqualFold(string(n), "YES")
	case int64:
		return n != 0
	}
	return false
}

// quoteIdent quotes a table identifier for the engine's dialect.
func quoteIdent(engine, ident string) string {
	switch engine {
	case EngineMySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case EngineSQLServer:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}
