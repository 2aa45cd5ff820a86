// Package knowledge — sqlite-backed store for knowledge artifacts.
// Writes publish record events on the bus so the search indexer can re-embed
// changed records off the request path.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/askdb-ai/askdb/internal/infra/eventbus"
	"github.com/askdb-ai/askdb/pkg/uuid"
)

// Search index names for knowledge records.
const (
	IndexLearnings     = "learnings"
	IndexQueryPatterns = "query_patterns"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("knowledge: record not found")

// ErrDuplicateQuestion is returned when saving a query pattern whose question
// is already covered by an existing pattern.
var ErrDuplicateQuestion = errors.New("knowledge: a pattern for this question already exists")

// RecordEventPayload identifies a saved or deleted record on the bus.
type RecordEventPayload struct {
	Index    string
	RecordID string
}

// Store persists knowledge artifacts in sqlite.
type Store struct {
	db  *sql.DB
	bus eventbus.EventBus
}

// NewStore creates a Store. bus may be nil when no indexer is attached.
func NewStore(db *sql.DB, bus eventbus.EventBus) *Store {
	return &Store{db: db, bus: bus}
}

func (s *Store) publishSaved(index, id string) {
	if s.bus != nil {
		s.bus.Publish(eventbus.TopicRecordSaved, RecordEventPayload{Index: index, RecordID: id})
	}
}

func (s *Store) publishDeleted(index, id string) {
	if s.bus != nil {
		s.bus.Publish(eventbus.TopicRecordDeleted, RecordEventPayload{Index: index, RecordID: id})
	}
}

// ─── learnings ───────────────────────────────────────────────────────────────

// CreateLearning persists a new learning and announces it to the indexer.
func (s *Store) CreateLearning(ctx context.Context, l *Learning) error {
	if l.ID == "" {
		l.ID = uuid.NewV7().String()
	}
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learning (id, title, description, category, sql_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Description, string(l.Category), l.SQL,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: create learning: %w", err)
	}
	s.publishSaved(IndexLearnings, l.ID)
	return nil
}

// FindLearning loads one learning by id.
func (s *Store) FindLearning(ctx context.Context, id string) (*Learning, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, category, COALESCE(sql_text, ''), created_at, updated_at
		 FROM learning WHERE id = ?`, id)
	return scanLearning(row)
}

// Learnings lists learnings, newest first.
func (s *Store) Learnings(ctx context.Context, limit int) ([]*Learning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, category, COALESCE(sql_text, ''), created_at, updated_at
		 FROM learning ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list learnings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*Learning
	for rows.Next() {
		l, scanErr := scanLearning(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLearning removes a learning and announces the deletion.
func (s *Store) DeleteLearning(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM learning WHERE id = ?`, id); err != nil {
		return fmt.Errorf("knowledge: delete learning: %w", err)
	}
	s.publishDeleted(IndexLearnings, id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLearning(row rowScanner) (*Learning, error) {
	var (
		l                    Learning
		category             string
		createdAt, updatedAt string
	)
	if err := row.Scan(&l.ID, &l.Title, &l.Description, &category, &l.SQL, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("knowledge: scan learning: %w", err)
	}
	l.Category = LearningCategory(category)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

// ─── query patterns ──────────────────────────────────────────────────────────

// CreateQueryPattern persists a validated question-to-SQL example. A pattern
// with the same question (case-insensitive) is rejected as a duplicate.
func (s *Store) CreateQueryPattern(ctx context.Context, p *QueryPattern) error {
	var existing int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM query_pattern WHERE LOWER(question) = LOWER(?)`, p.Question).Scan(&existing)
	if err != nil {
		return fmt.Errorf("knowledge: check duplicate pattern: %w", err)
	}
	if existing > 0 {
		return ErrDuplicateQuestion
	}

	if p.ID == "" {
		p.ID = uuid.NewV7().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tables, err := json.Marshal(p.TablesUsed)
	if err != nil {
		return fmt.Errorf("knowledge: marshal tables: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO query_pattern (id, name, question, sql_text, summary, tables_used, data_quality_notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Question, p.SQL, p.Summary, string(tables), p.DataQualityNotes,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: create query pattern: %w", err)
	}
	s.publishSaved(IndexQueryPatterns, p.ID)
	return nil
}

// FindQueryPattern loads one query pattern by id.
func (s *Store) FindQueryPattern(ctx context.Context, id string) (*QueryPattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, question, sql_text, summary, tables_used, COALESCE(data_quality_notes, ''), created_at, updated_at
		 FROM query_pattern WHERE id = ?`, id)
	return scanQueryPattern(row)
}

// QueryPatterns lists query patterns, newest first.
func (s *Store) QueryPatterns(ctx context.Context, limit int) ([]*QueryPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, question, sql_text, summary, tables_used, COALESCE(data_quality_notes, ''), created_at, updated_at
		 FROM query_pattern ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list query patterns: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*QueryPattern
	for rows.Next() {
		p, scanErr := scanQueryPattern(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteQueryPattern removes a pattern and announces the deletion.
func (s *Store) DeleteQueryPattern(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM query_pattern WHERE id = ?`, id); err != nil {
		return fmt.Errorf("knowledge: delete query pattern: %w", err)
	}
	s.publishDeleted(IndexQueryPatterns, id)
	return nil
}

func scanQueryPattern(row rowScanner) (*QueryPattern, error) {
	var (
		p                    QueryPattern
		tables               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Question, &p.SQL, &p.Summary, &tables, &p.DataQualityNotes, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("knowledge: scan query pattern: %w", err)
	}
	if tables != "" {
		if err := json.Unmarshal([]byte(tables), &p.TablesUsed); err != nil {
			return nil, fmt.Errorf("knowledge: decode tables_used: %w", err)
		}
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ─── table metadata ──────────────────────────────────────────────────────────

// UpsertTableMetadata creates or replaces the curated description for one
// table on one connection.
func (s *Store) UpsertTableMetadata(ctx context.Context, t *TableMetadata) error {
	if t.ID == "" {
		t.ID = uuid.NewV7().String()
	}
	now := time.Now().UTC()

	columns, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("knowledge: marshal columns: %w", err)
	}
	relationships, err := json.Marshal(t.Relationships)
	if err != nil {
		return fmt.Errorf("knowledge: marshal relationships: %w", err)
	}
	notes, err := json.Marshal(t.DataQualityNotes)
	if err != nil {
		return fmt.Errorf("knowledge: marshal notes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO table_metadata (id, connection, table_name, description, columns, relationships, data_quality_notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (connection, table_name) DO UPDATE SET
			description = excluded.description,
			columns = excluded.columns,
			relationships = excluded.relationships,
			data_quality_notes = excluded.data_quality_notes,
			updated_at = excluded.updated_at`,
		t.ID, t.Connection, t.TableName, t.Description, string(columns), string(relationships), string(notes),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: upsert table metadata: %w", err)
	}
	return nil
}

// TableMetadataFor lists the curated table descriptions for one connection.
func (s *Store) TableMetadataFor(ctx context.Context, connection string) ([]*TableMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, connection, table_name, COALESCE(description, ''), COALESCE(columns, '[]'),
			COALESCE(relationships, '[]'), COALESCE(data_quality_notes, '[]'), created_at, updated_at
		 FROM table_metadata WHERE connection = ? ORDER BY table_name`, connection)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list table metadata: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*TableMetadata
	for rows.Next() {
		var (
			t                            TableMetadata
			columns, relationships, notes string
			createdAt, updatedAt          string
		)
		if scanErr := rows.Scan(&t.ID, &t.Connection, &t.TableName, &t.Description,
			&columns, &relationships, &notes, &createdAt, &updatedAt); scanErr != nil {
			return nil, fmt.Errorf("knowledge: scan table metadata: %w", scanErr)
		}
		if err := json.Unmarshal([]byte(columns), &t.Columns); err != nil {
			return nil, fmt.Errorf("knowledge: decode columns: %w", err)
		}
		if err := json.Unmarshal([]byte(relationships), &t.Relationships); err != nil {
			return nil, fmt.Errorf("knowledge: decode relationships: %w", err)
		}
		if err := json.Unmarshal([]byte(notes), &t.DataQualityNotes); err != nil {
			return nil, fmt.Errorf("knowledge: decode notes: %w", err)
		}
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ─── business rules ──────────────────────────────────────────────────────────

// CreateBusinessRule persists a curated rule.
func (s *Store) CreateBusinessRule(ctx context.Context, r *BusinessRule) error {
	if r.ID == "" {
		r.ID = uuid.NewV7().String()
	}
	now := time.Now().UTC()
	r.CreatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO business_rule (id, name, definition, rule_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Definition, string(r.RuleType), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: create business rule: %w", err)
	}
	return nil
}

// BusinessRules lists all curated rules.
func (s *Store) BusinessRules(ctx context.Context) ([]*BusinessRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, definition, rule_type, created_at FROM business_rule ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list business rules: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*BusinessRule
	for rows.Next() {
		var (
			r         BusinessRule
			ruleType  string
			createdAt string
		)
		if scanErr := rows.Scan(&r.ID, &r.Name, &r.Definition, &ruleType, &createdAt); scanErr != nil {
			return nil, fmt.Errorf("knowledge: scan business rule: %w", scanErr)
		}
		r.RuleType = BusinessRuleType(ruleType)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ─── conversations & messages ────────────────────────────────────────────────

// CreateConversation starts a new conversation.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewV7().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation (id, title, connection, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Connection, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("knowledge: create conversation: %w", err)
	}
	return nil
}

// AppendMessage adds one turn to a conversation.
func (s *Store) AppendMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewV7().String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("knowledge: append message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversation SET updated_at = ? WHERE id = ?`, now.Format(time.RFC3339), m.ConversationID)
	if err != nil {
		return fmt.Errorf("knowledge: touch conversation: %w", err)
	}
	return nil
}

// Messages lists a conversation's turns in order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM message WHERE conversation_id = ? ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list messages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*Message
	for rows.Next() {
		var (
			m         Message
			createdAt string
		)
		if scanErr := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); scanErr != nil {
			return nil, fmt.Errorf("knowledge: scan message: %w", scanErr)
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation; messages cascade.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation WHERE id = ?`, id); err != nil {
		return fmt.Errorf("knowledge: delete conversation: %w", err)
	}
	return nil
}

// ─── full-text search (FTS5, with LIKE fallback in the search driver) ────────

// SearchLearningsFTS ranks learnings against an FTS5 match query. The
// returned scores are bm25 ranks (lower is better); normalization into [0,1]
// is the search driver's concern.
func (s *Store) SearchLearningsFTS(ctx context.Context, match string, limit int) ([]*Learning, []float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, bm25(learning_fts) FROM learning_fts f
		 WHERE learning_fts MATCH ? ORDER BY bm25(learning_fts) LIMIT ?`, match, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("knowledge: fts learnings: %w", err)
	}
	ids, ranks, err := collectRanked(rows)
	if err != nil {
		return nil, nil, err
	}

	out := make([]*Learning, 0, len(ids))
	outRanks := make([]float64, 0, len(ids))
	for i, id := range ids {
		l, findErr := s.FindLearning(ctx, id)
		if errors.Is(findErr, ErrNotFound) {
			continue
		}
		if findErr != nil {
			return nil, nil, findErr
		}
		out = append(out, l)
		outRanks = append(outRanks, ranks[i])
	}
	return out, outRanks, nil
}

// SearchQueryPatternsFTS ranks query patterns against an FTS5 match query.
func (s *Store) SearchQueryPatternsFTS(ctx context.Context, match string, limit int) ([]*QueryPattern, []float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, bm25(query_pattern_fts) FROM query_pattern_fts f
		 WHERE query_pattern_fts MATCH ? ORDER BY bm25(query_pattern_fts) LIMIT ?`, match, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("knowledge: fts query patterns: %w", err)
	}
	ids, ranks, err := collectRanked(rows)
	if err != nil {
		return nil, nil, err
	}

	out := make([]*QueryPattern, 0, len(ids))
	outRanks := make([]float64, 0, len(ids))
	for i, id := range ids {
		p, findErr := s.FindQueryPattern(ctx, id)
		if errors.Is(findErr, ErrNotFound) {
			continue
		}
		if findErr != nil {
			return nil, nil, findErr
		}
		out = append(out, p)
		outRanks = append(outRanks, ranks[i])
	}
	return out, outRanks, nil
}

// SearchLearningsLike is the naive substring fallback used when no native
// full-text feature is available.
func (s *Store) SearchLearningsLike(ctx context.Context, query string, limit int) ([]*Learning, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, category, COALESCE(sql_text, ''), created_at, updated_at
		 FROM learning
		 WHERE LOWER(title) LIKE ? OR LOWER(description) LIKE ?
		 ORDER BY created_at DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: like learnings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*Learning
	for rows.Next() {
		l, scanErr := scanLearning(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SearchQueryPatternsLike is the naive substring fallback for patterns.
func (s *Store) SearchQueryPatternsLike(ctx context.Context, query string, limit int) ([]*QueryPattern, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, question, sql_text, summary, tables_used, COALESCE(data_quality_notes, ''), created_at, updated_at
		 FROM query_pattern
		 WHERE LOWER(name) LIKE ? OR LOWER(question) LIKE ? OR LOWER(summary) LIKE ?
		 ORDER BY created_at DESC LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: like query patterns: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*QueryPattern
	for rows.Next() {
		p, scanErr := scanQueryPattern(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func collectRanked(rows *sql.Rows) ([]string, []float64, error) {
	defer rows.Close() //nolint:errcheck
	var (
		ids   []string
		ranks []float64
	)
	for rows.Next() {
		var (
			id   string
			rank float64
		)
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, nil, fmt.Errorf("knowledge: scan rank: %w", err)
		}
		ids = append(ids, id)
		ranks = append(ranks, rank)
	}
	return ids, ranks, rows.Err()
}

// ─── embeddings ──────────────────────────────────────────────────────────────

// EmbeddingRecord is one stored vector with its content hash.
type EmbeddingRecord struct {
	RecordIndex string
	RecordID    string
	ContentHash string
	Vector      []float32
}

// FindEmbedding loads the stored embedding for one record, or ErrNotFound.
func (s *Store) FindEmbedding(ctx context.Context, index, recordID string) (*EmbeddingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record_index, record_id, content_hash, vector
		 FROM embedding WHERE record_index = ? AND record_id = ?`, index, recordID)
	return scanEmbedding(row)
}

// UpsertEmbedding stores (or replaces) the vector for one record.
func (s *Store) UpsertEmbedding(ctx context.Context, e *EmbeddingRecord) error {
	vector, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("knowledge: marshal vector: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embedding (id, record_index, record_id, content_hash, vector, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (record_index, record_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			vector = excluded.vector,
			updated_at = excluded.updated_at`,
		uuid.NewV7().String(), e.RecordIndex, e.RecordID, e.ContentHash, string(vector), now, now)
	if err != nil {
		return fmt.Errorf("knowledge: upsert embedding: %w", err)
	}
	return nil
}

// DeleteEmbedding removes the stored vector for one record.
func (s *Store) DeleteEmbedding(ctx context.Context, index, recordID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM embedding WHERE record_index = ? AND record_id = ?`, index, recordID)
	if err != nil {
		return fmt.Errorf("knowledge: delete embedding: %w", err)
	}
	return nil
}

// EmbeddingsForIndex loads every stored vector for one index.
func (s *Store) EmbeddingsForIndex(ctx context.Context, index string) ([]*EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_index, record_id, content_hash, vector FROM embedding WHERE record_index = ?`, index)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list embeddings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*EmbeddingRecord
	for rows.Next() {
		e, scanErr := scanEmbedding(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmbedding(row rowScanner) (*EmbeddingRecord, error) {
	var (
		e      EmbeddingRecord
		vector string
	)
	if err := row.Scan(&e.RecordIndex, &e.RecordID, &e.ContentHash, &vector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("knowledge: scan embedding: %w", err)
	}
	if err := json.Unmarshal([]byte(vector), &e.Vector); err != nil {
		return nil, fmt.Errorf("knowledge: decode vector: %w", err)
	}
	return &e, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
