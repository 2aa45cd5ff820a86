// Package knowledge defines the retrievable knowledge artifacts (learnings,
// query patterns, curated table metadata, business rules), conversation
// history, and their sqlite-backed store. The auto-learning listener that
// turns SQL failures into learnings also lives here.
package knowledge

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// ENUMERATIONS
// ============================================================================

// LearningCategory classifies what kind of knowledge a learning captures.
type LearningCategory string

const (
	CategoryTypeError     LearningCategory = "type_error"
	CategorySchemaFix     LearningCategory = "schema_fix"
	CategoryQueryPattern  LearningCategory = "query_pattern"
	CategoryDataQuality   LearningCategory = "data_quality"
	CategoryBusinessLogic LearningCategory = "business_logic"
)

// Categories returns every valid learning category.
func Categories() []LearningCategory {
	return []LearningCategory{
		CategoryTypeError,
		CategorySchemaFix,
		CategoryQueryPattern,
		CategoryDataQuality,
		CategoryBusinessLogic,
	}
}

// Valid reports whether c is a known category.
func (c LearningCategory) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns a human-readable name for the category.
func (c LearningCategory) Label() string {
	switch c {
	case CategoryTypeError:
		return "Type casting"
	case CategorySchemaFix:
		return "Schema correction"
	case CategoryQueryPattern:
		return "Query pattern"
	case CategoryDataQuality:
		return "Data quality"
	case CategoryBusinessLogic:
		return "Business logic"
	}
	return string(c)
}

// BusinessRuleType classifies a business rule entry.
type BusinessRuleType string

const (
	RuleTypeMetric BusinessRuleType = "metric"
	RuleTypeRule   BusinessRuleType = "rule"
	RuleTypeGotcha BusinessRuleType = "gotcha"
)

// ============================================================================
// DOMAIN TYPES
// ============================================================================

// Learning is a persisted, retrievable note captured during a run, typically
// from a failure. Append-only: never mutated after creation.
//
// DB table: learning (migration 001)
// FTS5 sync: automatic via triggers learning_ai/au/ad
type Learning struct {
	ID          string
	Title       string
	Description string
	Category    LearningCategory
	SQL         string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SearchText returns the labeled text used for full-text matching and
// embedding of this record.
func (l *Learning) SearchText() string {
	return serializeFields([][2]string{
		{"Title", l.Title},
		{"Description", l.Description},
		{"Category", l.Category.Label()},
		{"SQL", l.SQL},
	})
}

// QueryPattern is a validated, reusable question-to-SQL example.
//
// DB table: query_pattern (migration 001)
// FTS5 sync: automatic via triggers query_pattern_ai/au/ad
type QueryPattern struct {
	ID               string
	Name             string
	Question         string
	SQL              string
	Summary          string
	TablesUsed       []string
	DataQualityNotes string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SearchText returns the labeled text used for full-text matching and
// embedding of this record.
func (q *QueryPattern) SearchText() string {
	return serializeFields([][2]string{
		{"Name", q.Name},
		{"Question", q.Question},
		{"Summary", q.Summary},
		{"Tables", strings.Join(q.TablesUsed, ", ")},
	})
}

// ColumnDescriptor documents one column of a curated table description.
type ColumnDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Relationship documents a join path to another table.
type Relationship struct {
	Table       string `json:"table" yaml:"table"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// TableMetadata is a curated description of one table on one connection —
// the semantic model the context builder renders for the model.
//
// DB table: table_metadata (migration 001), unique per (connection, table).
type TableMetadata struct {
	ID               string
	Connection       string
	TableName        string
	Description      string
	Columns          []ColumnDescriptor
	Relationships    []Relationship
	DataQualityNotes []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Format renders the curated metadata as labeled text for grounding context.
func (t *TableMetadata) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", t.TableName)
	if t.Description != "" {
		fmt.Fprintf(&b, "Purpose: %s\n", t.Description)
	}
	if len(t.Columns) > 0 {
		b.WriteString("Columns:\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s", c.Name)
			if c.Type != "" {
				fmt.Fprintf(&b, " (%s)", c.Type)
			}
			if c.Description != "" {
				fmt.Fprintf(&b, ": %s", c.Description)
			}
			b.WriteString("\n")
		}
	}
	if len(t.Relationships) > 0 {
		b.WriteString("Relationships:\n")
		for _, r := range t.Relationships {
			fmt.Fprintf(&b, "  - %s", r.Table)
			if r.Description != "" {
				fmt.Fprintf(&b, ": %s", r.Description)
			}
			b.WriteString("\n")
		}
	}
	if len(t.DataQualityNotes) > 0 {
		b.WriteString("Data quality notes:\n")
		for _, n := range t.DataQualityNotes {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	return b.String()
}

// BusinessRule is a curated metric definition, rule or gotcha shown to the
// model in every context.
//
// DB table: business_rule (migration 001)
type BusinessRule struct {
	ID         string
	Name       string
	Definition string
	RuleType   BusinessRuleType
	CreatedAt  time.Time
}

// Conversation groups the messages of one chat session.
//
// DB table: conversation (migration 001)
type Conversation struct {
	ID         string
	Title      string
	Connection string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Message is one persisted conversation turn.
//
// DB table: message (migration 001), cascade-deleted with its conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// serializeFields renders non-empty fields as "Label: value" lines. This is
// the canonical text form hashed and embedded by the search layer, so field
// order is stable.
func serializeFields(fields [][2]string) string {
	var b strings.Builder
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", f[0], f[1])
	}
	return b.String()
}
