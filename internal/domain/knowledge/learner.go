// Package knowledge — auto-learning listener.
// Converts SQL execution failures into durable learnings without operator
// intervention. The listener runs off the request path: it never blocks or
// retries the original request, and its own failures never propagate.
package knowledge

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/askdb-ai/askdb/internal/infra/eventbus"
)

// SQLErrorEvent is the payload published on eventbus.TopicSQLError whenever a
// safety-passed query fails against the real engine.
type SQLErrorEvent struct {
	SQL        string
	Error      string
	Question   string
	Connection string
}

// maxTitleLength bounds derived learning titles.
const maxTitleLength = 100

// categoryPatterns maps error-text keywords to categories. Order matters:
// the first matching category wins.
var categoryPatterns = []struct {
	category LearningCategory
	keywords []string
}{
	{CategorySchemaFix, []string{"no such column", "no such table", "unknown column", "unknown table", "doesn't exist", "does not exist", "undefined column", "undefined table", "invalid object name", "not found"}},
	{CategoryTypeError, []string{"type", "cast", "conversion", "incompatible", "operand", "datatype"}},
	{CategoryQueryPattern, []string{"syntax", "near", "ambiguous", "aggregate", "group by"}},
	{CategoryDataQuality, []string{"null", "constraint", "duplicate", "divide by zero", "division by zero", "out of range"}},
}

// vendorCodePattern strips bracketed SQLSTATE / driver code prefixes like
// "SQLSTATE[42S22]:" or "[Microsoft][ODBC ...]" from error text.
var vendorCodePattern = regexp.MustCompile(`^(\s*[A-Z]*\s*\[[^\]]*\]\s*:?\s*)+`)

// tableRefPattern matches identifiers after FROM / JOIN / UPDATE / INTO,
// ignoring quoting style.
var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|UPDATE|INTO)\s+[` + "`" + `"\[]?([a-zA-Z_][a-zA-Z0-9_]*)`)

// Learner subscribes to SQL error events and persists learnings.
type Learner struct {
	store   *Store
	enabled bool
	logger  *slog.Logger
}

// NewLearner creates a Learner. When enabled is false, events are consumed
// and dropped.
func NewLearner(store *Store, enabled bool, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{store: store, enabled: enabled, logger: logger}
}

// Start consumes SQL error events until ctx is canceled. Call in a goroutine.
func (ln *Learner) Start(ctx context.Context, bus eventbus.EventBus) {
	events := bus.Subscribe(eventbus.TopicSQLError)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			payload, isSQLError := evt.Payload.(SQLErrorEvent)
			if !isSQLError {
				continue
			}
			if _, err := ln.LearnFromError(ctx, payload); err != nil {
				ln.logger.Warn("auto-learn failed", "error", err)
			}
		}
	}
}

// LearnFromError categorizes an execution failure and persists a learning.
// Returns nil without error when learning is disabled.
func (ln *Learner) LearnFromError(ctx context.Context, evt SQLErrorEvent) (*Learning, error) {
	if !ln.enabled {
		return nil, nil
	}

	tables := ExtractTableNames(evt.SQL)
	var description strings.Builder
	if evt.Question != "" {
		description.WriteString("Question: " + evt.Question + "\n")
	}
	description.WriteString("Error: " + evt.Error)
	if len(tables) > 0 {
		description.WriteString("\nTables: " + strings.Join(tables, ", "))
	}

	learning := &Learning{
		Title:       DeriveTitle(evt.Error),
		Description: description.String(),
		Category:    CategorizeError(evt.Error),
		SQL:         evt.SQL,
	}
	if err := ln.store.CreateLearning(ctx, learning); err != nil {
		return nil, err
	}
	ln.logger.Info("learned from sql error",
		"category", learning.Category, "title", learning.Title, "connection", evt.Connection)
	return learning, nil
}

// CategorizeError classifies error text by keyword matching. The first
// matching category wins; unmatched errors default to business_logic.
func CategorizeError(errText string) LearningCategory {
	lower := strings.ToLower(errText)
	for _, cp := range categoryPatterns {
		for _, kw := range cp.keywords {
			if strings.Contains(lower, kw) {
				return cp.category
			}
		}
	}
	return CategoryBusinessLogic
}

// DeriveTitle strips bracketed vendor error codes and truncates to a fixed
// length so titles stay readable in retrieval output.
func DeriveTitle(errText string) string {
	title := vendorCodePattern.ReplaceAllString(errText, "")
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(errText)
	}
	// Truncate on rune boundaries: vendor messages can carry multi-byte text.
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}
	return title
}

// ExtractTableNames returns the deduplicated table identifiers referenced
// after FROM, JOIN, UPDATE or INTO in the SQL text.
func ExtractTableNames(sqlText string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(sqlText, -1)
	seen := map[string]bool{}
	var tables []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		tables = append(tables, name)
	}
	return tables
}
