package tool

import (
	"context"
	"errors"
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/sqlguard"
)

// SaveLearning persists a model-authored learning. Disabled installations
// fail the call with an explanation instead of silently dropping it.
type SaveLearning struct {
	store   *knowledge.Store
	enabled bool
}

// NewSaveLearning creates the save_learning tool.
func NewSaveLearning(store *knowledge.Store, enabled bool) *SaveLearning {
	return &SaveLearning{store: store, enabled: enabled}
}

func (t *SaveLearning) Name() string { return "save_learning" }

func (t *SaveLearning) Description() string {
	return "Save a reusable learning about this database: a gotcha, a type quirk, " +
		"a schema subtlety or a business rule discovered while answering."
}

func (t *SaveLearning) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short title for the learning.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "What was learned and how to apply it.",
			},
			"category": map[string]any{
				"type": "string",
				"enum": categoryNames(),
			},
			"sql": map[string]any{
				"type":        "string",
				"description": "Optional SQL illustrating the learning.",
			},
		},
		"required": []string{"title", "description", "category"},
	}
}

func (t *SaveLearning) Execute(ctx context.Context, args map[string]any) Result {
	if !t.enabled {
		return Fail("the learning feature is disabled on this installation")
	}

	title := stringArg(args, "title")
	description := stringArg(args, "description")
	category := knowledge.LearningCategory(stringArg(args, "category"))
	switch {
	case title == "":
		return Fail("missing required argument: title")
	case description == "":
		return Fail("missing required argument: description")
	case !category.Valid():
		return Fail("invalid category %q: must be one of %s", category, strings.Join(categoryNames(), ", "))
	}

	l := &knowledge.Learning{
		Title:       title,
		Description: description,
		Category:    category,
		SQL:         stringArg(args, "sql"),
	}
	if err := t.store.CreateLearning(ctx, l); err != nil {
		return Fail("saving learning failed: %v", err)
	}
	return OK(map[string]any{"id": l.ID})
}

func categoryNames() []string {
	categories := knowledge.Categories()
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return names
}

// SaveValidatedQuery persists a confirmed question→SQL pair as a reusable
// query pattern. The SQL must pass the same guard run_sql enforces, and a
// pattern for the same question (case-insensitive) is rejected as a
// duplicate.
type SaveValidatedQuery struct {
	store   *knowledge.Store
	guard   *sqlguard.Guard
	enabled bool
}

// NewSaveValidatedQuery creates the save_validated_query tool.
func NewSaveValidatedQuery(store *knowledge.Store, guard *sqlguard.Guard, enabled bool) *SaveValidatedQuery {
	return &SaveValidatedQuery{store: store, guard: guard, enabled: enabled}
}

func (t *SaveValidatedQuery) Name() string { return "save_validated_query" }

func (t *SaveValidatedQuery) Description() string {
	return "Save a validated question-to-SQL pair as a reusable query pattern, " +
		"after the user confirmed the answer is correct."
}

func (t *SaveValidatedQuery) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Short name for the pattern.",
			},
			"question": map[string]any{
				"type":        "string",
				"description": "The natural-language question this answers.",
			},
			"sql": map[string]any{
				"type":        "string",
				"description": "The validated SQL.",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "One-line summary of the approach.",
			},
			"tables": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Tables the query reads.",
			},
			"data_quality_notes": map[string]any{
				"type":        "string",
				"description": "Optional caveats about the underlying data.",
			},
		},
		"required": []string{"name", "question", "sql", "summary", "tables"},
	}
}

func (t *SaveValidatedQuery) Execute(ctx context.Context, args map[string]any) Result {
	if !t.enabled {
		return Fail("the learning feature is disabled on this installation")
	}

	name := stringArg(args, "name")
	question := stringArg(args, "question")
	query := stringArg(args, "sql", "query")
	summary := stringArg(args, "summary")
	tables := stringSliceArg(args, "tables")
	switch {
	case name == "":
		return Fail("missing required argument: name")
	case question == "":
		return Fail("missing required argument: question")
	case query == "":
		return Fail("missing required argument: sql")
	case summary == "":
		return Fail("missing required argument: summary")
	case len(tables) == 0:
		return Fail("missing required argument: tables")
	}
	if err := t.guard.Validate(query); err != nil {
		return Fail("refusing to save pattern: %v", err)
	}

	p := &knowledge.QueryPattern{
		Name:             name,
		Question:         question,
		SQL:              query,
		Summary:          summary,
		TablesUsed:       tables,
		DataQualityNotes: stringArg(args, "data_quality_notes"),
	}
	if err := t.store.CreateQueryPattern(ctx, p); err != nil {
		if errors.Is(err, knowledge.ErrDuplicateQuestion) {
			return Fail("a query pattern for this question already exists")
		}
		return Fail("saving query pattern failed: %v", err)
	}
	return OK(map[string]any{"id": p.ID})
}
