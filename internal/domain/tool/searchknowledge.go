package tool

import (
	"context"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/search"
)

// Result-count ceiling applied regardless of the requested limit.
const maxSearchResults = 20

const defaultSearchLimit = 5

// SearchKnowledge queries the retrieval layer for saved query patterns and
// learnings relevant to a free-text query.
type SearchKnowledge struct {
	searcher search.Driver
}

// NewSearchKnowledge creates the search_knowledge tool.
func NewSearchKnowledge(searcher search.Driver) *SearchKnowledge {
	return &SearchKnowledge{searcher: searcher}
}

func (t *SearchKnowledge) Name() string { return "search_knowledge" }

func (t *SearchKnowledge) Description() string {
	return "Search saved query patterns and learnings for guidance relevant to a question."
}

func (t *SearchKnowledge) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text search query.",
			},
			"type": map[string]any{
				"type":        "string",
				"enum":        []string{"patterns", "learnings", "all"},
				"description": "Which knowledge to search (default all).",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum results (default 5, capped at 20).",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchKnowledge) Execute(ctx context.Context, args map[string]any) Result {
	query := stringArg(args, "query")
	if query == "" {
		return Fail("missing required argument: query")
	}

	limit := intArg(args, "limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	var indexes []string
	switch stringArg(args, "type") {
	case "patterns":
		indexes = []string{knowledge.IndexQueryPatterns}
	case "learnings":
		indexes = []string{knowledge.IndexLearnings}
	case "", "all":
		indexes = []string{knowledge.IndexQueryPatterns, knowledge.IndexLearnings}
	default:
		return Fail("invalid type %q: must be patterns, learnings or all", stringArg(args, "type"))
	}

	results, err := t.searcher.SearchMultiple(ctx, query, indexes, limit)
	if err != nil {
		return Fail("search failed: %v", err)
	}

	hits := make([]map[string]any, 0, len(results))
	for _, res := range results {
		hits = append(hits, renderHit(res))
	}
	return OK(map[string]any{"results": hits, "count": len(hits)})
}

func renderHit(res search.Result) map[string]any {
	hit := map[string]any{"index": res.Index, "score": res.Score}
	switch r := res.Record.(type) {
	case *knowledge.Learning:
		hit["title"] = r.Title
		hit["description"] = r.Description
		hit["category"] = string(r.Category)
		if r.SQL != "" {
			hit["sql"] = r.SQL
		}
	case *knowledge.QueryPattern:
		hit["name"] = r.Name
		hit["question"] = r.Question
		hit["sql"] = r.SQL
		hit["summary"] = r.Summary
	}
	return hit
}
