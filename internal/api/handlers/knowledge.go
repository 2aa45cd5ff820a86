// HTTP handlers for browsing and curating the knowledge store: learnings,
// query patterns, direct search, and conversation history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/search"
)

// maxSearchLimit caps the number of hits a single search request may ask for.
const maxSearchLimit = 50

// KnowledgeHandler exposes the knowledge store over HTTP. Deletions go
// through the store so the record-deleted events reach the search indexer.
type KnowledgeHandler struct {
	store    *knowledge.Store
	searcher search.Driver
}

// NewKnowledgeHandler creates a KnowledgeHandler.
func NewKnowledgeHandler(store *knowledge.Store, searcher search.Driver) *KnowledgeHandler {
	return &KnowledgeHandler{store: store, searcher: searcher}
}

// LearningResponse is the JSON shape of one learning.
type LearningResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	SQL         string    `json:"sql,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QueryPatternResponse is the JSON shape of one query pattern.
type QueryPatternResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	Summary    string    `json:"summary,omitempty"`
	TablesUsed []string  `json:"tablesUsed,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListLearnings handles GET /api/v1/learnings.
func (h *KnowledgeHandler) ListLearnings(w http.ResponseWriter, r *http.Request) {
	learnings, err := h.store.Learnings(r.Context(), parseListLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list learnings")
		return
	}

	out := make([]LearningResponse, 0, len(learnings))
	for _, l := range learnings {
		out = append(out, learningResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"learnings": out})
}

// DeleteLearning handles DELETE /api/v1/learnings/{id}.
func (h *KnowledgeHandler) DeleteLearning(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteLearning(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete learning")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListQueryPatterns handles GET /api/v1/patterns.
func (h *KnowledgeHandler) ListQueryPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.store.QueryPatterns(r.Context(), parseListLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list query patterns")
		return
	}

	out := make([]QueryPatternResponse, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, queryPatternResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": out})
}

// DeleteQueryPattern handles DELETE /api/v1/patterns/{id}.
func (h *KnowledgeHandler) DeleteQueryPattern(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteQueryPattern(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete query pattern")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchRequest is the request body for POST /api/v1/knowledge/search.
type SearchRequest struct {
	Query   string   `json:"query"`
	Indexes []string `json:"indexes,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// SearchHit is one ranked result returned to the caller.
type SearchHit struct {
	Index  string  `json:"index"`
	Score  float64 `json:"score"`
	Record any     `json:"record"`
}

// Search handles POST /api/v1/knowledge/search. It queries the active search
// driver directly, bypassing the agent, so operators can inspect what the
// retrieval layer would surface for a given question.
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	indexes := req.Indexes
	if len(indexes) == 0 {
		indexes = []string{knowledge.IndexLearnings, knowledge.IndexQueryPatterns}
	}
	limit := req.Limit
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultListLimit
	}

	results, err := h.searcher.SearchMultiple(r.Context(), req.Query, indexes, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	hits := make([]SearchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, SearchHit{Index: res.Index, Score: res.Score, Record: searchRecord(res.Record)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits, "count": len(hits)})
}

// MessageResponse is the JSON shape of one conversation turn.
type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListMessages handles GET /api/v1/conversations/{id}/messages.
func (h *KnowledgeHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// DeleteConversation handles DELETE /api/v1/conversations/{id}.
func (h *KnowledgeHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func learningResponse(l *knowledge.Learning) LearningResponse {
	return LearningResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Category:    string(l.Category),
		SQL:         l.SQL,
		CreatedAt:   l.CreatedAt,
	}
}

func queryPatternResponse(p *knowledge.QueryPattern) QueryPatternResponse {
	return QueryPatternResponse{
		ID:         p.ID,
		Name:       p.Name,
		Question:   p.Question,
		SQL:        p.SQL,
		Summary:    p.Summary,
		TablesUsed: p.TablesUsed,
		CreatedAt:  p.CreatedAt,
	}
}

// searchRecord renders a hit's record in its response shape. Unknown record
// types fall through unmodified.
func searchRecord(record any) any {
	switch rec := record.(type) {
	case *knowledge.Learning:
		return learningResponse(rec)
	case *knowledge.QueryPattern:
		return queryPatternResponse(rec)
	default:
		return rec
	}
}
