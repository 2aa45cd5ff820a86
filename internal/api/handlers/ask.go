// HTTP handlers for the question-answering endpoints: a blocking JSON
// variant and an SSE streaming variant sharing request decoding and
// conversation persistence.
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/agent"
	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/llm"
)

// maxTitleLen caps the auto-derived conversation title.
const maxTitleLen = 80

// AskService runs the agent loop. Satisfied by *agent.Agent.
type AskService interface {
	Run(ctx context.Context, req agent.Request) *agent.Response
	Stream(ctx context.Context, req agent.Request) <-chan llm.StreamChunk
}

// AskHandler handles POST /api/v1/ask and POST /api/v1/ask/stream.
// When a store is present, each call is persisted as a conversation turn so
// follow-up questions can reference prior answers.
type AskHandler struct {
	service AskService
	store   *knowledge.Store
	logger  *slog.Logger
}

// NewAskHandler creates an AskHandler. store may be nil to disable
// conversation persistence.
func NewAskHandler(service AskService, store *knowledge.Store, logger *slog.Logger) *AskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskHandler{service: service, store: store, logger: logger}
}

// AskRequest is the request body for both ask endpoints.
type AskRequest struct {
	Question       string `json:"question"`
	Connection     string `json:"connection,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// AskResponse is the response body for POST /api/v1/ask.
type AskResponse struct {
	Answer         string        `json:"answer"`
	SQL            string        `json:"sql,omitempty"`
	Results        any           `json:"results,omitempty"`
	Iterations     int           `json:"iterations"`
	ToolCalls      []AskToolCall `json:"toolCalls,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// AskToolCall is one tool invocation reported back to the caller.
type AskToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Ask handles POST /api/v1/ask.
//
// Response codes:
//   - 200 OK: agent run finished (Error carries degraded-run detail, if any)
//   - 400 Bad Request: invalid JSON or missing question
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	req, history, err := h.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("question received", "client", clientID(r.Context()), "conversation", req.ConversationID)
	resp := h.service.Run(r.Context(), agent.Request{
		Question:   req.Question,
		Connection: req.Connection,
		History:    history,
	})

	conversationID := h.persistTurn(r.Context(), req, resp.Answer)

	out := AskResponse{
		Answer:         resp.Answer,
		SQL:            resp.SQL,
		Results:        resp.Results,
		Iterations:     len(resp.Iterations),
		ConversationID: conversationID,
	}
	for _, tc := range resp.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, AskToolCall{Tool: tc.Name, Arguments: tc.Arguments})
	}
	out.Error = resp.Err

	writeJSON(w, http.StatusOK, out)
}

// streamEvent is the JSON payload of one SSE data frame.
type streamEvent struct {
	Content        string `json:"content,omitempty"`
	FinishReason   string `json:"finishReason,omitempty"`
	Complete       bool   `json:"complete,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// AskStream handles POST /api/v1/ask/stream, relaying agent chunks as
// server-sent events. The terminal frame carries the finish reason and the
// conversation id.
func (h *AskHandler) AskStream(w http.ResponseWriter, r *http.Request) {
	req, history, err := h.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bw, flusher, err := prepareStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h.logger.Info("question received", "client", clientID(r.Context()), "conversation", req.ConversationID, "stream", true)
	chunks := h.service.Stream(r.Context(), agent.Request{
		Question:   req.Question,
		Connection: req.Connection,
		History:    history,
	})

	var answer strings.Builder
	for chunk := range chunks {
		answer.WriteString(chunk.Content)
		evt := streamEvent{Content: chunk.Content}
		if chunk.Complete {
			evt.Complete = true
			evt.FinishReason = chunk.FinishReason
			evt.ConversationID = h.persistTurn(r.Context(), req, answer.String())
		}
		if writeErr := writeSSE(bw, flusher, evt); writeErr != nil {
			return
		}
	}
}

// decode parses the request body and loads prior history when a conversation
// id is supplied. Unknown conversation ids are not an error; they simply
// yield an empty history.
func (h *AskHandler) decode(r *http.Request) (AskRequest, []knowledge.Message, error) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return AskRequest{}, nil, fmt.Errorf("invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return AskRequest{}, nil, fmt.Errorf("question is required")
	}

	if h.store == nil || req.ConversationID == "" {
		return req, nil, nil
	}

	stored, err := h.store.Messages(r.Context(), req.ConversationID)
	if err != nil {
		h.logger.Warn("history load failed", "conversation", req.ConversationID, "error", err)
		return req, nil, nil
	}
	history := make([]knowledge.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, *m)
	}
	return req, history, nil
}

// persistTurn writes the question/answer pair to the conversation, creating
// the conversation first when the request did not name one. Persistence
// failures are logged, never surfaced: the answer already exists.
func (h *AskHandler) persistTurn(ctx context.Context, req AskRequest, answer string) string {
	if h.store == nil {
		return ""
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		c := &knowledge.Conversation{Title: deriveTitle(req.Question), Connection: req.Connection}
		if err := h.store.CreateConversation(ctx, c); err != nil {
			h.logger.Warn("conversation create failed", "error", err)
			return ""
		}
		conversationID = c.ID
	}

	turns := []*knowledge.Message{
		{ConversationID: conversationID, Role: llm.RoleUser, Content: req.Question},
		{ConversationID: conversationID, Role: llm.RoleAssistant, Content: answer},
	}
	for _, m := range turns {
		if err := h.store.AppendMessage(ctx, m); err != nil {
			h.logger.Warn("message persist failed", "conversation", conversationID, "error", err)
			return conversationID
		}
	}
	return conversationID
}

// deriveTitle truncates the first question into a conversation title.
func deriveTitle(question string) string {
	title := strings.TrimSpace(question)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	return title
}

// prepareStream sets SSE headers and returns the buffered writer + flusher.
func prepareStream(w http.ResponseWriter) (*bufio.Writer, http.Flusher, error) {
	w.Header().Set(headerContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Flusher")
	}
	return bufio.NewWriter(w), flusher, nil
}

// writeSSE emits one data frame and flushes it to the client.
func writeSSE(bw *bufio.Writer, flusher http.Flusher, evt streamEvent) error {
	b, _ := json.Marshal(evt)
	if _, err := fmt.Fprintf(bw, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
