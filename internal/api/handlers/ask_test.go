// Tests for the ask endpoints: blocking JSON, SSE streaming, and
// conversation persistence around both.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askdb-ai/askdb/internal/domain/agent"
	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/infra/eventbus"
	"github.com/askdb-ai/askdb/internal/infra/sqlite"
	"github.com/askdb-ai/askdb/internal/llm"
)

// askStub is a scripted AskService recording the requests it receives.
type askStub struct {
	response *agent.Response
	chunks   []llm.StreamChunk
	requests []agent.Request
}

func (s *askStub) Run(_ context.Context, req agent.Request) *agent.Response {
	s.requests = append(s.requests, req)
	return s.response
}

func (s *askStub) Stream(_ context.Context, req agent.Request) <-chan llm.StreamChunk {
	s.requests = append(s.requests, req)
	out := make(chan llm.StreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	return out
}

// newTestStore opens an in-memory knowledge store with migrations applied.
func newTestStore(t *testing.T) *knowledge.Store {
	t.Helper()
	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return knowledge.NewStore(db, eventbus.New())
}

func postAsk(t *testing.T, h *AskHandler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	if strings.HasSuffix(path, "/stream") {
		h.AskStream(rr, req)
	} else {
		h.Ask(rr, req)
	}
	return rr
}

func TestAsk_AnswersAndPersists(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	stub := &askStub{response: &agent.Response{
		Answer:  "There were 21 races in 2019.",
		SQL:     "SELECT COUNT(*) FROM races WHERE season = 2019",
		Results: []map[string]any{{"count": 21}},
		ToolCalls: []llm.ToolCall{
			{Name: "run_sql", Arguments: map[string]any{"sql": "SELECT COUNT(*) FROM races WHERE season = 2019"}},
		},
		Iterations: []agent.Iteration{{Iteration: 1}, {Iteration: 2}},
	}}
	h := NewAskHandler(stub, store, nil)

	rr := postAsk(t, h, "/api/v1/ask", `{"question":"How many races were there in 2019?"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp AskResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "There were 21 races in 2019." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Iterations != 2 {
		t.Errorf("iterations = %d; want 2", resp.Iterations)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Tool != "run_sql" {
		t.Errorf("tool calls = %+v; want one run_sql", resp.ToolCalls)
	}
	if resp.ConversationID == "" {
		t.Fatal("expected a conversation id for a fresh question")
	}

	messages, err := store.Messages(context.Background(), resp.ConversationID)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted %d messages; want 2", len(messages))
	}
	if messages[0].Role != llm.RoleUser || messages[1].Role != llm.RoleAssistant {
		t.Errorf("roles = %q, %q; want user, assistant", messages[0].Role, messages[1].Role)
	}
	if messages[1].Content != resp.Answer {
		t.Errorf("persisted answer = %q; want %q", messages[1].Content, resp.Answer)
	}
}

func TestAsk_ReplaysConversationHistory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv := &knowledge.Conversation{Title: "races"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for _, m := range []*knowledge.Message{
		{ConversationID: conv.ID, Role: llm.RoleUser, Content: "How many races were there in 2019?"},
		{ConversationID: conv.ID, Role: llm.RoleAssistant, Content: "21."},
	} {
		if err := store.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append message: %v", err)
		}
	}

	stub := &askStub{response: &agent.Response{Answer: "Monza."}}
	h := NewAskHandler(stub, store, nil)

	rr := postAsk(t, h, "/api/v1/ask",
		`{"question":"And which venue opened that season?","conversationId":"`+conv.ID+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	if len(stub.requests) != 1 {
		t.Fatalf("agent called %d times; want 1", len(stub.requests))
	}
	if got := len(stub.requests[0].History); got != 2 {
		t.Errorf("history length = %d; want 2", got)
	}

	messages, err := store.Messages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) != 4 {
		t.Errorf("conversation has %d messages after follow-up; want 4", len(messages))
	}
}

func TestAsk_MissingQuestion_Returns400(t *testing.T) {
	t.Parallel()

	h := NewAskHandler(&askStub{response: &agent.Response{}}, nil, nil)

	for name, body := range map[string]string{
		"empty question": `{"question":"   "}`,
		"no question":    `{}`,
		"bad json":       `{`,
	} {
		if rr := postAsk(t, h, "/api/v1/ask", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d; want %d", name, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestAsk_DegradedRun_ReportsError(t *testing.T) {
	t.Parallel()

	stub := &askStub{response: &agent.Response{
		Answer: "I was unable to complete the task within the maximum number of iterations.",
		Err:    "Maximum iterations reached",
	}}
	h := NewAskHandler(stub, nil, nil)

	rr := postAsk(t, h, "/api/v1/ask", `{"question":"hard one"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rr.Code, http.StatusOK)
	}

	var resp AskResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "Maximum iterations reached" {
		t.Errorf("error = %q; want the iteration-cap message", resp.Error)
	}
	if resp.Answer == "" {
		t.Error("degraded runs still return a best-effort answer")
	}
}

func TestAskStream_RelaysSSEAndPersists(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	stub := &askStub{chunks: []llm.StreamChunk{
		{Content: "There were "},
		{Content: "21 races."},
		{Complete: true, FinishReason: llm.FinishStop},
	}}
	h := NewAskHandler(stub, store, nil)

	rr := postAsk(t, h, "/api/v1/ask/stream", `{"question":"How many races were there in 2019?"}`)

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q; want text/event-stream", ct)
	}
	body := rr.Body.String()

	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(frames) != 3 {
		t.Fatalf("got %d SSE frames; want 3:\n%s", len(frames), body)
	}
	for _, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame without data prefix: %q", frame)
		}
	}

	var last streamEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[2], "data: ")), &last); err != nil {
		t.Fatalf("decode terminal frame: %v", err)
	}
	if !last.Complete || last.FinishReason != llm.FinishStop {
		t.Errorf("terminal frame = %+v; want complete with finish reason stop", last)
	}
	if last.ConversationID == "" {
		t.Fatal("terminal frame must carry the conversation id")
	}

	messages, err := store.Messages(context.Background(), last.ConversationID)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("persisted %d messages; want 2", len(messages))
	}
	if messages[1].Content != "There were 21 races." {
		t.Errorf("persisted answer = %q; want accumulated stream content", messages[1].Content)
	}
}

func TestDeriveTitle_TruncatesLongQuestions(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("why ", 40)
	if got := deriveTitle(long); len(got) != maxTitleLen {
		t.Errorf("title length = %d; want %d", len(got), maxTitleLen)
	}
	if got := deriveTitle("  short  "); got != "short" {
		t.Errorf("title = %q; want trimmed %q", got, "short")
	}
}
