// Unit tests for AnthropicDriver against a mocked Messages API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAnthropic(url string) *AnthropicDriver {
	return NewAnthropicDriver(url, "test-key", "claude-sonnet-4-20250514", 0, 30*time.Second)
}

// ============================================================================
// Chat tests
// ============================================================================

func TestAnthropicDriver_Chat_TextResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") == "" {
			http.Error(w, "missing headers", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{
			"content": [{"type": "text", "text": "There were 21 races in 2019."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 40, "output_tokens": 9}
		}`)
	}))
	defer srv.Close()

	d := newTestAnthropic(srv.URL)
	resp, err := d.Chat(context.Background(), []Message{{Role: RoleUser, Content: "how many races?"}}, nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "There were 21 races in 2019." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.FinishReason != FinishStop {
		t.Errorf("expected finish reason %q, got %q", FinishStop, resp.FinishReason)
	}
	if resp.PromptTokens != 40 || resp.CompletionTokens != 9 {
		t.Errorf("unexpected usage %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
}

func TestAnthropicDriver_Chat_ToolUseBlocks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"content": [
				{"type": "text", "text": "Let me query the database."},
				{"type": "tool_use", "id": "toolu_1", "name": "run_sql", "input": {"sql": "SELECT COUNT(*) FROM race_wins"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 50, "output_tokens": 20}
		}`)
	}))
	defer srv.Close()

	d := newTestAnthropic(srv.URL)
	resp, err := d.Chat(context.Background(), []Message{{Role: RoleUser, Content: "count races"}}, nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Let me query the database." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Name != "run_sql" {
		t.Errorf("unexpected tool call identity: %+v", tc)
	}
	if tc.Arguments["sql"] != "SELECT COUNT(*) FROM race_wins" {
		t.Errorf("unexpected arguments: %v", tc.Arguments)
	}
	if resp.FinishReason != FinishToolCalls {
		t.Errorf("expected finish reason %q, got %q", FinishToolCalls, resp.FinishReason)
	}
}

func TestAnthropicDriver_Chat_SystemMessagesLifted(t *testing.T) {
	t.Parallel()

	var captured anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured) //nolint:errcheck
		fmt.Fprint(w, `{"content": [{"type": "text", "text": "ok"}], "stop_reason": "end_turn"}`)
	}))
	defer srv.Close()

	d := newTestAnthropic(srv.URL)
	messages := []Message{
		{Role: RoleSystem, Content: "you answer SQL questions"},
		{Role: RoleUser, Content: "count races"},
		{Role: RoleTool, ToolCallID: "toolu_1", Content: `{"rows":[]}`},
	}
	if _, err := d.Chat(context.Background(), messages, nil); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if captured.System != "you answer SQL questions" {
		t.Errorf("expected system message lifted to top level, got %q", captured.System)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 wire messages (system excluded), got %d", len(captured.Messages))
	}
	toolResult := captured.Messages[1]
	if toolResult.Role != RoleUser || len(toolResult.Content) != 1 || toolResult.Content[0].Type != "tool_result" {
		t.Errorf("expected tool result as user tool_result block, got %+v", toolResult)
	}
	if toolResult.Content[0].ToolUseID != "toolu_1" {
		t.Errorf("expected tool_use_id carried over, got %q", toolResult.Content[0].ToolUseID)
	}
}

func TestAnthropicDriver_Chat_ToolUseReplayKeepsEmptyInput(t *testing.T) {
	t.Parallel()

	var captured []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"content": [{"type": "text", "text": "ok"}], "stop_reason": "end_turn"}`)
	}))
	defer srv.Close()

	d := newTestAnthropic(srv.URL)
	messages := []Message{
		{Role: RoleUser, Content: "list tables"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "toolu_1", Name: "introspect_schema"}}},
		{Role: RoleTool, ToolCallID: "toolu_1", Content: `{"tables":[]}`},
	}
	if _, err := d.Chat(context.Background(), messages, nil); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	// tool_use blocks must carry an input object even with no arguments.
	if !strings.Contains(string(captured), `"input":{}`) {
		t.Errorf("expected empty input object on replayed tool_use block, got %s", captured)
	}
}

// ============================================================================
// Stream tests
// ============================================================================

func TestAnthropicDriver_Stream_TextDeltasThenToolUse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Checking\"}}\n\n")
		fmt.Fprint(w, "event: content_block_start\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_start\",\"index\":1,\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"run_sql\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"sql\\\":\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"index\":1,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"\\\"SELECT 1\\\"}\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	d := newTestAnthropic(srv.URL)
	ch, err := d.Stream(context.Background(), []Message{{Role: RoleUser, Content: "count"}}, nil)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var chunks []StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 1 content chunk + 1 complete, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "Checking" {
		t.Errorf("unexpected content chunk %q", chunks[0].Content)
	}
	final := chunks[1]
	if !final.Complete || len(final.ToolCalls) != 1 {
		t.Fatalf("expected terminal chunk with 1 tool call, got %+v", final)
	}
	if final.ToolCalls[0].Arguments["sql"] != "SELECT 1" {
		t.Errorf("expected reassembled input json, got %v", final.ToolCalls[0].Arguments)
	}
	if final.FinishReason != FinishToolCalls {
		t.Errorf("expected finish reason %q, got %q", FinishToolCalls, final.FinishReason)
	}
}

// ============================================================================
// Embed tests
// ============================================================================

func TestAnthropicDriver_Embed_Unsupported(t *testing.T) {
	t.Parallel()

	d := newTestAnthropic("http://localhost:99999")
	if _, err := d.Embed(context.Background(), "text"); !errors.Is(err, ErrEmbeddingsUnsupported) {
		t.Errorf("expected ErrEmbeddingsUnsupported, got %v", err)
	}
	if _, err := d.EmbedBatch(context.Background(), []string{"text"}); !errors.Is(err, ErrEmbeddingsUnsupported) {
		t.Errorf("expected ErrEmbeddingsUnsupported, got %v", err)
	}
	vectors, err := d.EmbedBatch(context.Background(), nil)
	if err != nil || len(vectors) != 0 {
		t.Errorf("expected empty batch to short-circuit, got %v / %v", vectors, err)
	}
}

func TestAnthropicDriver_SupportsToolCalling(t *testing.T) {
	t.Parallel()

	d := newTestAnthropic("http://localhost:11434")
	if !d.SupportsToolCalling() {
		t.Error("expected SupportsToolCalling=true")
	}
}
