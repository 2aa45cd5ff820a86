// Package llm — Anthropic HTTP adapter.
// AnthropicDriver speaks the Messages API:
//   - POST /v1/messages — blocking and SSE streaming
//
// System messages are lifted into the top-level system field, tool calls
// arrive as tool_use content blocks, and tool results are sent back as
// tool_result blocks inside user messages.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

// AnthropicDriver implements Driver against the Anthropic API.
type AnthropicDriver struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewAnthropicDriver creates an AnthropicDriver.
func NewAnthropicDriver(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *AnthropicDriver {
	return &AnthropicDriver{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ─── internal Anthropic JSON types ───────────────────────────────────────────

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// tool_use fields (assistant messages). Input is any, not a map: the API
	// requires tool_use blocks to carry an input object even when empty, and
	// omitempty on a map would drop an empty one.
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
	// tool_result fields (user messages).
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicStreamEvent covers the SSE event payloads this driver consumes:
// content_block_start, content_block_delta, message_delta.
type anthropicStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
}

// ─── Driver implementation ───────────────────────────────────────────────────

// Chat performs a blocking completion via POST /v1/messages.
func (d *AnthropicDriver) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	body, err := json.Marshal(d.buildRequest(messages, tools, false))
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/v1/messages", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close() //nolint:errcheck

	var resp anthropicResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", decodeErr)
	}

	var (
		content   strings.Builder
		toolCalls []ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: NormalizeArguments(block.Input),
			})
		}
	}
	return &Response{
		Content:          content.String(),
		ToolCalls:        toolCalls,
		FinishReason:     normalizeAnthropicFinish(resp.StopReason, toolCalls),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// Stream performs a streaming completion. Anthropic frames SSE events as
// "event: <type>" / "data: {json}" line pairs; text deltas yield content
// chunks and tool_use blocks accumulate partial_json input across deltas.
func (d *AnthropicDriver) Stream(ctx context.Context, messages []Message, tools []ToolSchema) (<-chan StreamChunk, error) {
	body, err := json.Marshal(d.buildRequest(messages, tools, true))
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/v1/messages", body)
	if postErr != nil {
		return nil, postErr
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer respBody.Close() //nolint:errcheck

		blocks := map[int]*partialToolCall{}
		var order []int
		lr := NewLineReader(respBody)
		for {
			line, readErr := lr.Next()
			if readErr != nil {
				break
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event anthropicStreamEvent
			if decodeErr := json.Unmarshal([]byte(data), &event); decodeErr != nil {
				continue
			}

			switch event.Type {
			case "content_block_start":
				if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
					p := &partialToolCall{id: event.ContentBlock.ID, name: event.ContentBlock.Name}
					blocks[event.Index] = p
					order = append(order, event.Index)
				}
			case "content_block_delta":
				if event.Delta == nil {
					continue
				}
				switch event.Delta.Type {
				case "text_delta":
					if event.Delta.Text != "" {
						select {
						case out <- StreamChunk{Content: event.Delta.Text}:
						case <-ctx.Done():
							return
						}
					}
				case "input_json_delta":
					if p, ok := blocks[event.Index]; ok {
						p.args.WriteString(event.Delta.PartialJSON)
					}
				}
			case "message_stop":
				// terminal event; tool calls are flushed below.
			}
		}

		var toolCalls []ToolCall
		for _, idx := range order {
			p := blocks[idx]
			toolCalls = append(toolCalls, ToolCall{
				ID:        p.id,
				Name:      p.name,
				Arguments: NormalizeArguments(p.args.String()),
			})
		}
		select {
		case out <- StreamChunk{
			ToolCalls:    toolCalls,
			FinishReason: finishReasonFor(toolCalls),
			Complete:     true,
		}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// Embed is unsupported: Anthropic exposes no embedding endpoint.
func (d *AnthropicDriver) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

// EmbedBatch is unsupported: Anthropic exposes no embedding endpoint.
func (d *AnthropicDriver) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return nil, ErrEmbeddingsUnsupported
}

// SupportsToolCalling is always true for the Messages API.
func (d *AnthropicDriver) SupportsToolCalling() bool {
	return true
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// buildRequest converts the neutral message list into the Messages API shape.
// System messages are concatenated into the system field; tool results become
// tool_result blocks inside user messages.
func (d *AnthropicDriver) buildRequest(messages []Message, tools []ToolSchema, stream bool) anthropicRequest {
	var (
		system strings.Builder
		msgs   []anthropicMessage
	)
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case RoleTool:
			msgs = append(msgs, anthropicMessage{
				Role: RoleUser,
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		case RoleAssistant:
			blocks := []anthropicContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: ""})
			}
			msgs = append(msgs, anthropicMessage{Role: RoleAssistant, Content: blocks})
		default:
			msgs = append(msgs, anthropicMessage{
				Role:    RoleUser,
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}

	var reqTools []anthropicTool
	for _, t := range tools {
		reqTools = append(reqTools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	req := anthropicRequest{
		Model:     d.model,
		System:    system.String(),
		Messages:  msgs,
		MaxTokens: anthropicMaxTokens,
		Stream:    stream,
		Tools:     reqTools,
	}
	if d.temperature != 0 {
		req.Temperature = &d.temperature
	}
	return req
}

// normalizeAnthropicFinish maps stop_reason onto the neutral finish reasons.
func normalizeAnthropicFinish(stopReason string, toolCalls []ToolCall) string {
	if stopReason == "tool_use" || len(toolCalls) > 0 {
		return FinishToolCalls
	}
	return FinishStop
}

// doPost sends an authenticated POST and returns the response body. Caller
// closes the returned ReadCloser. Non-2xx statuses return an error carrying
// the status and body.
func (d *AnthropicDriver) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := d.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set("x-api-key", d.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("anthropic post %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}
