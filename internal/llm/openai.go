// Package llm — OpenAI HTTP adapter.
// OpenAIDriver speaks the chat-completions function-calling protocol:
//   - POST /v1/chat/completions — blocking and SSE streaming
//   - POST /v1/embeddings       — batch embeddings
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

// OpenAIDriver implements Driver against the OpenAI API (or any
// wire-compatible endpoint).
type OpenAIDriver struct {
	baseURL     string
	apiKey      string
	model       string
	embedModel  string
	temperature float64
	httpClient  *http.Client
}

// NewOpenAIDriver creates an OpenAIDriver.
func NewOpenAIDriver(baseURL, apiKey, model, embedModel string, temperature float64, timeout time.Duration) *OpenAIDriver {
	return &OpenAIDriver{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		embedModel:  embedModel,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ─── internal OpenAI JSON types ──────────────────────────────────────────────

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiFunctionCall `json:"function"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiTool struct {
	Type     string             `json:"type"`
	Function openaiFunctionTool `json:"function"`
}

type openaiFunctionTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openaiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Tools       []openaiTool    `json:"tools,omitempty"`
}

type openaiChatResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiStreamChunk struct {
	Choices []openaiChunkChoice `json:"choices"`
}

type openaiChunkChoice struct {
	Delta        openaiChunkDelta `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type openaiChunkDelta struct {
	Content   string                `json:"content,omitempty"`
	ToolCalls []openaiToolCallChunk `json:"tool_calls,omitempty"`
}

type openaiToolCallChunk struct {
	Index    int                 `json:"index"`
	ID       string              `json:"id,omitempty"`
	Function *openaiFunctionCall `json:"function,omitempty"`
}

type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// ─── Driver implementation ───────────────────────────────────────────────────

// Chat performs a blocking completion via POST /v1/chat/completions.
func (d *OpenAIDriver) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	body, err := json.Marshal(d.buildChatRequest(messages, tools, false))
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/v1/chat/completions", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close() //nolint:errcheck

	var chatResp openaiChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&chatResp); decodeErr != nil {
		return nil, fmt.Errorf("openai: decode chat response: %w", decodeErr)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: chat response contained no choices")
	}

	choice := chatResp.Choices[0]
	toolCalls := convertOpenAIToolCalls(choice.Message.ToolCalls)
	return &Response{
		Content:          choice.Message.Content,
		ToolCalls:        toolCalls,
		FinishReason:     normalizeOpenAIFinish(choice.FinishReason, toolCalls),
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// Stream performs a streaming completion. OpenAI frames events as SSE
// "data: {json}" lines terminated by "data: [DONE]"; partial tool calls are
// accumulated by index, with the arguments string appended across fragments.
func (d *OpenAIDriver) Stream(ctx context.Context, messages []Message, tools []ToolSchema) (<-chan StreamChunk, error) {
	body, err := json.Marshal(d.buildChatRequest(messages, tools, true))
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/v1/chat/completions", body)
	if postErr != nil {
		return nil, postErr
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer respBody.Close() //nolint:errcheck

		acc := newToolCallAccumulator()
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
			if data == "[DONE]" {
				break
			}

			var event openaiStreamChunk
			if decodeErr := json.Unmarshal([]byte(data), &event); decodeErr != nil {
				continue
			}
			if len(event.Choices) == 0 {
				continue
			}
			delta := event.Choices[0].Delta
			if delta.Content != "" {
				select {
				case out <- StreamChunk{Content: delta.Content}:
				case <-ctx.Done():
					return
				}
			}
			for _, tc := range delta.ToolCalls {
				acc.add(tc)
			}
		}

		toolCalls := acc.finish()
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

// Embed computes one embedding via the batch endpoint.
func (d *OpenAIDriver) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := d.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed: empty response")
	}
	return vectors[0], nil
}

// EmbedBatch computes embeddings via POST /v1/embeddings.
func (d *OpenAIDriver) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(openaiEmbedRequest{Model: d.embedModel, Input: texts})
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/v1/embeddings", body)
	if postErr != nil {
		return nil, fmt.Errorf("openai embed: %w", postErr)
	}
	defer respBody.Close() //nolint:errcheck

	var resp openaiEmbedResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, fmt.Errorf("openai: decode embed response: %w", decodeErr)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	return vectors, nil
}

// SupportsToolCalling is always true: every chat-completions model accepted
// by this driver implements function calling.
func (d *OpenAIDriver) SupportsToolCalling() bool {
	return true
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (d *OpenAIDriver) buildChatRequest(messages []Message, tools []ToolSchema, stream bool) openaiChatRequest {
	msgs := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		om := openaiMessage{Role: m.Role, Content: m.Content}
		if m.Role == RoleTool {
			om.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, openaiToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: openaiFunctionCall{Name: tc.Name, Arguments: string(args)},
			})
		}
		msgs = append(msgs, om)
	}

	var reqTools []openaiTool
	for _, t := range tools {
		reqTools = append(reqTools, openaiTool{
			Type: "function",
			Function: openaiFunctionTool{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	req := openaiChatRequest{
		Model:    d.model,
		Messages: msgs,
		Stream:   stream,
		Tools:    reqTools,
	}
	if d.temperature != 0 {
		req.Temperature = &d.temperature
	}
	return req
}

// convertOpenAIToolCalls normalizes tool calls from a blocking response.
// Arguments arrive as a JSON string and are decoded defensively.
func convertOpenAIToolCalls(calls []openaiToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: NormalizeArguments(c.Function.Arguments),
		})
	}
	return out
}

// normalizeOpenAIFinish maps the provider finish reason onto the neutral set.
func normalizeOpenAIFinish(reason string, toolCalls []ToolCall) string {
	if reason == "tool_calls" || len(toolCalls) > 0 {
		return FinishToolCalls
	}
	return FinishStop
}

// toolCallAccumulator reassembles streamed tool-call fragments by index.
type toolCallAccumulator struct {
	order []int
	calls map[int]*partialToolCall
}

type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: map[int]*partialToolCall{}}
}

func (a *toolCallAccumulator) add(chunk openaiToolCallChunk) {
	p, ok := a.calls[chunk.Index]
	if !ok {
		p = &partialToolCall{}
		a.calls[chunk.Index] = p
		a.order = append(a.order, chunk.Index)
	}
	if chunk.ID != "" {
		p.id = chunk.ID
	}
	if chunk.Function != nil {
		if chunk.Function.Name != "" {
			p.name = chunk.Function.Name
		}
		p.args.WriteString(chunk.Function.Arguments)
	}
}

func (a *toolCallAccumulator) finish() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		p := a.calls[idx]
		out = append(out, ToolCall{
			ID:        p.id,
			Name:      p.name,
			Arguments: NormalizeArguments(p.args.String()),
		})
	}
	return out
}

// doPost sends an authenticated POST and returns the response body. Caller
// closes the returned ReadCloser. Non-2xx statuses return an error carrying
// the status and body.
func (d *OpenAIDriver) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := d.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("openai post %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}
