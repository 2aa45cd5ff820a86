// Package llm — Ollama HTTP adapter.
// OllamaDriver calls the local Ollama REST API using stdlib net/http.
// Endpoints used:
//   - POST /api/chat        — chat completion (blocking and ndjson streaming)
//   - POST /api/embeddings  — single text embedding
//   - GET  /api/tags        — health check (lists available models)
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

	"github.com/askdb-ai/askdb/pkg/uuid"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
)

// toolCapableFamilies lists the local model families known to emit structured
// tool calls. Models outside this list are conservatively reported as not
// supporting tools so callers omit tool schemas instead of sending a request
// the backend will mishandle.
var toolCapableFamilies = []string{
	"llama3.1",
	"llama3.2",
	"llama3.3",
	"mistral",
	"mixtral",
	"qwen2.5",
	"command-r",
	"granite3-dense",
}

// OllamaDriver implements Driver against a running Ollama instance.
type OllamaDriver struct {
	baseURL     string
	model       string
	embedModel  string
	temperature float64
	httpClient  *http.Client
}

// NewOllamaDriver creates an OllamaDriver. The timeout applies to both
// blocking and streaming calls.
func NewOllamaDriver(baseURL, model, embedModel string, temperature float64, timeout time.Duration) *OllamaDriver {
	return &OllamaDriver{
		baseURL:     baseURL,
		model:       model,
		embedModel:  embedModel,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type ollamaTool struct {
	Type     string          `json:"type"`
	Function ollamaToolShape `json:"function"`
}

type ollamaToolShape struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message    ollamaMessage `json:"message"`
	DoneReason string        `json:"done_reason"`
	Done       bool          `json:"done"`
	PromptEval int           `json:"prompt_eval_count"`
	EvalCount  int           `json:"eval_count"`
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ─── Driver implementation ───────────────────────────────────────────────────

// Chat performs a blocking chat via POST /api/chat.
func (d *OllamaDriver) Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error) {
	body, err := json.Marshal(d.buildChatRequest(messages, tools, false))
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/api/chat", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close() //nolint:errcheck

	var ollamaResp ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&ollamaResp); decodeErr != nil {
		return nil, fmt.Errorf("ollama: decode chat response: %w", decodeErr)
	}

	toolCalls := convertOllamaToolCalls(ollamaResp.Message.ToolCalls)
	return &Response{
		Content:          ollamaResp.Message.Content,
		ToolCalls:        toolCalls,
		FinishReason:     finishReasonFor(toolCalls),
		PromptTokens:     ollamaResp.PromptEval,
		CompletionTokens: ollamaResp.EvalCount,
	}, nil
}

// Stream performs a streaming chat via POST /api/chat with stream=true.
// Ollama emits one JSON object per line; each content-bearing line yields a
// content chunk, and the done line yields the terminal chunk.
func (d *OllamaDriver) Stream(ctx context.Context, messages []Message, tools []ToolSchema) (<-chan StreamChunk, error) {
	body, err := json.Marshal(d.buildChatRequest(messages, tools, true))
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/api/chat", body)
	if postErr != nil {
		return nil, postErr
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer respBody.Close() //nolint:errcheck

		var toolCalls []ToolCall
		lr := NewLineReader(respBody)
		for {
			line, readErr := lr.Next()
			if readErr != nil {
				break
			}
			var event ollamaChatResponse
			if decodeErr := json.Unmarshal([]byte(line), &event); decodeErr != nil {
				continue // skip malformed lines rather than aborting the stream
			}
			if event.Message.Content != "" {
				select {
				case out <- StreamChunk{Content: event.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if len(event.Message.ToolCalls) > 0 {
				toolCalls = append(toolCalls, convertOllamaToolCalls(event.Message.ToolCalls)...)
			}
			if event.Done {
				break
			}
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

// Embed computes one embedding via POST /api/embeddings.
func (d *OllamaDriver) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: d.embedModel, Prompt: text})
	if err != nil {
		return nil, err
	}

	respBody, postErr := d.doPost(ctx, "/api/embeddings", body)
	if postErr != nil {
		return nil, fmt.Errorf("ollama embed: %w", postErr)
	}
	defer respBody.Close() //nolint:errcheck

	var resp ollamaEmbedResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, fmt.Errorf("ollama: decode embed response: %w", decodeErr)
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds each text with one call per text. Ollama does not support
// batch embeddings in a single request.
func (d *OllamaDriver) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := d.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// SupportsToolCalling matches the configured model's family (the name before
// any ":" tag, case-insensitive) against the allow-list. Unknown families
// report false.
func (d *OllamaDriver) SupportsToolCalling() bool {
	family := strings.ToLower(d.model)
	if idx := strings.IndexByte(family, ':'); idx >= 0 {
		family = family[:idx]
	}
	for _, known := range toolCapableFamilies {
		if strings.HasPrefix(family, known) {
			return true
		}
	}
	return false
}

// HealthCheck calls GET /api/tags — returns nil if Ollama is reachable.
func (d *OllamaDriver) HealthCheck(ctx context.Context) error {
	url := d.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (d *OllamaDriver) buildChatRequest(messages []Message, tools []ToolSchema, stream bool) ollamaChatRequest {
	msgs := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		msgs[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}

	var reqTools []ollamaTool
	if d.SupportsToolCalling() {
		for _, t := range tools {
			reqTools = append(reqTools, ollamaTool{
				Type: "function",
				Function: ollamaToolShape{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
	}

	var opts map[string]any
	if d.temperature != 0 {
		opts = map[string]any{"temperature": d.temperature}
	}
	return ollamaChatRequest{
		Model:    d.model,
		Messages: msgs,
		Tools:    reqTools,
		Stream:   stream,
		Options:  opts,
	}
}

// convertOllamaToolCalls normalizes Ollama tool calls. Ollama does not assign
// call ids, so one is synthesized per call.
func convertOllamaToolCalls(calls []ollamaToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, ToolCall{
			ID:        uuid.NewV7().String(),
			Name:      c.Function.Name,
			Arguments: NormalizeArguments(c.Function.Arguments),
		})
	}
	return out
}

// finishReasonFor maps a turn outcome to the neutral finish reason: tool_calls
// when any tool call was accumulated, stop otherwise.
func finishReasonFor(toolCalls []ToolCall) string {
	if len(toolCalls) > 0 {
		return FinishToolCalls
	}
	return FinishStop
}

// doPost sends a POST request to baseURL+path and returns the response body.
// Caller is responsible for closing the returned ReadCloser. Non-2xx statuses
// return an error carrying the status and body.
func (d *OllamaDriver) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := d.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("ollama post %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}
