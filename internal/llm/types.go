// Package llm defines the provider-neutral LLM contract and its adapters.
// All types here are shared between the driver interface and the per-provider
// implementations; nothing provider-specific leaks out of this package.
package llm

import "encoding/json"

// Message roles understood by every driver.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons reported on a completed model turn.
const (
	FinishStop          = "stop"
	FinishToolCalls     = "tool_calls"
	FinishMaxIterations = "max_iterations"
)

// Message represents a single turn in a conversation.
// ToolCallID and ToolName are set only on tool-result messages, and ToolCalls
// only on assistant messages that requested tool execution.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolName   string
	ToolCalls  []ToolCall
}

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments is always a parsed object by the time it leaves this package.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// NormalizeArguments decodes a raw argument payload into a map. Providers
// disagree on the wire shape: some send a parsed object, others a JSON-encoded
// string. Malformed JSON yields an empty map rather than an error so a single
// garbled tool call never crashes a run.
func NormalizeArguments(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case string:
		if v == "" {
			return map[string]any{}
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil || parsed == nil {
			return map[string]any{}
		}
		return parsed
	case json.RawMessage:
		return NormalizeArguments(string(v))
	default:
		return map[string]any{}
	}
}

// ToolSchema is the wire contract exposed to the model for one tool.
// Parameters is a JSON-Schema object (type/properties/required).
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Response is the normalized output of one blocking chat call.
type Response struct {
	Content          string
	ToolCalls        []ToolCall
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// HasToolCalls reports whether the model requested tool execution this turn.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// StreamChunk is the incremental unit of a streaming chat call.
// Content deltas arrive zero or more times, in order, before exactly one
// terminal chunk with Complete=true carrying any accumulated tool calls and
// the finish reason.
type StreamChunk struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Complete     bool
}
