// Package llm — driver interface and manager.
// Adapters (Ollama, OpenAI, Anthropic) implement Driver so nothing above this
// package is coupled to a specific model vendor.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingsUnsupported is returned by drivers whose provider exposes no
// embedding endpoint.
var ErrEmbeddingsUnsupported = errors.New("llm: embeddings not supported by this driver")

// Driver is the provider-neutral interface for LLM operations.
type Driver interface {
	// Chat performs a blocking chat completion. Tool schemas may be nil when
	// the caller wants a plain completion.
	Chat(ctx context.Context, messages []Message, tools []ToolSchema) (*Response, error)

	// Stream performs a streaming chat completion. The returned channel is
	// closed after the terminal chunk; abandoning the consumer cancels via ctx.
	Stream(ctx context.Context, messages []Message, tools []ToolSchema) (<-chan StreamChunk, error)

	// Embed computes a dense vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a batch of texts. An empty batch returns
	// an empty slice without a provider call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// SupportsToolCalling reports whether the configured model can emit
	// structured tool calls. Callers omit tool schemas when false.
	SupportsToolCalling() bool
}

// Manager selects a Driver per request from a named set.
type Manager struct {
	drivers       map[string]Driver
	defaultDriver string
}

// NewManager creates a Manager with an initial set of drivers and a default key.
func NewManager(drivers map[string]Driver, defaultDriver string) *Manager {
	// defensive copy so the caller cannot mutate the internal map.
	ds := make(map[string]Driver, len(drivers))
	for k, v := range drivers {
		ds[k] = v
	}
	return &Manager{drivers: ds, defaultDriver: defaultDriver}
}

// Register adds (or replaces) a driver under the given key.
func (m *Manager) Register(key string, d Driver) {
	m.drivers[key] = d
}

// Default returns the configured default driver.
func (m *Manager) Default() (Driver, error) {
	return m.Driver(m.defaultDriver)
}

// Driver returns the driver registered under key.
func (m *Manager) Driver(key string) (Driver, error) {
	d, ok := m.drivers[key]
	if !ok {
		return nil, fmt.Errorf("llm manager: driver %q not registered (available: %v)", key, m.keys())
	}
	return d, nil
}

// keys returns the registered driver names (for error messages).
func (m *Manager) keys() []string {
	out := make([]string, 0, len(m.drivers))
	for k := range m.drivers {
		out = append(out, k)
	}
	return out
}
