// Package tool maps tool names to executable units and executes them
// uniformly. Tool failures are data fed back to the model as tool-result
// messages, never control flow: a failing tool does not abort the agent loop.
package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Tool is one executable unit the model can call.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON-Schema-shaped object describing the
	// arguments (type/properties/required).
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) Result
}

// Result is the outcome of one tool call. Exactly one of Data/Error is
// meaningful: a failed result never carries usable data.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps data in a successful result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps an error message in a failed result.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Run executes a tool, converting panics from the tool body into failed
// results so one misbehaving tool never takes the run down.
func Run(ctx context.Context, t Tool, args map[string]any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail("tool %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Execute(ctx, args)
}

// ─── per-run call state ──────────────────────────────────────────────────────

type questionKey struct{}

// WithQuestion stores the current natural-language question on the context so
// tools that raise learning events can attach it. Set once per run.
func WithQuestion(ctx context.Context, question string) context.Context {
	return context.WithValue(ctx, questionKey{}, question)
}

// QuestionFrom returns the question stored by WithQuestion, or empty.
func QuestionFrom(ctx context.Context) string {
	q, _ := ctx.Value(questionKey{}).(string)
	return q
}

// ─── argument helpers ────────────────────────────────────────────────────────

// stringArg returns the first non-empty string value among the given keys.
func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := args[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// intArg returns an integer argument; JSON numbers arrive as float64, but
// string-encoded values tolerated too.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// boolArg returns a boolean argument with a fallback.
func boolArg(args map[string]any, key string, fallback bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return fallback
}

// stringSliceArg accepts either a JSON array of strings or one
// comma-separated string.
func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return v
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return nil
}
