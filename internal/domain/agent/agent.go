// Package agent drives the question-answering loop: build grounding context,
// call the model, dispatch tool calls, repeat until the model answers or the
// iteration cap is hit. The loop never panics past this boundary — every run
// ends in a Response, degraded if necessary.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/retrieval"
	"github.com/askdb-ai/askdb/internal/domain/tool"
	"github.com/askdb-ai/askdb/internal/llm"
)

const defaultMaxIterations = 10

// Request is one question to answer.
type Request struct {
	Question   string
	Connection string
	// History carries prior conversation turns; only user and assistant
	// roles are replayed.
	History []knowledge.Message
}

// Iteration is the diagnostic trace of one model turn.
type Iteration struct {
	Iteration    int
	Content      string
	ToolCalls    []llm.ToolCall
	FinishReason string
}

// Response is the outcome of one run. Answer is always best-effort non-empty;
// Err is set when the run ended in a gateway failure or the iteration cap.
type Response struct {
	Answer     string
	SQL        string
	Results    any
	ToolCalls  []llm.ToolCall
	Iterations []Iteration
	Err        string
}

// Agent orchestrates one question per Run call. Agents are stateless across
// runs and safe for concurrent use.
type Agent struct {
	driver        llm.Driver
	registry      *tool.Registry
	builder       *retrieval.Builder
	maxIterations int
	connection    string
	logger        *slog.Logger
}

// New creates an Agent.
func New(driver llm.Driver, registry *tool.Registry, builder *retrieval.Builder, maxIterations int, connection string, logger *slog.Logger) *Agent {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		driver:        driver,
		registry:      registry,
		builder:       builder,
		maxIterations: maxIterations,
		connection:    connection,
		logger:        logger,
	}
}

// runState tracks the best-effort side channel of one run: the last SQL the
// model successfully executed and its rows, used for degraded answers and
// downstream presentation.
type runState struct {
	lastSQL     string
	lastResults any
	toolCalls   []llm.ToolCall
}

// Run answers one question, blocking until the run terminates.
func (a *Agent) Run(ctx context.Context, req Request) *Response {
	connection := a.connectionFor(req)
	ctx = tool.WithQuestion(ctx, req.Question)

	doc := a.builder.Build(ctx, req.Question, connection)
	messages := seedMessages(systemPrompt(doc), req.History, req.Question)
	tools := a.toolSchemas()

	state := &runState{}
	var iterations []Iteration

	for i := 1; i <= a.maxIterations; i++ {
		resp, err := a.driver.Chat(ctx, messages, tools)
		if err != nil {
			a.logger.Error("model call failed", "iteration", i, "error", err)
			return a.errored(err, state, iterations)
		}
		iterations = append(iterations, Iteration{
			Iteration:    i,
			Content:      resp.Content,
			ToolCalls:    resp.ToolCalls,
			FinishReason: resp.FinishReason,
		})

		if !resp.HasToolCalls() {
			answer := resp.Content
			if strings.TrimSpace(answer) == "" {
				// The model sometimes stops without prose after a tool
				// turn. Fall back to the raw rows rather than answering
				// with nothing.
				answer = resultsAnswer(state.lastSQL, state.lastResults)
			}
			return &Response{
				Answer:     answer,
				SQL:        state.lastSQL,
				Results:    state.lastResults,
				ToolCalls:  state.toolCalls,
				Iterations: iterations,
			}
		}
		messages = a.appendToolTurn(ctx, messages, resp, state, nil)
	}

	return &Response{
		Answer:     degradedAnswer(maxIterationsAnswer, state.lastSQL),
		SQL:        state.lastSQL,
		Results:    state.lastResults,
		ToolCalls:  state.toolCalls,
		Iterations: iterations,
		Err:        errMaxIterations,
	}
}

// Stream answers one question, forwarding content deltas as they arrive. The
// returned channel is closed when the run terminates; cancel ctx to abandon
// the stream early.
func (a *Agent) Stream(ctx context.Context, req Request) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		a.streamRun(ctx, req, out)
	}()
	return out
}

func (a *Agent) streamRun(ctx context.Context, req Request, out chan<- llm.StreamChunk) {
	connection := a.connectionFor(req)
	ctx = tool.WithQuestion(ctx, req.Question)

	doc := a.builder.Build(ctx, req.Question, connection)
	messages := seedMessages(systemPrompt(doc), req.History, req.Question)
	tools := a.toolSchemas()

	state := &runState{}
	notify := func(text string) {
		a.send(ctx, out, llm.StreamChunk{Content: text})
	}

	for i := 1; i <= a.maxIterations; i++ {
		chunks, err := a.driver.Stream(ctx, messages, tools)
		if err != nil {
			a.logger.Error("model stream failed", "iteration", i, "error", err)
			a.send(ctx, out, llm.StreamChunk{Content: erroredAnswer(err, state.lastSQL)})
			a.send(ctx, out, llm.StreamChunk{Complete: true, FinishReason: llm.FinishStop})
			return
		}

		turn := a.forwardTurn(ctx, chunks, out)
		if len(turn.ToolCalls) == 0 {
			if strings.TrimSpace(turn.Content) == "" {
				if fallback := resultsAnswer(state.lastSQL, state.lastResults); fallback != "" {
					a.send(ctx, out, llm.StreamChunk{Content: fallback})
				}
			}
			a.send(ctx, out, llm.StreamChunk{Complete: true, FinishReason: llm.FinishStop})
			return
		}
		resp := &llm.Response{Content: turn.Content, ToolCalls: turn.ToolCalls, FinishReason: turn.FinishReason}
		messages = a.appendToolTurn(ctx, messages, resp, state, notify)
	}

	a.send(ctx, out, llm.StreamChunk{Content: degradedAnswer(maxIterationsAnswer, state.lastSQL)})
	a.send(ctx, out, llm.StreamChunk{Complete: true, FinishReason: llm.FinishMaxIterations})
}

// turnResult is what one streamed model turn produced after its deltas were
// forwarded.
type turnResult struct {
	Content      string
	ToolCalls    []llm.ToolCall
	FinishReason string
}

// forwardTurn relays content deltas to the consumer in arrival order and
// returns the turn's terminal state.
func (a *Agent) forwardTurn(ctx context.Context, chunks <-chan llm.StreamChunk, out chan<- llm.StreamChunk) turnResult {
	var turn turnResult
	for chunk := range chunks {
		if chunk.Complete {
			turn.ToolCalls = chunk.ToolCalls
			turn.FinishReason = chunk.FinishReason
			continue
		}
		if chunk.Content != "" {
			turn.Content += chunk.Content
			a.send(ctx, out, llm.StreamChunk{Content: chunk.Content})
		}
	}
	return turn
}

// appendToolTurn appends the assistant turn and executes its tool calls
// sequentially, in call order — providers pair calls and results by position.
// Each result is appended as a tool message whether it succeeded or failed.
func (a *Agent) appendToolTurn(ctx context.Context, messages []llm.Message, resp *llm.Response, state *runState, notify func(string)) []llm.Message {
	messages = append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	for _, call := range resp.ToolCalls {
		state.toolCalls = append(state.toolCalls, call)
		if notify != nil {
			notify(fmt.Sprintf("\n[%s]\n", toolLabel(call.Name)))
		}
		res := a.dispatch(ctx, call)
		if call.Name == "run_sql" && res.Success {
			if q, ok := call.Arguments["sql"].(string); ok && q != "" {
				state.lastSQL = q
			} else if q, ok := call.Arguments["query"].(string); ok && q != "" {
				state.lastSQL = q
			}
			state.lastResults = res.Data
		}
		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    encodeResult(res),
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return messages
}

func (a *Agent) dispatch(ctx context.Context, call llm.ToolCall) tool.Result {
	t, ok := a.registry.Get(call.Name)
	if !ok {
		a.logger.Warn("model called unknown tool", "tool", call.Name)
		return tool.Fail("unknown tool %q", call.Name)
	}
	res := tool.Run(ctx, t, call.Arguments)
	if !res.Success {
		a.logger.Debug("tool failed", "tool", call.Name, "error", res.Error)
	}
	return res
}

func (a *Agent) toolSchemas() []llm.ToolSchema {
	if !a.driver.SupportsToolCalling() {
		return nil
	}
	return a.registry.Schemas()
}

func (a *Agent) connectionFor(req Request) string {
	if req.Connection != "" {
		return req.Connection
	}
	return a.connection
}

func (a *Agent) errored(err error, state *runState, iterations []Iteration) *Response {
	return &Response{
		Answer:     erroredAnswer(err, state.lastSQL),
		SQL:        state.lastSQL,
		Results:    state.lastResults,
		ToolCalls:  state.toolCalls,
		Iterations: iterations,
		Err:        err.Error(),
	}
}

func (a *Agent) send(ctx context.Context, out chan<- llm.StreamChunk, chunk llm.StreamChunk) {
	select {
	case out <- chunk:
	case <-ctx.Done():
	}
}

// encodeResult renders a tool result as the JSON fed back to the model.
func encodeResult(res tool.Result) string {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"encoding tool result failed: %v"}`, err)
	}
	return string(payload)
}
