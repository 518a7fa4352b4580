// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import "time"

// =============================================================================
// MESSAGES
// =============================================================================

// Message is one chat message in a completion request or response.
// Role is one of "system", "user", "assistant" or "tool".
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Images     []string   `json:"images,omitempty"` // data URLs or remote URLs
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a completed function call requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// =============================================================================
// TOOLS
// =============================================================================

// Tool describes a function the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the schema half of a Tool.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// FunctionTool builds a Tool of type "function" with a flat object schema
// mapping each parameter name to a JSON type ("string", "number", ...).
// All listed parameters are required.
func FunctionTool(name, description string, params map[string]string) Tool {
	props := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for p, typ := range params {
		props[p] = map[string]any{"type": typ}
		required = append(required, p)
	}
	return Tool{
		Type: "function",
		Function: FunctionSpec{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// GenConfig is one completion request. Zero-valued sampling fields are
// omitted from the wire request so the provider defaults apply.
type GenConfig struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	Seed        int       `json:"seed,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
}

// =============================================================================
// STREAMING CHUNKS
// =============================================================================

// Chunk is a single streaming delta from a completion.
type Chunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one choice within a streaming chunk.
type ChunkChoice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

// Delta carries the incremental content and/or tool-call fragments.
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is a fragment of a tool call. Fragments for the same
// call share an Index; Arguments arrive concatenated across chunks.
type ToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Content returns the content delta of the first choice.
func (c *Chunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// FinishReason returns the finish reason of the first choice.
func (c *Chunk) FinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// Done reports whether this chunk ends the stream.
func (c *Chunk) Done() bool {
	return c.FinishReason() != ""
}

// ChunkHandler receives streaming deltas in arrival order.
type ChunkHandler func(Chunk)

// =============================================================================
// RESPONSE
// =============================================================================

// Response is the assembled result of a completion.
type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Stats   Stats    `json:"-"`
}

// Choice is one completion choice.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Stats holds timing collected client-side during a completion.
type Stats struct {
	FirstToken time.Duration
	Total      time.Duration
	Chunks     int
}

// Text returns the content of the first choice.
func (r *Response) Text() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// ToolCalls returns the tool calls of the first choice.
func (r *Response) ToolCalls() []ToolCall {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.ToolCalls
	}
	return nil
}

// FinishReason returns the finish reason of the first choice.
func (r *Response) FinishReason() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].FinishReason
	}
	return ""
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator folds streaming chunks into a Response, merging tool-call
// fragments by index.
type Accumulator struct {
	id           string
	model        string
	content      []byte
	finishReason string
	role         string
	calls        map[int]*ToolCall
	order        []int

	start      time.Time
	firstToken time.Time
	chunks     int
}

// NewAccumulator starts an accumulator; the clock starts now.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		calls: make(map[int]*ToolCall),
		start: time.Now(),
	}
}

// Add folds one chunk into the accumulated state.
func (a *Accumulator) Add(chunk Chunk) {
	a.chunks++
	if chunk.ID != "" {
		a.id = chunk.ID
	}
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	if choice.Delta.Role != "" {
		a.role = choice.Delta.Role
	}
	if choice.Delta.Content != "" {
		if a.firstToken.IsZero() {
			a.firstToken = time.Now()
		}
		a.content = append(a.content, choice.Delta.Content...)
	}
	for _, tc := range choice.Delta.ToolCalls {
		call, ok := a.calls[tc.Index]
		if !ok {
			call = &ToolCall{Type: "function"}
			a.calls[tc.Index] = call
			a.order = append(a.order, tc.Index)
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Type != "" {
			call.Type = tc.Type
		}
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}
	if choice.FinishReason != "" {
		a.finishReason = choice.FinishReason
	}
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	return string(a.content)
}

// HasToolCalls reports whether any tool-call fragments arrived.
func (a *Accumulator) HasToolCalls() bool {
	return len(a.order) > 0
}

// Response finalizes the accumulated state.
func (a *Accumulator) Response() *Response {
	role := a.role
	if role == "" {
		role = "assistant"
	}
	msg := Message{Role: role, Content: string(a.content)}
	for _, idx := range a.order {
		msg.ToolCalls = append(msg.ToolCalls, *a.calls[idx])
	}
	var ttft time.Duration
	if !a.firstToken.IsZero() {
		ttft = a.firstToken.Sub(a.start)
	}
	return &Response{
		ID:    a.id,
		Model: a.model,
		Choices: []Choice{{
			Message:      msg,
			FinishReason: a.finishReason,
		}},
		Stats: Stats{
			FirstToken: ttft,
			Total:      time.Since(a.start),
			Chunks:     a.chunks,
		},
	}
}
