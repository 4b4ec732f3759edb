// Package core provides the foundational types and interfaces for Retrofit crews.
//
// This package contains:
//   - Interfaces: Tool, LLMClient
//   - LLM request/response structures shared by providers and the executor
//   - Retry and usage accounting types
package core

import (
	"context"
	"time"
)

// Tool is the interface every Retrofit analysis tool implements.
// Tools are stateless: a fresh instance is produced by a registry factory
// for each consumer, and Invoke is a pure function of its arguments plus
// whatever files it is pointed at.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Factory is a zero-argument constructor producing a tool instance on demand.
type Factory func() Tool

// FuncTool is a simple function-backed tool.
// Useful for creating tools inline without implementing a full interface.
type FuncTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (map[string]any, error)
}

// NewFuncTool creates a new function-backed tool.
func NewFuncTool(name string, fn func(ctx context.Context, args map[string]any) (map[string]any, error)) *FuncTool {
	return &FuncTool{name: name, fn: fn}
}

// Name returns the tool's name.
func (t *FuncTool) Name() string { return t.name }

// Invoke executes the tool function.
func (t *FuncTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if t.fn == nil {
		return map[string]any{}, nil
	}
	return t.fn(ctx, args)
}

// RetryPolicy configures retry behavior for tasks that call external systems.
type RetryPolicy struct {
	MaxAttempts int           // maximum number of attempts (1 = no retries)
	Backoff     time.Duration // base backoff duration between attempts
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Second,
	}
}

// =============================================================================
// LLM Client Interface
// =============================================================================

// LLMClient abstracts a single provider/model backend.
// Implementations adapt various LLM providers to this common interface.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// LLMRequest is the request structure for LLM completion.
// It is transport-agnostic and works across different providers.
type LLMRequest struct {
	Model       string         // model identifier (e.g., "gpt-4", "claude-3-opus")
	System      string         // system prompt
	Messages    []LLMMessage   // conversation messages
	InputText   string         // optional: simple prompt mode (converted to user message)
	Temperature *float64       // optional: sampling temperature
	MaxTokens   *int           // optional: maximum output tokens
	Meta        map[string]any // trace/cost controls
}

// LLMMessage is a chat message in Retrofit format.
type LLMMessage struct {
	Role        string          // "system", "user", "assistant", "tool"
	Content     string          // message content
	Name        string          // optional: tool name, agent role, etc.
	ToolCalls   []LLMToolCall   // for assistant messages with pending tool calls
	ToolResults []LLMToolResult // for tool result messages (Role="tool")
	Meta        map[string]any  // optional metadata
}

// LLMResponse captures the output from an LLM call.
type LLMResponse struct {
	Text      string         // raw text output
	Messages  []LLMMessage   // conversation messages including response
	Usage     LLMTokenUsage  // token consumption
	Provider  string         // provider ID that handled the request
	Model     string         // model that generated the response
	ToolCalls []LLMToolCall  // tool calls requested by the model
	Status    string         // response status (optional)
	Meta      map[string]any // additional response metadata
}

// LLMTokenUsage tracks token consumption for LLM calls.
type LLMTokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64 // optional: computed cost
}

// Add combines two LLMTokenUsage values.
func (u LLMTokenUsage) Add(other LLMTokenUsage) LLMTokenUsage {
	return LLMTokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
		CostUSD:      u.CostUSD + other.CostUSD,
	}
}

// LLMToolCall represents a tool invocation requested by the model.
type LLMToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// LLMToolResult represents the result of executing a tool.
// This is used to send tool execution results back to the model for
// multi-turn tool use.
type LLMToolResult struct {
	CallID  string // Must match LLMToolCall.ID from the response
	Content any    // Result data (will be JSON marshaled by the adapter)
	IsError bool   // True if this represents an error result
}

// Ensure interface compliance at compile time.
var _ Tool = (*FuncTool)(nil)
