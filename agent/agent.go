// Package agent defines the tool-calling agent abstraction the orchestration
// driver consumes: a text-chunk stream plus per-step notifications of the
// tool calls issued and tool results received.
package agent

import (
	"context"

	"github.com/launchforge/launchforge/message"
	"github.com/launchforge/launchforge/tool"
)

// ToolCall is one tool invocation issued by the model within a step.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of one tool invocation. A nil Success means the
// tool did not report a flag and is treated as success.
type ToolResult struct {
	Name    string
	Success *bool
	Error   string
	Summary string
}

// Step reports one reasoning step: the tool calls it issued and the results
// received so far. How many calls a step contains is up to the backend; the
// tracker deduplicates across steps.
type Step struct {
	Calls   []ToolCall
	Results []ToolResult
}

// Request describes one turn handed to the agent. Tools carries the per-turn
// registry: handlers are bound to the requesting project, so the registry
// cannot outlive the turn.
type Request struct {
	SystemPrompt string
	Messages     []*message.Message
	Tools        *tool.Registry
	MaxSteps     int
}

// Run exposes the two event sequences of an in-flight turn. Text and Steps
// are closed when the agent finishes; Err then delivers exactly one value
// (nil on success) and is closed.
type Run struct {
	Text  <-chan string
	Steps <-chan Step
	Err   <-chan error
}

// Agent produces one Run per turn. Stream returns an error synchronously only
// for setup failures; everything after that flows through the Run.
type Agent interface {
	Stream(ctx context.Context, req *Request) (*Run, error)
}
