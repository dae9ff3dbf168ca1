package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/launchforge/launchforge/message"
	"github.com/launchforge/launchforge/pkg/logging"
)

// LLM is the chat backend the loop drives. One call per reasoning step.
type LLM interface {
	Chat(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error)
}

// Loop is a straightforward Agent over a chat LLM: call the model, execute
// any tool calls it issued, feed the results back, repeat until the model
// answers in prose or MaxSteps is reached.
type Loop struct {
	llm LLM
	log *slog.Logger
}

// NewLoop builds a loop agent over the given backend. The tool registry
// arrives per request; its handlers are expected to already carry their
// progress wiring, so the loop passes no progress callback of its own.
func NewLoop(llm LLM) *Loop {
	return &Loop{
		llm: llm,
		log: logging.WithComponent("agent"),
	}
}

// Stream implements Agent.
func (l *Loop) Stream(ctx context.Context, req *Request) (*Run, error) {
	if req == nil {
		return nil, fmt.Errorf("agent: request cannot be nil")
	}
	if l.llm == nil {
		return nil, fmt.Errorf("agent: no LLM backend configured")
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	text := make(chan string, 16)
	steps := make(chan Step, 4)
	errc := make(chan error, 1)

	go func() {
		defer close(text)
		defer close(steps)
		defer close(errc)
		errc <- l.run(ctx, req, maxSteps, text, steps)
	}()

	return &Run{Text: text, Steps: steps, Err: errc}, nil
}

func (l *Loop) run(ctx context.Context, req *Request, maxSteps int, text chan<- string, steps chan<- Step) error {
	msgs := make([]*message.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, message.New(message.RoleSystem, req.SystemPrompt))
	}
	msgs = append(msgs, req.Messages...)

	var schemas []map[string]any
	if req.Tools != nil {
		schemas = req.Tools.ToJSONSchemas()
	}

	for step := 0; step < maxSteps; step++ {
		resp, err := l.llm.Chat(ctx, msgs, schemas)
		if err != nil {
			return fmt.Errorf("agent step %d: %w", step, err)
		}
		msgs = append(msgs, resp)

		if len(resp.ToolCalls) == 0 {
			return l.streamText(ctx, resp.Content, text)
		}
		if req.Tools == nil {
			return fmt.Errorf("agent step %d: model issued tool calls but no tools are registered", step)
		}

		calls := make([]ToolCall, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args})
		}
		// Announce the calls before executing so tool starts surface live.
		if !send(ctx, steps, Step{Calls: calls}) {
			return ctx.Err()
		}

		results := make([]ToolResult, 0, len(calls))
		for _, call := range calls {
			summary, err := req.Tools.Execute(ctx, call.Name, call.Args, nil)
			success := err == nil
			result := ToolResult{Name: call.Name, Success: &success, Summary: summary}
			if err != nil {
				result.Error = err.Error()
				l.log.Warn("tool failed", "tool", call.Name, "error", err)
				summary = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
			}
			results = append(results, result)
			msgs = append(msgs, message.NewToolResponse(call.ID, summary))
		}

		if !send(ctx, steps, Step{Calls: calls, Results: results}) {
			return ctx.Err()
		}
	}

	return fmt.Errorf("agent: max steps (%d) reached", maxSteps)
}

// streamText delivers the final prose line by line so the client renders
// progressively even over a non-streaming backend.
func (l *Loop) streamText(ctx context.Context, content string, text chan<- string) error {
	lines := strings.SplitAfter(content, "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		select {
		case text <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func send(ctx context.Context, steps chan<- Step, step Step) bool {
	select {
	case steps <- step:
		return true
	case <-ctx.Done():
		return false
	}
}
