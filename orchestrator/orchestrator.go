// Package orchestrator drives one conversational turn end to end: it starts
// the escalation scheduler, runs the agent, feeds step notifications into the
// lifecycle tracker, and multiplexes prose and progress markers into the
// single stream handed to the transport layer.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/launchforge/launchforge/agent"
	"github.com/launchforge/launchforge/editor"
	"github.com/launchforge/launchforge/errs"
	"github.com/launchforge/launchforge/escalate"
	"github.com/launchforge/launchforge/lifecycle"
	"github.com/launchforge/launchforge/marker"
	"github.com/launchforge/launchforge/message"
	"github.com/launchforge/launchforge/pkg/logging"
	"github.com/launchforge/launchforge/stream"
	"github.com/launchforge/launchforge/tokenizer"
	"github.com/launchforge/launchforge/tool"
	"github.com/launchforge/launchforge/transcript"
)

const snippetLimit = 80

// transcriptTimeout bounds the best-effort save after the turn has ended.
const transcriptTimeout = 5 * time.Second

// TurnRequest describes one incoming user turn.
type TurnRequest struct {
	ProjectID      string
	ConversationID string
	Message        string
	// History carries prior conversation messages, oldest first.
	History []*message.Message
}

// Validate rejects malformed requests before any streaming starts, so the
// transport can still answer with a plain status code.
func (r *TurnRequest) Validate() error {
	if r == nil {
		return errs.Validationf("request cannot be nil")
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return errs.Validationf("project id cannot be empty")
	}
	if strings.TrimSpace(r.ConversationID) == "" {
		return errs.Validationf("conversation id cannot be empty")
	}
	if strings.TrimSpace(r.Message) == "" {
		return errs.Validationf("message cannot be empty")
	}
	return nil
}

// Config assembles a Driver.
type Config struct {
	// Agent produces the model runs. Required.
	Agent agent.Agent
	// Editor applies website edits; when set the driver registers the
	// edit_website and undo_last_edit tools. Optional.
	Editor *editor.Service
	// Tools are additional capabilities exposed to the model. Optional.
	Tools []*tool.Tool
	// Transcripts persists finished turns. Defaults to transcript.Noop.
	Transcripts transcript.Store
	// Tokens counts turn tokens for the TOKENS marker. Optional.
	Tokens *tokenizer.Counter
	// Pricing converts token counts into the cost reported in TOKENS.
	Pricing tokenizer.Pricing
	// Schedule defaults to escalate.DefaultSchedule().
	Schedule escalate.Schedule
	// SystemPrompt is prepended to every turn.
	SystemPrompt string
	// MaxSteps caps agent tool-use rounds. Defaults to 8.
	MaxSteps int
}

// Driver owns the per-turn orchestration. One Driver serves many concurrent
// turns; all per-turn state lives in the turn itself.
type Driver struct {
	agent        agent.Agent
	editor       *editor.Service
	tools        []*tool.Tool
	transcripts  transcript.Store
	tokens       *tokenizer.Counter
	pricing      tokenizer.Pricing
	schedule     escalate.Schedule
	systemPrompt string
	maxSteps     int

	log    *slog.Logger
	tracer trace.Tracer
}

// NewDriver validates the configuration and builds a Driver.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("orchestrator: agent is required")
	}
	if cfg.Schedule == nil {
		cfg.Schedule = escalate.DefaultSchedule()
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if cfg.Transcripts == nil {
		cfg.Transcripts = transcript.Noop{}
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}

	return &Driver{
		agent:        cfg.Agent,
		editor:       cfg.Editor,
		tools:        cfg.Tools,
		transcripts:  cfg.Transcripts,
		tokens:       cfg.Tokens,
		pricing:      cfg.Pricing,
		schedule:     cfg.Schedule,
		systemPrompt: cfg.SystemPrompt,
		maxSteps:     cfg.MaxSteps,
		log:          logging.WithComponent("orchestrator"),
		tracer:       otel.Tracer("launchforge/orchestrator"),
	}, nil
}

// Turn runs one user turn and returns the combined output stream. An error is
// returned only for failures detected before streaming begins; later failures
// degrade into status markers on the stream itself.
func (d *Driver) Turn(ctx context.Context, req *TurnRequest) (<-chan string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "orchestrator.turn")
	span.SetAttributes(
		attribute.String("project.id", req.ProjectID),
		attribute.String("conversation.id", req.ConversationID),
	)

	progress := make(chan stream.Item, 64)
	emit := func(e marker.Event) {
		select {
		case progress <- stream.Item{Event: e}:
		case <-ctx.Done():
		}
	}
	prose := func(s string) {
		select {
		case progress <- stream.Item{Prose: s}:
		case <-ctx.Done():
		}
	}

	mux := stream.NewMux(64)
	registry, err := d.turnRegistry(req.ProjectID, emit, mux.SuppressProse)
	if err != nil {
		span.End()
		return nil, err
	}

	tracker := lifecycle.NewTracker(lifecycle.Config{
		Emit:          emit,
		Prose:         prose,
		OnEditApplied: mux.SuppressProse,
		Labels:        registry.Labels(),
	})

	sched, err := escalate.New(d.schedule, emit)
	if err != nil {
		span.End()
		return nil, err
	}

	msgs := make([]*message.Message, 0, len(req.History)+1)
	msgs = append(msgs, req.History...)
	msgs = append(msgs, message.New(message.RoleUser, req.Message))

	run, err := d.agent.Stream(ctx, &agent.Request{
		SystemPrompt: d.systemPrompt,
		Messages:     msgs,
		Tools:        registry,
		MaxSteps:     d.maxSteps,
	})
	if err != nil {
		span.End()
		return nil, fmt.Errorf("start agent: %w", err)
	}

	sched.Start(ctx)

	// Text is forwarded through an intermediate channel so the first chunk
	// can cancel the scheduler and the full assistant text is captured for
	// the transcript.
	text := make(chan string, 16)
	textDone := make(chan struct{})
	var assistant strings.Builder
	go func() {
		defer close(text)
		defer close(textDone)
		for chunk := range run.Text {
			sched.Cancel()
			assistant.WriteString(chunk)
			select {
			case text <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer span.End()

		for step := range run.Steps {
			if len(step.Calls) > 0 {
				sched.Cancel()
			}
			tracker.OnStep(step)
		}

		runErr := <-run.Err
		<-textDone

		// No marker may race the channel close below.
		sched.Cancel()
		<-sched.Done()

		if runErr != nil && ctx.Err() == nil {
			d.log.Error("turn failed mid-stream",
				"project", req.ProjectID,
				"conversation", req.ConversationID,
				"error", runErr,
			)
			emit(marker.Status{Code: "error", Message: "Something went wrong while generating your response. Please try again."})
		} else {
			d.emitTokenUsage(emit, req, assistant.String())
		}

		d.saveTranscript(req, assistant.String(), tracker.Invocations())
		close(progress)
	}()

	return mux.Run(ctx, text, progress), nil
}

// turnRegistry builds the per-turn tool registry: every configured tool is
// wrapped so its progress updates surface as PROGRESS markers, and the edit
// tools are bound to the turn's project. onEditApplied latches prose
// suppression from inside the edit handler, before the model can narrate the
// result, so the latch always beats the continuation.
func (d *Driver) turnRegistry(projectID string, emit func(marker.Event), onEditApplied func()) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	for _, base := range d.tools {
		wrapped := *base
		name, handler := base.Name, base.Handler
		wrapped.Handler = func(ctx context.Context, args map[string]any, _ tool.ProgressFunc) (string, error) {
			return handler(ctx, args, func(stage, msg string) {
				emit(marker.ToolProgress{Name: name, Stage: stage, Message: msg})
			})
		}
		if err := registry.Register(&wrapped); err != nil {
			return nil, err
		}
	}

	if d.editor != nil {
		if err := registry.Register(d.editTool(projectID, emit, onEditApplied)); err != nil {
			return nil, err
		}
		if err := registry.Register(d.undoTool(projectID)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func (d *Driver) editTool(projectID string, emit func(marker.Event), onApplied func()) *tool.Tool {
	return &tool.Tool{
		Name:        "edit_website",
		Label:       "Updating your website",
		Description: "Apply a change to the user's generated website. Use for any request to modify the site's content, styling or structure.",
		Parameters: []tool.Parameter{
			{Name: "instruction", Type: "string", Description: "What to change, in plain language", Required: true},
			{Name: "page", Type: "string", Description: "Page to edit; defaults to the home page"},
		},
		Handler: func(ctx context.Context, args map[string]any, onProgress tool.ProgressFunc) (string, error) {
			instruction, _ := args["instruction"].(string)
			page, _ := args["page"].(string)
			if page == "" {
				page = "home"
			}

			rec, result, err := d.editor.EditPage(ctx, projectID, page, instruction, func(stage, msg string) {
				emit(marker.ToolProgress{Name: "edit_website", Stage: stage, Message: msg})
			})
			if err != nil {
				return "", err
			}

			change := marker.ToolChanged{
				Name:        "edit_website",
				File:        page,
				Description: instruction,
			}
			if len(result.Ops) > 0 {
				change.Before = truncate(result.Ops[0].Find, snippetLimit)
				change.After = truncate(result.Ops[0].Replace, snippetLimit)
			}
			emit(change)
			if onApplied != nil {
				onApplied()
			}

			return fmt.Sprintf("Applied %s edit to page %q (now version %d).", result.Classification, page, rec.Version), nil
		},
	}
}

func (d *Driver) undoTool(projectID string) *tool.Tool {
	return &tool.Tool{
		Name:        "undo_last_edit",
		Label:       "Undoing the last change",
		Description: "Restore the previous version of a page after an unwanted edit.",
		Parameters: []tool.Parameter{
			{Name: "page", Type: "string", Description: "Page to restore; defaults to the home page"},
		},
		Handler: func(ctx context.Context, args map[string]any, _ tool.ProgressFunc) (string, error) {
			page, _ := args["page"].(string)
			if page == "" {
				page = "home"
			}
			rec, err := d.editor.UndoPage(ctx, projectID, page)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Restored page %q to its previous version (now version %d).", page, rec.Version), nil
		},
	}
}

func (d *Driver) emitTokenUsage(emit func(marker.Event), req *TurnRequest, assistant string) {
	if d.tokens == nil {
		return
	}
	input := d.tokens.Count(d.systemPrompt) + d.tokens.Count(req.Message)
	for _, msg := range req.History {
		input += d.tokens.Count(msg.Content)
	}
	output := d.tokens.Count(assistant)
	emit(marker.TokenUsage{
		Input:   input,
		Output:  output,
		CostUSD: d.pricing.Cost(input, output),
	})
}

// saveTranscript persists the finished turn. Failures are logged and
// swallowed: the response already streamed and must not be retracted over a
// bookkeeping error.
func (d *Driver) saveTranscript(req *TurnRequest, assistant string, tools []lifecycle.Invocation) {
	ctx, cancel := context.WithTimeout(context.Background(), transcriptTimeout)
	defer cancel()

	turn := &transcript.Turn{
		ID:             fmt.Sprintf("%s-%d", req.ConversationID, time.Now().UnixNano()),
		ProjectID:      req.ProjectID,
		ConversationID: req.ConversationID,
		UserMessage:    req.Message,
		AssistantText:  assistant,
		Tools:          tools,
		CreatedAt:      time.Now(),
	}
	if d.tokens != nil {
		turn.InputTokens = d.tokens.Count(req.Message)
		turn.OutputTokens = d.tokens.Count(assistant)
	}

	if err := d.transcripts.Save(ctx, turn); err != nil {
		d.log.Warn("transcript save failed",
			"conversation", req.ConversationID,
			"error", err,
		)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
