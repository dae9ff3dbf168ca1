// Package editor implements the two-tier content-edit strategy for generated
// artifacts: a surgical find/replace fast path for small, well-defined
// changes, with guaranteed fall-through to full regeneration whenever the
// fast path cannot prove it changed anything.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/launchforge/launchforge/errs"
	"github.com/launchforge/launchforge/pkg/logging"
	"github.com/launchforge/launchforge/pkg/telemetry"
)

// Classification of an edit instruction.
type Classification string

const (
	ClassFastPath       Classification = "fastPath"
	ClassFullRegenerate Classification = "fullRegeneration"
)

// Generator is one text-generation backend. The engine consumes two: a fast,
// cheap one for patch ops and a larger one for whole-artifact regeneration.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// PatchOp is one literal find/replace operation proposed by the fast path.
type PatchOp struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// Request is one edit attempt against an existing artifact body.
type Request struct {
	Content     string
	Instruction string
	// OnProgress receives stage updates; may be nil.
	OnProgress func(stage, message string)
}

// Result is the outcome of a successful edit attempt.
type Result struct {
	Content        string
	Classification Classification
	Applied        int
	Ops            []PatchOp
}

const (
	defaultContextWindow = 6000
	defaultMinLength     = 200
	maxPatchOps          = 5
)

// Simple-edit instructions pair one of these verbs with one of the targets.
// Anything else goes straight to full regeneration.
var (
	fastVerbRe   = regexp.MustCompile(`\b(change|update|make|set|use|switch|replace)\b`)
	fastTargetRe = regexp.MustCompile(`\b(font|color|colour|text|heading|headline|title|button|background|link|size|spacing|logo)\b`)
)

// Engine runs the two-tier edit strategy. Stateless; safe for concurrent use.
type Engine struct {
	fast          Generator
	full          Generator
	contextWindow int
	minLength     int
	log           *slog.Logger
	tracer        trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithContextWindow caps how much of the artifact the fast path sends as
// context.
func WithContextWindow(chars int) Option {
	return func(e *Engine) {
		if chars > 0 {
			e.contextWindow = chars
		}
	}
}

// WithMinLength sets the minimum plausible length for a regenerated artifact.
func WithMinLength(chars int) Option {
	return func(e *Engine) {
		if chars > 0 {
			e.minLength = chars
		}
	}
}

// NewEngine builds an engine over the two generation backends.
func NewEngine(fast, full Generator, opts ...Option) *Engine {
	e := &Engine{
		fast:          fast,
		full:          full,
		contextWindow: defaultContextWindow,
		minLength:     defaultMinLength,
		log:           logging.WithComponent("editor"),
		tracer:        otel.Tracer("launchforge/editor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify decides the strategy for an instruction. Only instructions that
// pair a simple-edit verb with a simple target take the fast path.
func (e *Engine) Classify(instruction string) Classification {
	lower := strings.ToLower(instruction)
	if fastVerbRe.MatchString(lower) && fastTargetRe.MatchString(lower) {
		return ClassFastPath
	}
	return ClassFullRegenerate
}

// Edit applies the instruction to the content. A fast-path attempt that
// matched nothing is indistinguishable from a wrong response and is never
// trusted: it always falls through to full regeneration.
func (e *Engine) Edit(ctx context.Context, req *Request) (result *Result, err error) {
	if req == nil || req.Content == "" {
		return nil, errs.NotFoundf("no artifact content to edit")
	}
	progress := req.OnProgress
	if progress == nil {
		progress = func(string, string) {}
	}

	ctx, span := e.tracer.Start(ctx, "editor.edit")
	defer func() {
		if result != nil {
			span.SetAttributes(
				attribute.String("edit.classification", string(result.Classification)),
				attribute.Int("edit.applied", result.Applied),
			)
		}
		telemetry.End(span, err)
	}()

	classification := e.Classify(req.Instruction)
	progress("classify", fmt.Sprintf("Planned a %s edit", classification))

	if classification == ClassFastPath {
		result, err = e.fastPath(ctx, req, progress)
		if err == nil && result != nil {
			return result, nil
		}
		// The fast path is a latency optimization only. Any failure there —
		// generator error, unparseable ops, zero matches — degrades to the
		// strategy that is guaranteed to produce a correct result.
		if err != nil {
			e.log.Warn("fast path failed, regenerating", "error", err)
		}
	}

	return e.regenerate(ctx, req, progress)
}

func (e *Engine) fastPath(ctx context.Context, req *Request, progress func(string, string)) (*Result, error) {
	window := req.Content
	if len(window) > e.contextWindow {
		window = window[:e.contextWindow]
	}

	system := "You edit website source with minimal, surgical changes. " +
		"Respond with a JSON array of at most " + fmt.Sprint(maxPatchOps) + " objects " +
		`of the form {"find": "<exact substring>", "replace": "<replacement>"}. ` +
		"Every find value must be copied verbatim from the provided source excerpt. " +
		"Respond with JSON only."
	prompt := fmt.Sprintf("Instruction: %s\n\nSource excerpt:\n%s", req.Instruction, window)

	raw, err := e.fast.Generate(ctx, system, prompt)
	if err != nil {
		return nil, errs.Upstreamf("fast edit generation: %v", err)
	}

	ops, err := parsePatchOps(raw)
	if err != nil {
		return nil, errs.Malformedf("patch ops: %v", err)
	}

	// Apply against the full artifact, not the excerpt the model saw.
	// Ops apply in listed order against the already-patched text.
	content := req.Content
	applied := 0
	for _, op := range ops {
		if op.Find == "" || !strings.Contains(content, op.Find) {
			continue
		}
		content = strings.ReplaceAll(content, op.Find, op.Replace)
		applied++
	}

	if applied == 0 {
		return nil, nil // nothing matched; caller falls through
	}

	progress("patch", fmt.Sprintf("Applied %d targeted change(s)", applied))
	return &Result{
		Content:        content,
		Classification: ClassFastPath,
		Applied:        applied,
		Ops:            ops,
	}, nil
}

func (e *Engine) regenerate(ctx context.Context, req *Request, progress func(string, string)) (*Result, error) {
	progress("regenerate", "Rewriting the page")

	system := "You rewrite complete website source. Respond with the full updated " +
		"document and nothing else: no commentary, no code fences."
	prompt := fmt.Sprintf("Instruction: %s\n\nCurrent document:\n%s", req.Instruction, req.Content)

	raw, err := e.full.Generate(ctx, system, prompt)
	if err != nil {
		return nil, errs.Upstreamf("regeneration: %v", err)
	}

	content := stripFences(raw)

	progress("validate", "Checking the result")
	if err := e.validate(content); err != nil {
		return nil, err
	}

	return &Result{Content: content, Classification: ClassFullRegenerate}, nil
}

// validate rejects implausible regeneration output before it can replace the
// stored artifact: it must parse with at least one structural element and
// exceed the minimum length.
func (e *Engine) validate(content string) error {
	if len(content) < e.minLength {
		return errs.Malformedf("regenerated document too short (%d chars)", len(content))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return errs.Malformedf("regenerated document does not parse: %v", err)
	}
	if doc.Find("body *").Length() == 0 {
		return errs.Malformedf("regenerated document has no structural elements")
	}
	return nil
}

func parsePatchOps(raw string) ([]PatchOp, error) {
	cleaned := stripFences(raw)

	// Models occasionally preface the array; recover the bracketed span.
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var ops []PatchOp
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &ops); err != nil {
		return nil, err
	}
	if len(ops) > maxPatchOps {
		ops = ops[:maxPatchOps]
	}
	return ops, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		return ""
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
