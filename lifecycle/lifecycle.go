// Package lifecycle tracks tool invocations across the reasoning steps of one
// turn and collapses them into exactly one start and one terminal event per
// distinct tool name, no matter how many steps mention the tool.
package lifecycle

import (
	"strings"
	"time"

	"github.com/launchforge/launchforge/agent"
	"github.com/launchforge/launchforge/marker"
)

// Status of one tool invocation within a turn.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Invocation is the per-turn record of one tool call. Discarded at end of
// turn; nothing here persists across turns.
type Invocation struct {
	Name        string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Summary     string
	Err         string
}

// Config wires a tracker into one turn.
type Config struct {
	// Emit receives the lifecycle markers. Required.
	Emit func(marker.Event)
	// Prose receives synthesized confirmations destined for the prose
	// channel, bypassing the suppression latch. Optional.
	Prose func(string)
	// OnEditApplied fires once when an edit-class tool first succeeds,
	// letting the multiplexer latch prose suppression. Optional.
	OnEditApplied func()
	// Labels maps tool names to display labels for WORK markers.
	Labels map[string]string
	// EditTools marks tool names treated as edit-class beyond the default
	// "edit_" prefix match.
	EditTools map[string]bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Tracker holds the dedup state for one turn. It is the explicit per-request
// value replacing ambient globals: construct one per turn, feed it from the
// single step-notification path, and drop it when the turn ends.
type Tracker struct {
	cfg Config

	announcedStart map[string]struct{}
	announcedDone  map[string]struct{}
	invocations    map[string]*Invocation
	order          []string
	editConfirmed  bool
}

// NewTracker builds a tracker for one turn.
func NewTracker(cfg Config) *Tracker {
	if cfg.Emit == nil {
		cfg.Emit = func(marker.Event) {}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		cfg:            cfg,
		announcedStart: make(map[string]struct{}),
		announcedDone:  make(map[string]struct{}),
		invocations:    make(map[string]*Invocation),
	}
}

// OnStep consumes one step notification. Steps must arrive sequentially from
// a single goroutine; the tracker takes no locks of its own.
func (t *Tracker) OnStep(step agent.Step) {
	for _, call := range step.Calls {
		t.onCall(call.Name)
	}
	for _, result := range step.Results {
		t.onResult(result)
	}
}

func (t *Tracker) onCall(name string) {
	if _, seen := t.announcedStart[name]; seen {
		return
	}
	t.announcedStart[name] = struct{}{}

	inv := &Invocation{Name: name, Status: StatusRunning, StartedAt: t.cfg.Now()}
	t.invocations[name] = inv
	t.order = append(t.order, name)

	t.cfg.Emit(marker.ToolStarted{Name: name, Label: t.label(name)})
}

func (t *Tracker) onResult(result agent.ToolResult) {
	name := result.Name
	if _, seen := t.announcedDone[name]; seen {
		return
	}
	t.announcedDone[name] = struct{}{}

	inv := t.invocations[name]
	if inv == nil {
		// Result without a recorded start; backfill so the terminal event
		// still carries a record.
		inv = &Invocation{Name: name, StartedAt: t.cfg.Now()}
		t.invocations[name] = inv
		t.order = append(t.order, name)
	}
	inv.CompletedAt = t.cfg.Now()
	inv.Summary = result.Summary

	// A missing success flag counts as success.
	if result.Success == nil || *result.Success {
		inv.Status = StatusSucceeded
		t.cfg.Emit(marker.ToolCompleted{Name: name, Duration: inv.CompletedAt.Sub(inv.StartedAt)})
		if t.isEditTool(name) {
			t.confirmEdit(name)
		}
		return
	}

	inv.Status = StatusFailed
	inv.Err = result.Error
	t.cfg.Emit(marker.ToolFailed{Name: name, Err: result.Error})
}

// confirmEdit writes a synthesized confirmation to the prose channel and
// latches prose suppression. Models sometimes fail to narrate their own
// successful edits, or worse, narrate a failure; the synthesized message is
// the single source of truth shown to the user.
func (t *Tracker) confirmEdit(name string) {
	if t.cfg.Prose != nil {
		t.cfg.Prose("\n\nYour website has been updated — the changes are live in the preview.\n")
	}
	if !t.editConfirmed {
		t.editConfirmed = true
		if t.cfg.OnEditApplied != nil {
			t.cfg.OnEditApplied()
		}
	}
}

func (t *Tracker) isEditTool(name string) bool {
	if t.cfg.EditTools[name] {
		return true
	}
	return strings.HasPrefix(name, "edit_")
}

func (t *Tracker) label(name string) string {
	if label, ok := t.cfg.Labels[name]; ok && label != "" {
		return label
	}
	return "Running " + strings.ReplaceAll(name, "_", " ")
}

// Invocations returns the turn's invocation records in first-seen order.
func (t *Tracker) Invocations() []Invocation {
	out := make([]Invocation, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.invocations[name])
	}
	return out
}
