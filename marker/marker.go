// Package marker implements the line-oriented event protocol embedded in the
// response stream. Each event encodes to exactly one newline-terminated line
// of the form [TAG:field:field:...], so a client can split markers from prose
// with one regular-expression pass per event kind. The server is write-only
// on this protocol; there is no decoder here.
package marker

import (
	"fmt"
	"strings"
	"time"
)

// Tags used on the wire. Free-text fields are always last on the line.
const (
	TagStatus     = "STATUS"
	TagWork       = "WORK"
	TagWorkDone   = "WORK_DONE"
	TagWorkError  = "WORK_ERROR"
	TagProgress   = "PROGRESS"
	TagCodeChange = "CODE_CHANGE"
	TagTokens     = "TOKENS"
)

// minDisplayDuration is the shortest tool duration worth showing; anything
// faster reads as noise ("0.1s") and is omitted from WORK_DONE.
const minDisplayDuration = 500 * time.Millisecond

// Event is one unit of observable progress. Implementations serialize
// themselves to the fields following the tag.
type Event interface {
	tag() string
	fields() []string
}

// Status is a turn-level status update, e.g. escalation reassurance.
type Status struct {
	Code    string
	Message string
}

func (e Status) tag() string      { return TagStatus }
func (e Status) fields() []string { return []string{e.Code, sanitize(e.Message)} }

// ToolStarted announces the first invocation of a tool within a turn.
type ToolStarted struct {
	Name  string
	Label string
}

func (e ToolStarted) tag() string      { return TagWork }
func (e ToolStarted) fields() []string { return []string{e.Name, sanitize(e.Label)} }

// ToolProgress is a fine-grained stage update emitted from inside a tool.
type ToolProgress struct {
	Name    string
	Stage   string
	Message string
}

func (e ToolProgress) tag() string { return TagProgress }
func (e ToolProgress) fields() []string {
	return []string{e.Name, e.Stage, sanitize(e.Message)}
}

// ToolChanged reports an in-place modification of a generated artifact.
// Snippets are optional and trail the line when present.
type ToolChanged struct {
	Name        string
	File        string
	Description string
	Before      string
	After       string
}

func (e ToolChanged) tag() string { return TagCodeChange }
func (e ToolChanged) fields() []string {
	fields := []string{e.Name, e.File, sanitize(e.Description)}
	if e.Before != "" || e.After != "" {
		fields = append(fields, sanitize(e.Before), sanitize(e.After))
	}
	return fields
}

// ToolCompleted is the successful terminal event for a tool. A zero Duration
// means the caller chose not to display one.
type ToolCompleted struct {
	Name     string
	Duration time.Duration
}

func (e ToolCompleted) tag() string { return TagWorkDone }
func (e ToolCompleted) fields() []string {
	if e.Duration < minDisplayDuration {
		return []string{e.Name}
	}
	return []string{e.Name, fmt.Sprintf("%.1fs", e.Duration.Seconds())}
}

// ToolFailed is the failing terminal event for a tool.
type ToolFailed struct {
	Name string
	Err  string
}

func (e ToolFailed) tag() string      { return TagWorkError }
func (e ToolFailed) fields() []string { return []string{e.Name, sanitize(e.Err)} }

// TokenUsage summarises model token consumption for the turn.
type TokenUsage struct {
	Input   int
	Output  int
	CostUSD float64
}

func (e TokenUsage) tag() string { return TagTokens }
func (e TokenUsage) fields() []string {
	return []string{
		fmt.Sprintf("%d", e.Input),
		fmt.Sprintf("%d", e.Output),
		fmt.Sprintf("%.4f", e.CostUSD),
	}
}

// Encode serializes an event to exactly one newline-terminated line.
// Encoding is deterministic and has no side effects.
func Encode(e Event) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(e.tag())
	for _, f := range e.fields() {
		b.WriteByte(':')
		b.WriteString(f)
	}
	b.WriteString("]\n")
	return b.String()
}

// sanitize keeps free-text fields single-line and free of the closing
// delimiter. Structured fields (tool names, stages) are restricted to
// identifier characters at the registration boundary and bypass this.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "]", ")")
	return s
}
