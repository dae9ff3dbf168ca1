package marker

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeProducesOneLine(t *testing.T) {
	events := []Event{
		Status{Code: "warming", Message: "Still thinking about your business..."},
		ToolStarted{Name: "edit_website", Label: "Updating your website"},
		ToolProgress{Name: "edit_website", Stage: "patch", Message: "Applying targeted changes"},
		ToolChanged{Name: "edit_website", File: "home", Description: "Swapped the heading font"},
		ToolCompleted{Name: "edit_website", Duration: 2300 * time.Millisecond},
		ToolFailed{Name: "generate_leads", Err: "rate limited"},
		TokenUsage{Input: 1500, Output: 320, CostUSD: 0.0128},
	}

	for _, ev := range events {
		line := Encode(ev)
		if !strings.HasSuffix(line, "]\n") {
			t.Errorf("Encode(%#v) = %q, want trailing ]\\n", ev, line)
		}
		if strings.Count(line, "\n") != 1 {
			t.Errorf("Encode(%#v) = %q, want exactly one newline", ev, line)
		}
		if !strings.HasPrefix(line, "[") {
			t.Errorf("Encode(%#v) = %q, want leading [", ev, line)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	ev := ToolStarted{Name: "generate_brand", Label: "Designing your brand"}
	first := Encode(ev)
	for i := 0; i < 10; i++ {
		if got := Encode(ev); got != first {
			t.Fatalf("Encode not deterministic: %q vs %q", got, first)
		}
	}
}

func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"tool started", ToolStarted{Name: "edit_website", Label: "Updating your website"}, "[WORK:edit_website:Updating your website]\n"},
		{"tool done with duration", ToolCompleted{Name: "edit_website", Duration: 2300 * time.Millisecond}, "[WORK_DONE:edit_website:2.3s]\n"},
		{"tool done fast omits duration", ToolCompleted{Name: "save_brand", Duration: 120 * time.Millisecond}, "[WORK_DONE:save_brand]\n"},
		{"tool failed", ToolFailed{Name: "generate_leads", Err: "rate limited"}, "[WORK_ERROR:generate_leads:rate limited]\n"},
		{"tokens", TokenUsage{Input: 1500, Output: 320, CostUSD: 0.0128}, "[TOKENS:1500:320:0.0128]\n"},
		{"status", Status{Code: "warming", Message: "Hang tight"}, "[STATUS:warming:Hang tight]\n"},
		{"progress", ToolProgress{Name: "edit_website", Stage: "validate", Message: "Checking the result"}, "[PROGRESS:edit_website:validate:Checking the result]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.ev); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConcatenatedEventsSplitCleanly(t *testing.T) {
	events := []Event{
		Status{Code: "warming", Message: "one"},
		ToolStarted{Name: "a", Label: "two"},
		ToolCompleted{Name: "a"},
		ToolFailed{Name: "b", Err: "three"},
	}
	var joined strings.Builder
	for _, ev := range events {
		joined.WriteString(Encode(ev))
	}
	lines := strings.Split(strings.TrimSuffix(joined.String(), "\n"), "\n")
	if len(lines) != len(events) {
		t.Fatalf("got %d lines, want %d", len(lines), len(events))
	}
}

func TestSanitizeFreeText(t *testing.T) {
	line := Encode(ToolFailed{Name: "t", Err: "multi\nline ] message"})
	if strings.Count(line, "\n") != 1 {
		t.Errorf("free text newline leaked: %q", line)
	}
	if strings.Count(line, "]") != 1 {
		t.Errorf("free text delimiter leaked: %q", line)
	}
}
