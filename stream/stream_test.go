package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/launchforge/launchforge/marker"
)

func collect(out <-chan string) []string {
	var chunks []string
	for c := range out {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestWithinSourceOrderPreserved(t *testing.T) {
	text := make(chan string, 4)
	progress := make(chan Item, 4)

	mux := NewMux(8)
	out := mux.Run(context.Background(), text, progress)

	text <- "one "
	text <- "two "
	text <- "three"
	close(text)
	close(progress)

	got := strings.Join(collect(out), "")
	if got != "one two three" {
		t.Errorf("output = %q, want prose in emission order", got)
	}
}

func TestMarkersAreEncoded(t *testing.T) {
	text := make(chan string)
	progress := make(chan Item, 2)

	mux := NewMux(4)
	out := mux.Run(context.Background(), text, progress)

	progress <- Item{Event: marker.ToolStarted{Name: "edit_website", Label: "Updating your website"}}
	close(text)
	close(progress)

	got := strings.Join(collect(out), "")
	if got != "[WORK:edit_website:Updating your website]\n" {
		t.Errorf("output = %q", got)
	}
}

func TestOutputClosesOnlyAfterBothSources(t *testing.T) {
	text := make(chan string)
	progress := make(chan Item)

	mux := NewMux(4)
	out := mux.Run(context.Background(), text, progress)

	close(text) // fast source done

	// Slow source still open: output must not close yet.
	select {
	case _, ok := <-out:
		if !ok {
			t.Fatal("output closed before the slower source finished")
		}
	case <-time.After(20 * time.Millisecond):
	}

	progress <- Item{Event: marker.Status{Code: "waiting", Message: "late"}}
	close(progress)

	chunks := collect(out)
	if len(chunks) != 1 {
		t.Errorf("chunks after join = %v, want the late marker", chunks)
	}
}

func TestSuppressionLatchDropsProse(t *testing.T) {
	text := make(chan string, 4)
	progress := make(chan Item, 4)

	mux := NewMux(8)
	out := mux.Run(context.Background(), text, progress)

	text <- "before suppression "
	// Wait for the chunk to clear the reader loop before latching.
	first := <-out

	mux.SuppressProse()
	text <- "hallucinated failure narrative"
	progress <- Item{Prose: "synthesized confirmation"}
	progress <- Item{Event: marker.ToolCompleted{Name: "edit_website"}}
	close(text)
	close(progress)

	rest := strings.Join(collect(out), "")
	if first != "before suppression " {
		t.Errorf("first chunk = %q", first)
	}
	if strings.Contains(rest, "hallucinated") {
		t.Errorf("suppressed prose reached output: %q", rest)
	}
	if !strings.Contains(rest, "synthesized confirmation") {
		t.Errorf("synthesized prose was wrongly suppressed: %q", rest)
	}
	if !strings.Contains(rest, "[WORK_DONE:edit_website]") {
		t.Errorf("markers must keep flowing under suppression: %q", rest)
	}
}

func TestSuppressionIsLatched(t *testing.T) {
	mux := NewMux(1)
	if mux.Suppressed() {
		t.Fatal("new mux must not be suppressed")
	}
	mux.SuppressProse()
	mux.SuppressProse()
	if !mux.Suppressed() {
		t.Fatal("latch lost after second set")
	}
}

func TestCancellationClosesOutput(t *testing.T) {
	text := make(chan string)
	progress := make(chan Item)

	ctx, cancel := context.WithCancel(context.Background())
	mux := NewMux(1)
	out := mux.Run(ctx, text, progress)

	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("unexpected chunk after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("output did not close after cancellation")
	}
}

func TestEmptyItemsAreSkipped(t *testing.T) {
	text := make(chan string)
	progress := make(chan Item, 2)

	mux := NewMux(4)
	out := mux.Run(context.Background(), text, progress)

	progress <- Item{} // neither prose nor event
	progress <- Item{Prose: "real"}
	close(text)
	close(progress)

	chunks := collect(out)
	if len(chunks) != 1 || chunks[0] != "real" {
		t.Errorf("chunks = %v, want [real]", chunks)
	}
}
