// Package stream merges the agent's prose stream and the progress event
// stream into the single ordered output sequence written to the client.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/launchforge/launchforge/marker"
	"github.com/launchforge/launchforge/pkg/logging"
)

// Item is one element of the progress source: either a marker event or
// synthesized prose (tracker confirmations) that must bypass the
// suppression latch.
type Item struct {
	Prose string
	Event marker.Event
}

// Mux combines two independently produced sequences into one output channel.
// Ordering within a source is preserved; across sources it is arrival order,
// deliberately so — the two sources are logically independent concerns.
// One Mux serves exactly one turn.
type Mux struct {
	buffer     int
	suppressed atomic.Bool
	log        *slog.Logger
}

// NewMux creates a multiplexer with the given output buffer size.
func NewMux(buffer int) *Mux {
	if buffer <= 0 {
		buffer = 32
	}
	return &Mux{
		buffer: buffer,
		log:    logging.WithComponent("stream"),
	}
}

// SuppressProse latches prose suppression for the remainder of the turn.
// Once an edit-class tool has succeeded, the raw model continuation is
// discarded: some models hallucinate a failure narrative after a successful
// edit, and the tracker has already synthesized the confirmation.
func (m *Mux) SuppressProse() {
	m.suppressed.Store(true)
}

// Suppressed reports whether the latch is set.
func (m *Mux) Suppressed() bool {
	return m.suppressed.Load()
}

// Run starts the two reader loops and returns the combined output channel.
// The output closes only after BOTH sources have reached end-of-input;
// closing earlier would truncate whichever source was slower. Cancelling ctx
// terminates both loops without waiting for the sources to drain.
func (m *Mux) Run(ctx context.Context, text <-chan string, progress <-chan Item) <-chan string {
	out := make(chan string, m.buffer)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case chunk, ok := <-text:
				if !ok {
					return
				}
				if m.suppressed.Load() {
					continue
				}
				if !m.write(ctx, out, chunk) {
					m.log.Debug("text reader cancelled")
					return
				}
			case <-ctx.Done():
				m.log.Debug("text reader cancelled")
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case item, ok := <-progress:
				if !ok {
					return
				}
				chunk := item.Prose
				if item.Event != nil {
					chunk = marker.Encode(item.Event)
				}
				if chunk == "" {
					continue
				}
				if !m.write(ctx, out, chunk) {
					m.log.Debug("progress reader cancelled")
					return
				}
			case <-ctx.Done():
				m.log.Debug("progress reader cancelled")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (m *Mux) write(ctx context.Context, out chan<- string, chunk string) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
