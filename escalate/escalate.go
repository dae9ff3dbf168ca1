// Package escalate emits progressively reassuring status messages while the
// model has produced no observable output yet. Cold model starts can exceed a
// minute; without these the stream looks dead.
package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/launchforge/launchforge/marker"
	"github.com/launchforge/launchforge/pkg/logging"
)

// Entry is one reassurance message scheduled at an absolute offset from turn
// start.
type Entry struct {
	After   time.Duration
	Message string
}

// Schedule is an ordered list of entries with strictly increasing offsets.
type Schedule []Entry

// Validate reports whether the offsets are strictly increasing.
func (s Schedule) Validate() error {
	var prev time.Duration = -1
	for i, e := range s {
		if e.After <= prev {
			return fmt.Errorf("schedule entry %d: offset %v not after %v", i, e.After, prev)
		}
		prev = e.After
	}
	return nil
}

// DefaultSchedule covers a cold model start of up to about a minute.
func DefaultSchedule() Schedule {
	return Schedule{
		{After: 4 * time.Second, Message: "Thinking about your business..."},
		{After: 12 * time.Second, Message: "Working on it, this can take a moment..."},
		{After: 25 * time.Second, Message: "Almost there, putting the pieces together..."},
		{After: 45 * time.Second, Message: "Still going, thanks for your patience..."},
	}
}

// Scheduler fires a schedule's entries in order until cancelled. A single
// goroutine sleeps on the deltas between consecutive offsets and checks
// cancellation before each sleep and again before each emission, which guards
// the race where cancellation and firing happen near-simultaneously.
type Scheduler struct {
	schedule Schedule
	emit     func(marker.Event)
	log      *slog.Logger

	cancelOnce sync.Once
	cancelled  chan struct{}
	done       chan struct{}
}

// New builds a scheduler for the given schedule. Events go to emit, which
// must be safe for use from the scheduler goroutine.
func New(schedule Schedule, emit func(marker.Event)) (*Scheduler, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if emit == nil {
		return nil, fmt.Errorf("escalate: emit callback cannot be nil")
	}
	return &Scheduler{
		schedule:  schedule,
		emit:      emit,
		log:       logging.WithComponent("escalate"),
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start arms the schedule. The scheduler stops on Cancel or when ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Cancel stops all entries that have not fired yet. It is idempotent and may
// be called concurrently from independent triggers (first token, first tool
// start); whichever lands first wins and later calls are no-ops.
func (s *Scheduler) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// Done is closed once the scheduler goroutine has exited. After Done no
// further emissions occur, so the owner may safely close the event sink.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	var elapsed time.Duration
	for i, entry := range s.schedule {
		timer := time.NewTimer(entry.After - elapsed)
		select {
		case <-s.cancelled:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// The timer may have fired while cancellation was in flight.
		select {
		case <-s.cancelled:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.log.Debug("escalation fired", "slot", i, "after", entry.After)
		s.emit(marker.Status{Code: "waiting", Message: entry.Message})
		elapsed = entry.After
	}
}
