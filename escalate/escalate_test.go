package escalate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/launchforge/launchforge/marker"
)

func TestScheduleValidate(t *testing.T) {
	valid := Schedule{{After: time.Second, Message: "a"}, {After: 2 * time.Second, Message: "b"}}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	decreasing := Schedule{{After: 2 * time.Second, Message: "a"}, {After: time.Second, Message: "b"}}
	if err := decreasing.Validate(); err == nil {
		t.Error("Validate() accepted decreasing offsets")
	}

	equal := Schedule{{After: time.Second, Message: "a"}, {After: time.Second, Message: "b"}}
	if err := equal.Validate(); err == nil {
		t.Error("Validate() accepted equal offsets")
	}
}

func TestSchedulerFiresInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	emit := func(ev marker.Event) {
		st, ok := ev.(marker.Status)
		if !ok {
			t.Errorf("unexpected event type %T", ev)
			return
		}
		mu.Lock()
		got = append(got, st.Message)
		mu.Unlock()
	}

	sched, err := New(Schedule{
		{After: 10 * time.Millisecond, Message: "first"},
		{After: 25 * time.Millisecond, Message: "second"},
	}, emit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sched.Start(context.Background())
	<-sched.Done()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("fired %v, want [first second]", got)
	}
}

func TestCancelPreventsLaterEntries(t *testing.T) {
	var mu sync.Mutex
	var fired []string
	emit := func(ev marker.Event) {
		mu.Lock()
		fired = append(fired, ev.(marker.Status).Message)
		mu.Unlock()
	}

	sched, err := New(Schedule{
		{After: 10 * time.Millisecond, Message: "early"},
		{After: 250 * time.Millisecond, Message: "late"},
	}, emit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sched.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	sched.Cancel()
	<-sched.Done()

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != "early" {
		t.Errorf("fired %v, want only [early]", fired)
	}
}

func TestCancelIdempotentFromTwoCallSites(t *testing.T) {
	sched, err := New(DefaultSchedule(), func(marker.Event) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sched.Start(context.Background())

	// First-token and first-tool-start both cancel; neither call site knows
	// whether the other already won.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Cancel()
			sched.Cancel()
		}()
	}
	wg.Wait()
	<-sched.Done()
}

// TestCancelRaceAtBoundary repeatedly races cancellation against the timer
// firing at the same instant. Nothing may fire after Cancel returns and the
// scheduler goroutine has exited.
func TestCancelRaceAtBoundary(t *testing.T) {
	for i := 0; i < 50; i++ {
		var mu sync.Mutex
		count := 0
		emit := func(marker.Event) {
			mu.Lock()
			count++
			mu.Unlock()
		}

		sched, err := New(Schedule{
			{After: time.Millisecond, Message: "boundary"},
		}, emit)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		sched.Start(context.Background())
		time.Sleep(time.Millisecond) // land right on the boundary
		sched.Cancel()
		<-sched.Done()

		mu.Lock()
		after := count
		mu.Unlock()

		// The entry may or may not have fired, but never more than once and
		// never after Done.
		if after > 1 {
			t.Fatalf("iteration %d: entry fired %d times", i, after)
		}
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		if count != after {
			t.Fatalf("iteration %d: emission after Done", i)
		}
		mu.Unlock()
	}
}

func TestContextCancellationStopsScheduler(t *testing.T) {
	fired := make(chan struct{}, 1)
	sched, err := New(Schedule{{After: 200 * time.Millisecond, Message: "never"}}, func(marker.Event) {
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	cancel()
	<-sched.Done()

	select {
	case <-fired:
		t.Error("entry fired despite context cancellation")
	default:
	}
}
