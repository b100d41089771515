package transport

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/resonance-box/engine-go/internal/timing"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewRejectsInvalidTempoAndResolution(t *testing.T) {
	if _, err := New(0, 480); !errors.Is(err, timing.ErrInvalidTempo) {
		t.Fatalf("bpm 0: err = %v", err)
	}
	if _, err := New(120, 0); !errors.Is(err, timing.ErrInvalidResolution) {
		t.Fatalf("ppq 0: err = %v", err)
	}
}

func TestAdvanceAccumulatesTicksAtCurrentTempo(t *testing.T) {
	tr, err := New(120, 480)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tr.Play()
	s := tr.Advance(100 * time.Millisecond)
	if math.Abs(s.Ticks-96) > 1e-9 {
		t.Fatalf("ticks after 100ms = %v, want 96", s.Ticks)
	}
	if err := tr.SetBPM(60); err != nil {
		t.Fatalf("set bpm: %v", err)
	}
	s = tr.Advance(time.Second)
	if math.Abs(s.Ticks-(96+480)) > 1e-9 {
		t.Fatalf("ticks after tempo change = %v, want 576", s.Ticks)
	}
	if math.Abs(s.Seconds-1.1) > 1e-9 {
		t.Fatalf("seconds = %v, want 1.1", s.Seconds)
	}
}

func TestAdvanceWhileStoppedIsIgnored(t *testing.T) {
	tr, _ := New(120, 480)
	calls := 0
	tr.OnUpdate(ListenerFunc(func(State) { calls++ }))
	s := tr.Advance(time.Second)
	if s.Ticks != 0 || calls != 0 {
		t.Fatalf("stopped transport advanced: ticks=%v calls=%d", s.Ticks, calls)
	}
}

func TestStopRewinds(t *testing.T) {
	tr, _ := New(120, 480)
	tr.Play()
	tr.Advance(time.Second)
	tr.Stop()
	if tr.Playing() || tr.Ticks() != 0 || tr.Seconds() != 0 {
		t.Fatalf("after stop: playing=%v ticks=%v seconds=%v", tr.Playing(), tr.Ticks(), tr.Seconds())
	}
}

func TestStopHooksRunBeforeNextPass(t *testing.T) {
	tr, _ := New(120, 480)
	var passes []State
	var mu sync.Mutex
	tr.OnUpdate(ListenerFunc(func(s State) {
		mu.Lock()
		passes = append(passes, s)
		mu.Unlock()
	}))
	tr.Play()
	tr.Advance(time.Second)

	done := make(chan struct{})
	var hookState State
	passedDuringHook := false
	tr.OnStop(func() {
		hookState = tr.State()
		// a restart from another goroutine must wait for the hook
		go func() {
			tr.Play()
			tr.Advance(0)
			close(done)
		}()
		time.Sleep(20 * time.Millisecond)
		select {
		case <-done:
			passedDuringHook = true
		default:
		}
	})
	tr.Stop()
	<-done

	if hookState.Playing || hookState.Ticks != 0 {
		t.Fatalf("hook saw %+v, want stopped at 0", hookState)
	}
	if passedDuringHook {
		t.Fatal("a pass ran while the stop hook was running")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(passes) != 2 || passes[1].Ticks != 0 {
		t.Fatalf("passes = %+v", passes)
	}
}

func TestSettersRejectInvalidValuesAndKeepState(t *testing.T) {
	tr, _ := New(120, 480)
	if err := tr.SetBPM(-5); !errors.Is(err, timing.ErrInvalidTempo) {
		t.Fatalf("SetBPM(-5) = %v", err)
	}
	if err := tr.SetBPM(math.NaN()); !errors.Is(err, timing.ErrInvalidTempo) {
		t.Fatalf("SetBPM(NaN) = %v", err)
	}
	if err := tr.SetPPQ(-1); !errors.Is(err, timing.ErrInvalidResolution) {
		t.Fatalf("SetPPQ(-1) = %v", err)
	}
	if tr.BPM() != 120 || tr.PPQ() != 480 {
		t.Fatalf("state changed: bpm=%v ppq=%d", tr.BPM(), tr.PPQ())
	}
}

func TestPollUsesClock(t *testing.T) {
	clock := newFakeClock()
	tr, _ := New(120, 480, WithClock(clock.Now))
	var got []State
	tr.OnUpdate(ListenerFunc(func(s State) { got = append(got, s) }))
	tr.Play()
	clock.Add(50 * time.Millisecond)
	tr.Poll()
	clock.Add(50 * time.Millisecond)
	tr.Poll()
	if len(got) != 2 {
		t.Fatalf("listener calls = %d, want 2", len(got))
	}
	if math.Abs(got[0].Ticks-48) > 1e-9 || math.Abs(got[1].Ticks-96) > 1e-9 {
		t.Fatalf("ticks = %v, %v; want 48, 96", got[0].Ticks, got[1].Ticks)
	}
	if !got[1].Playing || got[1].BPM != 120 || got[1].PPQ != 480 {
		t.Fatalf("state = %+v", got[1])
	}
}

func TestListenersCalledInOrder(t *testing.T) {
	tr, _ := New(120, 480)
	var order []int
	tr.OnUpdate(ListenerFunc(func(State) { order = append(order, 1) }))
	tr.OnUpdate(ListenerFunc(func(State) { order = append(order, 2) }))
	tr.Play()
	tr.Advance(time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v", order)
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	tr, _ := New(120, 480, WithInterval(time.Millisecond))
	var mu sync.Mutex
	calls := 0
	tr.OnUpdate(ListenerFunc(func(State) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	tr.Play()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Fatal("expected at least one update from Run")
	}
	if tr.Ticks() <= 0 {
		t.Fatalf("ticks = %v, want > 0", tr.Ticks())
	}
}
