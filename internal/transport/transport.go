// Package transport keeps the playback clock: tick position, tempo and
// resolution. It advances ticks as wall-clock time elapses and notifies its
// listeners once per advance.
package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resonance-box/engine-go/internal/timing"
)

// DefaultInterval approximates one display frame.
const DefaultInterval = 16 * time.Millisecond

// State is a snapshot of the transport taken right after an advance.
type State struct {
	Ticks   float64
	Seconds float64
	BPM     float64
	PPQ     int
	Playing bool
}

// Listener receives every advance while the transport is playing. Calls are
// made one at a time, never concurrently.
type Listener interface {
	Update(State)
}

type ListenerFunc func(State)

func (f ListenerFunc) Update(s State) { f(s) }

type Option func(*Transport)

// WithClock replaces time.Now as the source of elapsed time for Poll and Run.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.log = l
		}
	}
}

type Transport struct {
	// passMu serializes advance+notify so listener passes never overlap.
	passMu sync.Mutex

	mu        sync.Mutex
	ticks     float64
	seconds   float64
	bpm       float64
	ppq       int
	playing   bool
	last      time.Time
	listeners []Listener
	onStop    []func()

	now      func() time.Time
	interval time.Duration
	log      *zap.Logger
}

func New(bpm float64, ppq int, opts ...Option) (*Transport, error) {
	if err := timing.ValidateTempo(bpm); err != nil {
		return nil, err
	}
	if err := timing.ValidateResolution(ppq); err != nil {
		return nil, err
	}
	t := &Transport{
		bpm:      bpm,
		ppq:      ppq,
		now:      time.Now,
		interval: DefaultInterval,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// OnUpdate registers a listener. Listeners are called in registration order.
func (t *Transport) OnUpdate(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// OnStop registers fn to run inside Stop, before any later pass can start.
func (t *Transport) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = append(t.onStop, fn)
}

func (t *Transport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return
	}
	t.playing = true
	t.last = t.now()
	t.log.Debug("transport play", zap.Float64("ticks", t.ticks))
}

// Stop halts playback, rewinds the position to zero and runs the OnStop
// hooks. It waits for a pass in progress to finish, so it must not be
// called from a Listener or a hook.
func (t *Transport) Stop() {
	t.passMu.Lock()
	defer t.passMu.Unlock()
	t.mu.Lock()
	t.playing = false
	t.ticks = 0
	t.seconds = 0
	hooks := append([]func(){}, t.onStop...)
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	t.log.Debug("transport stop")
}

func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *Transport) Ticks() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// Seconds returns the wall-clock time played since the last stop.
func (t *Transport) Seconds() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}

func (t *Transport) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

// SetBPM changes the tempo used by all later advances. Ticks already
// elapsed are not rescaled.
func (t *Transport) SetBPM(bpm float64) error {
	if err := timing.ValidateTempo(bpm); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bpm = bpm
	return nil
}

func (t *Transport) PPQ() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ppq
}

func (t *Transport) SetPPQ(ppq int) error {
	if err := timing.ValidateResolution(ppq); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ppq = ppq
	return nil
}

func (t *Transport) Interval() time.Duration {
	return t.interval
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Transport) snapshot() State {
	return State{Ticks: t.ticks, Seconds: t.seconds, BPM: t.bpm, PPQ: t.ppq, Playing: t.playing}
}

// Advance moves the position forward by elapsed at the current tempo and
// notifies listeners. It does nothing while stopped.
func (t *Transport) Advance(elapsed time.Duration) State {
	return t.advance(elapsed, false)
}

// Poll advances by the clock time elapsed since the previous advance.
func (t *Transport) Poll() State {
	return t.advance(0, true)
}

func (t *Transport) advance(elapsed time.Duration, fromClock bool) State {
	t.passMu.Lock()
	defer t.passMu.Unlock()

	t.mu.Lock()
	if !t.playing {
		s := t.snapshot()
		t.mu.Unlock()
		return s
	}
	if fromClock {
		now := t.now()
		elapsed = now.Sub(t.last)
		t.last = now
	} else {
		t.last = t.last.Add(elapsed)
	}
	if elapsed > 0 {
		t.ticks += timing.SecondsToTicks(elapsed.Seconds(), t.bpm, t.ppq)
		t.seconds += elapsed.Seconds()
	}
	s := t.snapshot()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l.Update(s)
	}
	return s
}

// Run polls the clock every interval until ctx is cancelled.
func (t *Transport) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.Playing() {
				t.Poll()
			}
		}
	}
}
