// Package scheduler turns the advancing transport position into timed note
// messages. Each pass covers the half-open tick window from the end of the
// previous pass up to the current position plus the lookahead, so every
// event in the timeline is dispatched once per play session.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resonance-box/engine-go/internal/timeline"
	"github.com/resonance-box/engine-go/internal/timing"
	"github.com/resonance-box/engine-go/internal/transport"
)

// DefaultLookahead is how far past the current position each pass schedules.
const DefaultLookahead = 100 * time.Millisecond

// Channel is the MIDI channel every message is sent on.
const Channel = 0

// Synthesizer receives note messages with a delay relative to the moment
// the call is made. Implementations must not block.
type Synthesizer interface {
	NoteOn(channel, noteNumber, velocity int, delaySeconds float64)
	NoteOff(channel, noteNumber int, delaySeconds float64)
}

// Pass summarizes one Update.
type Pass struct {
	Start      float64
	End        float64
	Events     int
	Dispatched bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for pass summaries.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSynthesizer attaches the sink at construction.
func WithSynthesizer(synth Synthesizer) Option {
	return func(s *Scheduler) {
		s.synth = synth
	}
}

// Scheduler dispatches the notes of a timeline one lookahead window at a
// time.
type Scheduler struct {
	mu             sync.Mutex
	scheduledTicks float64
	store          timeline.Store
	synth          Synthesizer
	lookahead      time.Duration
	log            *zap.Logger
}

// New returns a scheduler reading from store. A non-positive lookahead
// falls back to DefaultLookahead.
func New(store timeline.Store, lookahead time.Duration, opts ...Option) *Scheduler {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	s := &Scheduler{
		store:     store,
		lookahead: lookahead,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Lookahead() time.Duration {
	return s.lookahead
}

// SetSynthesizer replaces the sink. nil detaches it; passes keep advancing.
func (s *Scheduler) SetSynthesizer(synth Synthesizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth = synth
}

func (s *Scheduler) ScheduledTicks() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduledTicks
}

// Reset moves the window start back to tick 0.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduledTicks = 0
}

// Update runs a pass for each transport advance.
func (s *Scheduler) Update(state transport.State) {
	s.Schedule(state)
}

// Schedule runs one scheduling pass for the given transport state. Delays
// are measured from the window start and never negative. The window end
// never falls behind its start, so a tempo drop cannot reopen a window
// that was already dispatched.
func (s *Scheduler) Schedule(state transport.State) Pass {
	s.mu.Lock()
	defer s.mu.Unlock()

	bpm, ppq := state.BPM, state.PPQ
	start := s.scheduledTicks
	window := timing.MillisecondsToTicks(float64(s.lookahead)/float64(time.Millisecond), bpm, ppq)
	end := max(state.Ticks+window, start)

	var events []timeline.NoteEvent
	if s.store != nil {
		events = s.store.EventsInRange(start, end, false)
	}

	pass := Pass{Start: start, End: end, Events: len(events)}
	if s.synth != nil {
		for _, e := range events {
			on, off := timeline.Disassemble(e)
			onDelay := max(0, timing.TicksToSeconds(on.Ticks-start, bpm, ppq))
			offDelay := max(0, timing.TicksToSeconds(off.Ticks-start, bpm, ppq))
			s.synth.NoteOn(Channel, on.NoteNumber, on.Velocity, onDelay)
			s.synth.NoteOff(Channel, off.NoteNumber, offDelay)
		}
		pass.Dispatched = len(events) > 0
	}
	s.scheduledTicks = end

	if len(events) > 0 {
		s.log.Debug("scheduled window",
			zap.Float64("start", start),
			zap.Float64("end", end),
			zap.Int("events", len(events)),
			zap.Float64("bpm", bpm),
			zap.Int("ppq", ppq),
			zap.Bool("dispatched", pass.Dispatched),
		)
	}
	return pass
}

var _ transport.Listener = (*Scheduler)(nil)
