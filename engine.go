// Package engine plays a note timeline through a lookahead scheduler. A
// transport advances the tick position in real time and each advance
// schedules the notes due within the lookahead window on the attached
// synthesizer.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resonance-box/engine-go/internal/config"
	"github.com/resonance-box/engine-go/internal/scheduler"
	"github.com/resonance-box/engine-go/internal/timeline"
	"github.com/resonance-box/engine-go/internal/transport"
)

// Synthesizer receives note messages delayed relative to the call.
type Synthesizer = scheduler.Synthesizer

// Canceler is implemented by synthesizers that can drop messages they have
// queued for later. Stop calls it.
type Canceler interface {
	CancelPending()
}

// PassEvent describes one scheduling pass, delivered through Watch.
type PassEvent struct {
	Ticks   float64
	Seconds float64
	BPM     float64
	PPQ     int
	Start   float64
	End     float64
	Events  int

	// Ended is set once the position has moved past the last note release.
	// Only reported for stores that know their length.
	Ended bool
}

type Option func(*options)

type options struct {
	lookahead time.Duration
	interval  time.Duration
	bpm       float64
	ppq       int
	log       *zap.Logger
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		lookahead: scheduler.DefaultLookahead,
		interval:  transport.DefaultInterval,
		bpm:       timeline.DefaultBPM,
		ppq:       timeline.DefaultPPQ,
		log:       zap.NewNop(),
	}
}

func WithLookahead(d time.Duration) Option {
	return func(o *options) {
		o.lookahead = d
	}
}

// WithUpdateInterval sets how often Run advances the transport.
func WithUpdateInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithTempo(bpm float64) Option {
	return func(o *options) {
		o.bpm = bpm
	}
}

func WithResolution(ppq int) Option {
	return func(o *options) {
		o.ppq = ppq
	}
}

type lengthStore interface {
	EndTicks() float64
}

type Engine struct {
	mu        sync.Mutex
	store     timeline.Store
	synth     Synthesizer
	transport *transport.Transport
	scheduler *scheduler.Scheduler
	log       *zap.Logger

	eventCh   chan PassEvent
	eventChMu sync.Mutex
}

func New(store timeline.Store, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.lookahead <= 0 {
		o.lookahead = scheduler.DefaultLookahead
	}
	tr, err := transport.New(o.bpm, o.ppq,
		transport.WithClock(o.now),
		transport.WithInterval(o.interval),
		transport.WithLogger(o.log),
	)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:     store,
		transport: tr,
		scheduler: scheduler.New(store, o.lookahead, scheduler.WithLogger(o.log)),
		log:       o.log,
	}
	tr.OnUpdate(e)
	tr.OnStop(e.resetPending)
	return e, nil
}

// NewWithConfig applies cfg before opts, so explicit options win.
func NewWithConfig(store timeline.Store, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithLookahead(cfg.Lookahead()),
		WithUpdateInterval(cfg.UpdateInterval()),
		WithTempo(cfg.BPM),
		WithResolution(cfg.PPQ),
	}
	return New(store, append(base, opts...)...)
}

// Update is called by the transport after every advance.
func (e *Engine) Update(s transport.State) {
	pass := e.scheduler.Schedule(s)
	ev := PassEvent{
		Ticks:   s.Ticks,
		Seconds: s.Seconds,
		BPM:     s.BPM,
		PPQ:     s.PPQ,
		Start:   pass.Start,
		End:     pass.End,
		Events:  pass.Events,
	}
	if ls, ok := e.store.(lengthStore); ok {
		ev.Ended = s.Ticks >= ls.EndTicks()
	}
	e.sendEvent(ev)
}

func (e *Engine) Play() {
	e.transport.Play()
	e.log.Info("play", zap.Float64("bpm", e.transport.BPM()), zap.Int("ppq", e.transport.PPQ()))
}

// Stop halts the transport, rewinds to tick 0 and asks the synthesizer to
// drop anything still queued.
func (e *Engine) Stop() {
	e.transport.Stop()
	e.log.Info("stop")
}

// resetPending runs inside Transport.Stop, so no pass can see the old
// window between the rewind and the reset.
func (e *Engine) resetPending() {
	e.scheduler.Reset()
	e.mu.Lock()
	synth := e.synth
	e.mu.Unlock()
	if c, ok := synth.(Canceler); ok {
		c.CancelPending()
	}
}

func (e *Engine) Playing() bool { return e.transport.Playing() }

func (e *Engine) CurrentTicks() float64 { return e.transport.Ticks() }

func (e *Engine) CurrentSeconds() float64 { return e.transport.Seconds() }

func (e *Engine) BPM() float64 { return e.transport.BPM() }

// SetBPM changes the tempo for every later pass. Invalid values are
// rejected and leave the tempo unchanged.
func (e *Engine) SetBPM(bpm float64) error {
	if err := e.transport.SetBPM(bpm); err != nil {
		e.log.Warn("tempo rejected", zap.Float64("bpm", bpm), zap.Error(err))
		return err
	}
	e.log.Debug("tempo changed", zap.Float64("bpm", bpm))
	return nil
}

func (e *Engine) PPQ() int { return e.transport.PPQ() }

func (e *Engine) SetPPQ(ppq int) error {
	if err := e.transport.SetPPQ(ppq); err != nil {
		e.log.Warn("resolution rejected", zap.Int("ppq", ppq), zap.Error(err))
		return err
	}
	e.log.Debug("resolution changed", zap.Int("ppq", ppq))
	return nil
}

func (e *Engine) Store() timeline.Store { return e.store }

// SetSynthesizer attaches the sound generator. nil detaches it and
// scheduling continues silently.
func (e *Engine) SetSynthesizer(s Synthesizer) {
	e.mu.Lock()
	e.synth = s
	e.mu.Unlock()
	e.scheduler.SetSynthesizer(s)
}

func (e *Engine) Synthesizer() Synthesizer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.synth
}

// ScheduledTicks returns the end of the last scheduled window.
func (e *Engine) ScheduledTicks() float64 { return e.scheduler.ScheduledTicks() }

func (e *Engine) Lookahead() time.Duration { return e.scheduler.Lookahead() }

// Advance moves the transport by d without consulting the clock.
func (e *Engine) Advance(d time.Duration) transport.State {
	return e.transport.Advance(d)
}

// Run advances the transport from the clock at the update interval until
// ctx is done, then returns ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	e.transport.Run(ctx)
	return ctx.Err()
}

// Watch returns a channel receiving a PassEvent per scheduling pass. Events
// are dropped when the channel is full. A later call replaces the channel.
func (e *Engine) Watch() <-chan PassEvent {
	ch := make(chan PassEvent, 8)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

func (e *Engine) sendEvent(ev PassEvent) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

var _ transport.Listener = (*Engine)(nil)
