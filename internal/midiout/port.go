// Package midiout sends scheduled notes to a hardware or virtual MIDI output.
// Delayed messages wait on a min-heap in a dispatch goroutine and are sent
// when their wall-clock time arrives.
package midiout

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"
)

var ErrPortNotFound = errors.New("midi output port not found")

// Sender writes one message to the device. gomidi.SendTo returns one.
type Sender func(gomidi.Message) error

type Option func(*Port)

func WithLogger(l *zap.Logger) Option {
	return func(p *Port) {
		if l != nil {
			p.log = l
		}
	}
}

func WithName(name string) Option {
	return func(p *Port) {
		p.name = name
	}
}

type command struct {
	msg    *timedMessage
	cancel chan struct{}
}

type Port struct {
	name      string
	send      Sender
	log       *zap.Logger
	cmds      chan command
	ctx       context.Context
	stop      context.CancelFunc
	done      chan struct{}
	seq       uint64
	seqMu     sync.Mutex
	closeOnce sync.Once
}

// New starts a port dispatching through send.
func New(send Sender, opts ...Option) *Port {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Port{
		send: send,
		log:  zap.NewNop(),
		cmds: make(chan command, 256),
		ctx:  ctx,
		stop: cancel,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// ListPorts returns the names of the available MIDI outputs. A driver must
// be registered, e.g. by importing gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
func ListPorts() []string {
	var names []string
	for _, port := range gomidi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}

// Open connects to the first output whose name contains name.
func Open(name string, opts ...Option) (*Port, error) {
	for _, port := range gomidi.GetOutPorts() {
		if !strings.Contains(port.String(), name) {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, fmt.Errorf("open midi port %q: %w", port.String(), err)
		}
		p := New(send, append([]Option{WithName(port.String())}, opts...)...)
		p.log.Info("midi port opened", zap.String("port", p.name))
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

func (p *Port) Name() string { return p.name }

func (p *Port) NoteOn(channel, noteNumber, velocity int, delaySeconds float64) {
	p.enqueue(gomidi.NoteOn(clamp(channel, 15), clamp(noteNumber, 127), clamp(velocity, 127)), delaySeconds)
}

func (p *Port) NoteOff(channel, noteNumber int, delaySeconds float64) {
	p.enqueue(gomidi.NoteOff(clamp(channel, 15), clamp(noteNumber, 127)), delaySeconds)
}

func (p *Port) enqueue(msg gomidi.Message, delaySeconds float64) {
	at := time.Now()
	if delaySeconds > 0 {
		at = at.Add(time.Duration(delaySeconds * float64(time.Second)))
	}
	p.seqMu.Lock()
	p.seq++
	m := &timedMessage{at: at, seq: p.seq, msg: msg}
	p.seqMu.Unlock()
	select {
	case p.cmds <- command{msg: m}:
	case <-p.ctx.Done():
	}
}

// CancelPending drops queued messages and releases every note still
// sounding on the device. It returns once the dispatcher has done so.
func (p *Port) CancelPending() {
	ack := make(chan struct{})
	select {
	case p.cmds <- command{cancel: ack}:
	case <-p.ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-p.done:
	}
}

// Close releases sounding notes and stops the dispatcher.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.CancelPending()
		p.stop()
		<-p.done
		p.log.Info("midi port closed", zap.String("port", p.name))
	})
	return nil
}

type noteKey struct{ channel, key uint8 }

func (p *Port) run() {
	defer close(p.done)

	h := &messageHeap{}
	sounding := make(map[noteKey]int)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			return nil
		}
		timer = time.NewTimer(max(0, time.Until((*h)[0].at)))
		return timer.C
	}

	write := func(msg gomidi.Message) {
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			sounding[noteKey{ch, key}]++
		case msg.GetNoteEnd(&ch, &key):
			if k := (noteKey{ch, key}); sounding[k] > 1 {
				sounding[k]--
			} else {
				delete(sounding, k)
			}
		}
		if err := p.send(msg); err != nil {
			p.log.Error("midi send failed", zap.String("port", p.name), zap.String("msg", msg.String()), zap.Error(err))
		}
	}

	timerCh := resetTimer()
	for {
		select {
		case <-p.ctx.Done():
			return

		case c := <-p.cmds:
			if c.cancel != nil {
				dropped := h.Len()
				*h = (*h)[:0]
				for k := range sounding {
					write(gomidi.NoteOff(k.channel, k.key))
				}
				clear(sounding)
				p.log.Debug("midi pending cancelled", zap.String("port", p.name), zap.Int("dropped", dropped))
				close(c.cancel)
			} else {
				heap.Push(h, c.msg)
			}
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].at.After(now) {
				write(heap.Pop(h).(*timedMessage).msg)
			}
			timerCh = resetTimer()
		}
	}
}

func clamp(v, hi int) uint8 {
	if v < 0 {
		return 0
	}
	if v > hi {
		return uint8(hi)
	}
	return uint8(v)
}
