package synth

import (
	"sync"
)

// Sink is anything that accepts delayed note messages.
type Sink interface {
	NoteOn(channel, noteNumber, velocity int, delaySeconds float64)
	NoteOff(channel, noteNumber int, delaySeconds float64)
}

// Canceler is implemented by sinks that can drop messages queued for later.
type Canceler interface {
	CancelPending()
}

type namedSink struct {
	name string
	sink Sink
}

// Multi forwards every note message to all registered sinks in the order
// they were added.
type Multi struct {
	mu    sync.Mutex
	sinks []namedSink
}

func NewMulti() *Multi {
	return &Multi{}
}

// AddSink registers a sink under name, replacing any sink already using it.
func (m *Multi) AddSink(name string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sinks {
		if m.sinks[i].name == name {
			m.sinks[i].sink = sink
			return
		}
	}
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
}

func (m *Multi) RemoveSink(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sinks {
		if m.sinks[i].name == name {
			m.sinks = append(m.sinks[:i], m.sinks[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Multi) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s.name)
	}
	return out
}

func (m *Multi) all() []Sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sink, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s.sink)
	}
	return out
}

func (m *Multi) NoteOn(channel, noteNumber, velocity int, delaySeconds float64) {
	for _, s := range m.all() {
		s.NoteOn(channel, noteNumber, velocity, delaySeconds)
	}
}

func (m *Multi) NoteOff(channel, noteNumber int, delaySeconds float64) {
	for _, s := range m.all() {
		s.NoteOff(channel, noteNumber, delaySeconds)
	}
}

// CancelPending forwards to every sink that supports cancellation.
func (m *Multi) CancelPending() {
	for _, s := range m.all() {
		if c, ok := s.(Canceler); ok {
			c.CancelPending()
		}
	}
}

var (
	_ Sink     = (*Node)(nil)
	_ Canceler = (*Node)(nil)
	_ Sink     = (*Multi)(nil)
	_ Canceler = (*Multi)(nil)
)
