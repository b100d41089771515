// Package synth renders scheduled notes to interleaved stereo samples.
// Delays handed to a Node are converted to absolute sample frames, so notes
// start on the exact frame regardless of audio buffer size.
package synth

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// Voicer is the sound generator driven by a Node. Calls are made from the
// audio thread while the Node holds its lock.
// *meltysynth.Synthesizer satisfies it.
type Voicer interface {
	NoteOn(channel, key, velocity int32)
	NoteOff(channel, key int32)
	NoteOffAll(immediate bool)
	Render(left, right []float32)
}

type NodeOption func(*Node)

func WithLogger(l *zap.Logger) NodeOption {
	return func(n *Node) {
		if l != nil {
			n.log = l
		}
	}
}

// WithGain scales the rendered output.
func WithGain(g float32) NodeOption {
	return func(n *Node) {
		n.gain = g
	}
}

type Node struct {
	mu         sync.Mutex
	voicer     Voicer
	sampleRate int
	gain       float32
	frame      int64
	seq        uint64
	queue      messageHeap
	left       []float32
	right      []float32
	log        *zap.Logger
}

func NewNode(voicer Voicer, sampleRate int, opts ...NodeOption) *Node {
	n := &Node{
		voicer:     voicer,
		sampleRate: sampleRate,
		gain:       1,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) SampleRate() int { return n.sampleRate }

// Frame returns the number of frames rendered so far.
func (n *Node) Frame() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frame
}

// Pending returns the number of queued messages not yet played.
func (n *Node) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.Len()
}

func (n *Node) NoteOn(channel, noteNumber, velocity int, delaySeconds float64) {
	n.enqueue(noteMessage{on: true, channel: channel, key: noteNumber, velocity: velocity}, delaySeconds)
}

func (n *Node) NoteOff(channel, noteNumber int, delaySeconds float64) {
	n.enqueue(noteMessage{channel: channel, key: noteNumber}, delaySeconds)
}

func (n *Node) enqueue(m noteMessage, delaySeconds float64) {
	offset := int64(0)
	if delaySeconds > 0 {
		offset = int64(math.Round(delaySeconds * float64(n.sampleRate)))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	m.frame = n.frame + offset
	n.seq++
	m.seq = n.seq
	heapPush(&n.queue, m)
}

// CancelPending drops every queued message and releases all sounding voices.
func (n *Node) CancelPending() {
	n.mu.Lock()
	defer n.mu.Unlock()
	dropped := n.queue.Len()
	n.queue = n.queue[:0]
	n.voicer.NoteOffAll(false)
	n.log.Debug("synth pending cancelled", zap.Int("dropped", dropped))
}

// Process fills dst with interleaved stereo frames, applying each queued
// message on its frame.
func (n *Node) Process(dst []float32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	frames := len(dst) / 2
	if cap(n.left) < frames {
		n.left = make([]float32, frames)
		n.right = make([]float32, frames)
	}
	n.left, n.right = n.left[:frames], n.right[:frames]
	pos := 0
	for pos < frames {
		for n.queue.Len() > 0 && n.queue[0].frame <= n.frame {
			n.apply(heapPop(&n.queue))
		}
		seg := frames - pos
		if n.queue.Len() > 0 {
			if until := n.queue[0].frame - n.frame; until < int64(seg) {
				seg = int(until)
			}
		}
		left, right := n.left[pos:pos+seg], n.right[pos:pos+seg]
		n.voicer.Render(left, right)
		pos += seg
		n.frame += int64(seg)
	}
	for i := 0; i < frames; i++ {
		dst[i*2] = n.left[i] * n.gain
		dst[i*2+1] = n.right[i] * n.gain
	}
}

func (n *Node) apply(m noteMessage) {
	if m.on {
		n.voicer.NoteOn(int32(m.channel), int32(m.key), int32(m.velocity))
		return
	}
	n.voicer.NoteOff(int32(m.channel), int32(m.key))
}
