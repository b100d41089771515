package midiout

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

type timedMessage struct {
	at  time.Time
	seq uint64
	msg gomidi.Message
}

// messageHeap is a min-heap on send time; equal times keep enqueue order.
type messageHeap []*timedMessage

func (h messageHeap) Len() int { return len(h) }
func (h messageHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}
func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(*timedMessage))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}
