package synth

import "container/heap"

type noteMessage struct {
	frame    int64
	seq      uint64
	on       bool
	channel  int
	key      int
	velocity int
}

// messageHeap orders messages by frame, then by arrival so a note on queued
// before its note off fires first when both land on the same frame.
type messageHeap []noteMessage

func (h messageHeap) Len() int { return len(h) }
func (h messageHeap) Less(i, j int) bool {
	if h[i].frame != h[j].frame {
		return h[i].frame < h[j].frame
	}
	return h[i].seq < h[j].seq
}
func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(noteMessage))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *messageHeap, m noteMessage) {
	heap.Push(h, m)
}

// heapPop panics on an empty heap.
func heapPop(h *messageHeap) noteMessage {
	return heap.Pop(h).(noteMessage)
}
