package timeline

import (
	"sort"
	"sync"
)

// Store answers tick range queries over a note timeline.
type Store interface {
	// EventsInRange returns the events whose onset lies in [start, end),
	// or [start, end] when includeEnd is true.
	EventsInRange(start, end float64, includeEnd bool) []NoteEvent
}

// MemoryStore keeps events sorted by onset tick. Events sharing a tick keep
// insertion order, so range results are ascending and stable.
type MemoryStore struct {
	mu     sync.RWMutex
	events []NoteEvent
	nextID uint64
}

func NewMemoryStore(events ...NoteEvent) *MemoryStore {
	s := &MemoryStore{}
	s.AddAll(events)
	return s
}

// Add inserts an event and returns the ID assigned to it. A zero ID on the
// input is replaced; a non-zero ID is kept as given.
func (s *MemoryStore) Add(e NoteEvent) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(e)
}

func (s *MemoryStore) AddAll(events []NoteEvent) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(events))
	for _, e := range events {
		ids = append(ids, s.insert(e))
	}
	return ids
}

func (s *MemoryStore) insert(e NoteEvent) uint64 {
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	// first index strictly after e.Ticks keeps ties in insertion order
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].Ticks > e.Ticks })
	s.events = append(s.events, NoteEvent{})
	copy(s.events[i+1:], s.events[i:])
	s.events[i] = e
	return e.ID
}

// Remove deletes the event with the given ID and reports whether it existed.
func (s *MemoryStore) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.events {
		if e.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return true
		}
	}
	return false
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// All returns a copy of every stored event in tick order.
func (s *MemoryStore) All() []NoteEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NoteEvent, len(s.events))
	copy(out, s.events)
	return out
}

// EndTicks returns the latest release tick across all events.
func (s *MemoryStore) EndTicks() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var end float64
	for _, e := range s.events {
		if t := e.EndTicks(); t > end {
			end = t
		}
	}
	return end
}

func (s *MemoryStore) EventsInRange(start, end float64, includeEnd bool) []NoteEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lo := sort.Search(len(s.events), func(i int) bool { return s.events[i].Ticks >= start })
	hi := sort.Search(len(s.events), func(i int) bool {
		if includeEnd {
			return s.events[i].Ticks > end
		}
		return s.events[i].Ticks >= end
	})
	if hi <= lo {
		return nil
	}
	out := make([]NoteEvent, hi-lo)
	copy(out, s.events[lo:hi])
	return out
}

var _ Store = (*MemoryStore)(nil)
