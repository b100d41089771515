package engine

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/resonance-box/engine-go/internal/timeline"
)

// gateVoicer outputs 1.0 on both channels while any note is held.
type gateVoicer struct {
	held map[int32]int
	ons  int
}

func newGateVoicer() *gateVoicer {
	return &gateVoicer{held: make(map[int32]int)}
}

func (v *gateVoicer) NoteOn(channel, key, velocity int32) {
	v.held[key]++
	v.ons++
}

func (v *gateVoicer) NoteOff(channel, key int32) {
	if v.held[key] > 1 {
		v.held[key]--
	} else {
		delete(v.held, key)
	}
}

func (v *gateVoicer) NoteOffAll(immediate bool) { clear(v.held) }

func (v *gateVoicer) Render(left, right []float32) {
	var level float32
	if len(v.held) > 0 {
		level = 1
	}
	for i := range left {
		left[i] = level
		right[i] = level
	}
}

func TestRenderTimelineGatesFirstWindowNote(t *testing.T) {
	store := timeline.NewMemoryStore(timeline.NoteEvent{Ticks: 0, Duration: 480, NoteNumber: 60, Velocity: 100})
	samples, err := RenderTimeline(store, newGateVoicer(), 48000, 1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(samples) != 48000*2 {
		t.Fatalf("len = %d, want %d", len(samples), 48000*2)
	}
	// 480 ticks at 120 bpm / 480 ppq is half a second
	for _, frame := range []int{0, 1000, 23999} {
		if samples[frame*2] != 1 || samples[frame*2+1] != 1 {
			t.Fatalf("frame %d silent, want note held", frame)
		}
	}
	for _, frame := range []int{24000, 30000, 47999} {
		if samples[frame*2] != 0 {
			t.Fatalf("frame %d = %v, want silence after release", frame, samples[frame*2])
		}
	}
}

func TestRenderTimelineDispatchesEveryNoteOnce(t *testing.T) {
	var events []timeline.NoteEvent
	for i := 0; i < 16; i++ {
		events = append(events, timeline.NoteEvent{Ticks: float64(i * 120), Duration: 60, NoteNumber: 60 + i, Velocity: 100})
	}
	v := newGateVoicer()
	if _, err := RenderTimeline(timeline.NewMemoryStore(events...), v, 48000, 3); err != nil {
		t.Fatalf("render: %v", err)
	}
	if v.ons != 16 {
		t.Fatalf("note ons = %d, want 16", v.ons)
	}
}

func TestRenderTimelineIsDeterministic(t *testing.T) {
	store := timeline.NewMemoryStore(
		timeline.NoteEvent{Ticks: 0, Duration: 100, NoteNumber: 60, Velocity: 100},
		timeline.NoteEvent{Ticks: 300, Duration: 200, NoteNumber: 64, Velocity: 100},
		timeline.NoteEvent{Ticks: 700, Duration: 0, NoteNumber: 67, Velocity: 100},
	)
	a, err := RenderTimeline(store, newGateVoicer(), 44100, 1.5, WithTempo(90))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, _ := RenderTimeline(store, newGateVoicer(), 44100, 1.5, WithTempo(90))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestRenderTimelineRejectsBadInput(t *testing.T) {
	store := timeline.NewMemoryStore()
	if _, err := RenderTimeline(store, newGateVoicer(), 0, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := RenderTimeline(store, newGateVoicer(), 48000, math.NaN()); err == nil {
		t.Fatal("expected error for NaN duration")
	}
	if _, err := RenderTimeline(store, newGateVoicer(), 48000, 1, WithTempo(-1)); err == nil {
		t.Fatal("expected error for negative tempo")
	}
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0.5, -0.5, 1, -1}, 48000, 2)
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:44])
	}
	if got := binary.LittleEndian.Uint16(wav[20:]); got != 3 {
		t.Fatalf("format = %d, want 3 (IEEE float)", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 48000 {
		t.Fatalf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != 16 {
		t.Fatalf("data size = %d, want 16", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(wav[44+4:])); got != -0.5 {
		t.Fatalf("second sample = %v", got)
	}
}
