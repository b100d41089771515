package engine

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/resonance-box/engine-go/internal/synth"
	"github.com/resonance-box/engine-go/internal/timeline"
)

// RenderTimeline plays store through voicer faster than real time and
// returns seconds of interleaved stereo audio. The transport is advanced
// by hand one update interval per block, so the result is the same on
// every run.
func RenderTimeline(store timeline.Store, voicer synth.Voicer, sampleRate int, seconds float64, opts ...Option) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, errors.New("seconds must be finite and non-negative")
	}
	e, err := New(store, opts...)
	if err != nil {
		return nil, err
	}
	node := synth.NewNode(voicer, sampleRate, synth.WithLogger(e.log))
	e.SetSynthesizer(node)

	block := int(e.transport.Interval().Seconds() * float64(sampleRate))
	if block <= 0 {
		block = 1
	}

	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	e.Play()
	e.Advance(0)
	for pos := 0; pos < frames; {
		n := min(block, frames-pos)
		node.Process(out[pos*2 : (pos+n)*2])
		pos += n
		e.Advance(time.Duration(float64(n) / float64(sampleRate) * float64(time.Second)))
	}
	e.Stop()
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
