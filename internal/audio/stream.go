// Package audio streams a sample source to the system output through
// ebiten's audio context.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte
// stream NewPlayerF32 expects. It also tracks the peak level of the most
// recent read for meters.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	peak   float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	var peak float32
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	r.peak = peak
	return frames * 8, nil
}

// Peak returns the largest absolute sample of the last read.
func (r *StreamReader) Peak() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

func (r *StreamReader) Close() error { return nil }

type Player struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows one audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer opens an output stream pulling from source. bufferSize bounds
// output latency; zero keeps ebiten's default.
func NewPlayer(sampleRate int, source SampleSource, bufferSize time.Duration) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("open audio stream: %w", err)
	}
	if bufferSize > 0 {
		pl.SetBufferSize(bufferSize)
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

func (p *Player) SetVolume(v float64) { p.player.SetVolume(v) }

func (p *Player) Peak() float32 { return p.reader.Peak() }

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Close() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}

var _ io.ReadCloser = (*StreamReader)(nil)
