package timeline

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/spf13/afero"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	DefaultBPM = 120.0
	DefaultPPQ = 480
)

// Song is a timeline decoded from a Standard MIDI File together with the
// resolution and initial tempo found in it.
type Song struct {
	PPQ    int
	BPM    float64
	Events []NoteEvent
}

// Store loads the song's events into a new MemoryStore.
func (s *Song) Store() *MemoryStore {
	return NewMemoryStore(s.Events...)
}

type noteKey struct {
	channel uint8
	key     uint8
}

type pendingNote struct {
	tick     int64
	velocity uint8
}

// LoadSMF decodes a Standard MIDI File. Note starts and ends are paired per
// channel and key in FIFO order; notes still sounding when their track ends
// are released at the end-of-track tick.
func LoadSMF(r io.Reader) (*Song, error) {
	mid, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}
	song := &Song{PPQ: DefaultPPQ, BPM: DefaultBPM}
	if mt, ok := mid.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() > 0 {
		song.PPQ = int(mt.Resolution())
	} else if mid.TimeFormat != nil {
		return nil, fmt.Errorf("read smf: unsupported time format %v", mid.TimeFormat)
	}

	tempoTick := int64(math.MaxInt64)
	for _, track := range mid.Tracks {
		var abs int64
		open := make(map[noteKey][]pendingNote)
		for _, ev := range track {
			abs += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				if abs < tempoTick && bpm > 0 {
					tempoTick = abs
					song.BPM = bpm
				}
				continue
			}
			if ev.Message.Is(smf.MetaEndOfTrackMsg) {
				break
			}
			var ch, key, vel uint8
			msg := gomidi.Message(ev.Message)
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				k := noteKey{ch, key}
				open[k] = append(open[k], pendingNote{tick: abs, velocity: vel})
			case msg.GetNoteEnd(&ch, &key):
				k := noteKey{ch, key}
				queue := open[k]
				if len(queue) == 0 {
					continue
				}
				start := queue[0]
				open[k] = queue[1:]
				song.Events = append(song.Events, NoteEvent{
					Ticks:      float64(start.tick),
					Duration:   float64(abs - start.tick),
					NoteNumber: int(key),
					Velocity:   int(start.velocity),
				})
			}
		}
		for k, queue := range open {
			for _, start := range queue {
				song.Events = append(song.Events, NoteEvent{
					Ticks:      float64(start.tick),
					Duration:   float64(abs - start.tick),
					NoteNumber: int(k.key),
					Velocity:   int(start.velocity),
				})
			}
		}
	}
	sort.SliceStable(song.Events, func(i, j int) bool {
		if song.Events[i].Ticks != song.Events[j].Ticks {
			return song.Events[i].Ticks < song.Events[j].Ticks
		}
		return song.Events[i].NoteNumber < song.Events[j].NoteNumber
	})
	return song, nil
}

func LoadSMFFile(fs afero.Fs, path string) (*Song, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	song, err := LoadSMF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return song, nil
}

type smfMessage struct {
	tick int64
	rank int
	msg  []byte
}

// WriteSMF encodes the song as a single-track file on MIDI
// channel 0. Fractional ticks are rounded to the nearest integer.
func WriteSMF(w io.Writer, song *Song) error {
	if song.PPQ <= 0 || song.PPQ > math.MaxUint16 {
		return fmt.Errorf("write smf: ppq %d out of range", song.PPQ)
	}
	msgs := make([]smfMessage, 0, len(song.Events)*2)
	for _, e := range song.Events {
		on, off := Disassemble(e)
		onTick, offTick := int64(math.Round(on.Ticks)), int64(math.Round(off.Ticks))
		offRank := 0
		if offTick == onTick {
			offRank = 2
		}
		msgs = append(msgs,
			smfMessage{tick: onTick, rank: 1, msg: gomidi.NoteOn(0, clamp7(on.NoteNumber), max(clamp7(on.Velocity), 1))},
			smfMessage{tick: offTick, rank: offRank, msg: gomidi.NoteOff(0, clamp7(off.NoteNumber))},
		)
	}
	// On a shared tick: earlier notes release, then onsets, then zero-length
	// releases, so retriggered keys and zero-length notes pair correctly.
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].rank < msgs[j].rank
	})

	var track smf.Track
	bpm := song.BPM
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	track.Add(0, smf.MetaTempo(bpm))
	var last int64
	for _, m := range msgs {
		track.Add(uint32(m.tick-last), m.msg)
		last = m.tick
	}
	track.Close(0)

	out := smf.New()
	out.TimeFormat = smf.MetricTicks(uint16(song.PPQ))
	if err := out.Add(track); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}

func clamp7(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}
