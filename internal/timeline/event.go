package timeline

// NoteEvent is a stored note: an onset at Ticks lasting Duration ticks.
type NoteEvent struct {
	ID         uint64
	Ticks      float64
	Duration   float64
	NoteNumber int
	Velocity   int
}

// EndTicks is the tick at which the note is released.
func (e NoteEvent) EndTicks() float64 {
	return e.Ticks + e.Duration
}

type NoteOn struct {
	Ticks      float64
	NoteNumber int
	Velocity   int
}

type NoteOff struct {
	Ticks      float64
	NoteNumber int
}

// Disassemble splits a stored note into its onset and release. A zero
// duration yields an off event at the same tick as the on event.
func Disassemble(e NoteEvent) (NoteOn, NoteOff) {
	return NoteOn{Ticks: e.Ticks, NoteNumber: e.NoteNumber, Velocity: e.Velocity},
		NoteOff{Ticks: e.EndTicks(), NoteNumber: e.NoteNumber}
}
