// Package timing converts between ticks and wall-clock time for a given
// tempo and resolution. All functions are pure; callers pass the tempo that
// is current at the moment of conversion.
package timing

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidTempo      = errors.New("bpm must be a positive finite number")
	ErrInvalidResolution = errors.New("ppq must be positive")
)

// SecondsPerTick returns the duration of a single tick in seconds.
func SecondsPerTick(bpm float64, ppq int) float64 {
	return (60 / bpm) / float64(ppq)
}

// TicksPerSecond returns how many ticks elapse in one second.
func TicksPerSecond(bpm float64, ppq int) float64 {
	return float64(ppq) * bpm / 60
}

// TicksToSeconds converts a tick span to seconds at the given tempo.
func TicksToSeconds(ticks float64, bpm float64, ppq int) float64 {
	return ticks * (60 / bpm) / float64(ppq)
}

// SecondsToTicks converts seconds to ticks at the given tempo.
func SecondsToTicks(seconds float64, bpm float64, ppq int) float64 {
	return seconds * bpm / 60 * float64(ppq)
}

func TicksToMilliseconds(ticks float64, bpm float64, ppq int) float64 {
	return TicksToSeconds(ticks, bpm, ppq) * 1000
}

// MillisecondsToTicks converts a fixed duration such as the lookahead time
// into a tick length at the given tempo.
func MillisecondsToTicks(ms float64, bpm float64, ppq int) float64 {
	return SecondsToTicks(ms/1000, bpm, ppq)
}

// ValidateTempo rejects zero, negative and non-finite tempos.
func ValidateTempo(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTempo, bpm)
	}
	return nil
}

func ValidateResolution(ppq int) error {
	if ppq <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidResolution, ppq)
	}
	return nil
}
