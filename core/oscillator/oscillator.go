// Package oscillator generates phase-continuous sine tones. The only state
// carried between buffers is the phase accumulator, so the frequency can
// change at any buffer boundary without a discontinuity in the waveform.
package oscillator

import (
	"math"
	"time"

	"github.com/koscakluka/sonicursor/core/audio"
)

const (
	MinFrequency = 220.0
	MaxFrequency = 880.0
	// SingleLineFrequency is used for documents with only one line.
	SingleLineFrequency = 440.0

	twoPi = 2 * math.Pi
)

// PhaseState is the oscillator state of one tone session.
type PhaseState struct {
	Phase  float64
	Format audio.Format
	Volume float32
}

func NewPhaseState(format audio.Format, volume float32) *PhaseState {
	return &PhaseState{Format: format, Volume: clampVolume(volume)}
}

// Reset puts the accumulator back to zero.
func (s *PhaseState) Reset() {
	s.Phase = 0
}

// Increment is the phase advance per frame at frequency.
func (s *PhaseState) Increment(frequency float64) float64 {
	if s.Format.SampleRate == 0 {
		return 0
	}
	return twoPi * frequency / float64(s.Format.SampleRate)
}

// GenerateBuffer renders duration worth of frames at frequency, continuing
// from the current phase.
func GenerateBuffer(state *PhaseState, frequency float64, duration time.Duration) audio.PCMBuffer {
	return generate(state, frequency, state.Format.Frames(duration), false)
}

// GenerateRelease renders a buffer like GenerateBuffer with a linear fade to
// silence, so a stream can end without a click.
func GenerateRelease(state *PhaseState, frequency float64, duration time.Duration) audio.PCMBuffer {
	return generate(state, frequency, state.Format.Frames(duration), true)
}

func generate(state *PhaseState, frequency float64, frames int, fade bool) audio.PCMBuffer {
	buf := audio.NewPCMBuffer(state.Format, max(frames, 0))
	amplitude := float64(clampVolume(state.Volume)) * state.Format.MaxAmplitude()
	increment := state.Increment(frequency)
	channels := int(state.Format.Channels)

	for i := range frames {
		gain := 1.0
		if fade {
			gain = float64(frames-i-1) / float64(frames)
		}
		sample := int16(math.Round(math.Sin(state.Phase) * amplitude * gain))
		for c := range channels {
			buf.Samples[i*channels+c] = sample
		}
		state.Phase = wrap(state.Phase + increment)
	}
	return buf
}

func wrap(phase float64) float64 {
	phase = math.Mod(phase, twoPi)
	if phase < 0 {
		phase += twoPi
	}
	return phase
}

func clampVolume(v float32) float32 {
	switch {
	case v < 0 || math.IsNaN(float64(v)):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// FrequencyForLine maps a zero-based line to a pitch between MinFrequency and
// MaxFrequency. Lines past the end clamp to the top of the range.
func FrequencyForLine(line, totalLines uint32) float64 {
	if totalLines <= 1 {
		return SingleLineFrequency
	}
	position := float64(min(line, totalLines-1)) / float64(totalLines-1)
	return MinFrequency + position*(MaxFrequency-MinFrequency)
}
