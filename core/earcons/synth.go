package earcons

import (
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
)

// tick describes a synthesized earcon: one or more decaying sine blips.
type tick struct {
	freqs    []float64
	duration time.Duration
	gap      time.Duration
	volume   float64
	decay    float64
}

var namedTicks = map[string]tick{
	"undo":      {freqs: []float64{880, 587.33}, duration: 70 * time.Millisecond, gap: 20 * time.Millisecond, volume: 0.6, decay: 30},
	"enter":     {freqs: []float64{392}, duration: 90 * time.Millisecond, volume: 0.5, decay: 35},
	"space":     {freqs: []float64{330}, duration: 40 * time.Millisecond, volume: 0.35, decay: 70},
	"tab":       {freqs: []float64{330, 440}, duration: 35 * time.Millisecond, gap: 10 * time.Millisecond, volume: 0.35, decay: 70},
	"backspace": {freqs: []float64{262}, duration: 45 * time.Millisecond, volume: 0.4, decay: 60},
	"line_end":  {freqs: []float64{196}, duration: 60 * time.Millisecond, volume: 0.3, decay: 50},
	"char":      {freqs: []float64{1200}, duration: 30 * time.Millisecond, volume: 0.4, decay: 60},
}

// synthTick returns the built-in sound for name. Names without an entry get
// a stable pitch derived from the name, so every punctuation mark still
// sounds distinct.
func synthTick(name string) tick {
	if t, ok := namedTicks[name]; ok {
		return t
	}

	switch {
	case strings.HasPrefix(name, "alpha_") && len(name) == len("alpha_")+1:
		step := float64(name[len(name)-1] - 'a')
		return tick{freqs: []float64{semitone(523.25, step)}, duration: 45 * time.Millisecond, volume: 0.4, decay: 45}
	case strings.HasPrefix(name, "digit_") && len(name) == len("digit_")+1:
		step := float64(name[len(name)-1] - '0')
		return tick{freqs: []float64{semitone(261.63, step), semitone(261.63, step)}, duration: 25 * time.Millisecond, gap: 10 * time.Millisecond, volume: 0.4, decay: 60}
	case strings.HasPrefix(name, "indent_") && len(name) == len("indent_")+1:
		level := float64(name[len(name)-1] - '0')
		if level >= 5 {
			// Outdents fall.
			return tick{freqs: []float64{semitone(440, 12-2*(level-5)), semitone(440, 10-2*(level-5))}, duration: 50 * time.Millisecond, volume: 0.45, decay: 40}
		}
		return tick{freqs: []float64{semitone(440, 2*level), semitone(440, 2*level+2)}, duration: 50 * time.Millisecond, volume: 0.45, decay: 40}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return tick{freqs: []float64{semitone(659.25, float64(h.Sum32()%24))}, duration: 40 * time.Millisecond, volume: 0.4, decay: 55}
}

func semitone(base, steps float64) float64 {
	return base * math.Pow(2, steps/12)
}

// streamer renders the tick at rate.
func (t tick) streamer(rate beep.SampleRate) (beep.Streamer, error) {
	parts := make([]beep.Streamer, 0, len(t.freqs)*2)
	for i, freq := range t.freqs {
		if i > 0 && t.gap > 0 {
			parts = append(parts, beep.Silence(rate.N(t.gap)))
		}
		sine, err := generators.SineTone(rate, freq)
		if err != nil {
			return nil, err
		}
		parts = append(parts, &decay{
			Streamer: beep.Take(rate.N(t.duration), sine),
			rate:     rate,
			volume:   t.volume,
			decay:    t.decay,
		})
	}
	return beep.Seq(parts...), nil
}

// decay applies an exponential fade, like a struck bell.
type decay struct {
	beep.Streamer
	rate     beep.SampleRate
	volume   float64
	decay    float64
	position int
}

func (d *decay) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.Streamer.Stream(samples)
	for i := range samples[:n] {
		t := float64(d.position) / float64(d.rate)
		gain := d.volume * math.Exp(-t*d.decay)
		samples[i][0] *= gain
		samples[i][1] *= gain
		d.position++
	}
	return n, ok
}
