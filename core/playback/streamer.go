package playback

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/koscakluka/sonicursor/core/audio"
)

type streamerSource struct {
	streamer beep.Streamer
	format   audio.Format
	scratch  [][2]float64
	done     bool
}

// NewStreamerSource renders a beep streamer into PCM chunks. The streamer
// must already run at format's sample rate.
func NewStreamerSource(streamer beep.Streamer, format audio.Format, chunk time.Duration) Source {
	frames := max(format.Frames(chunk), 1)
	return &streamerSource{
		streamer: streamer,
		format:   format,
		scratch:  make([][2]float64, frames),
	}
}

func (s *streamerSource) Next() (audio.PCMBuffer, bool) {
	if s.done {
		return audio.PCMBuffer{}, false
	}

	n, ok := s.streamer.Stream(s.scratch)
	if !ok {
		s.done = true
	}
	if n == 0 {
		s.done = true
		return audio.PCMBuffer{}, false
	}

	buf := audio.NewPCMBuffer(s.format, n)
	amplitude := s.format.MaxAmplitude()
	ch := int(s.format.Channels)
	for i, frame := range s.scratch[:n] {
		switch ch {
		case 1:
			buf.Samples[i] = toSample((frame[0]+frame[1])/2, amplitude)
		default:
			buf.Samples[i*ch] = toSample(frame[0], amplitude)
			buf.Samples[i*ch+1] = toSample(frame[1], amplitude)
			for c := 2; c < ch; c++ {
				buf.Samples[i*ch+c] = toSample((frame[0]+frame[1])/2, amplitude)
			}
		}
	}
	return buf, true
}

func (s *streamerSource) Err() error { return s.streamer.Err() }

func toSample(v, amplitude float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * amplitude))
}
