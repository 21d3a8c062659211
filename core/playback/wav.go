package playback

import (
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// DecodeWAV decodes a WAV stream at full scale. beep divides 16-bit samples
// by 1<<16-1, which leaves them at half level, so those are doubled back.
func DecodeWAV(r io.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, format, err
	}
	if format.Precision == 2 {
		return &scaledStreamer{StreamSeekCloser: streamer, gain: 2}, format, nil
	}
	return streamer, format, nil
}

type scaledStreamer struct {
	beep.StreamSeekCloser
	gain float64
}

func (s *scaledStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := s.StreamSeekCloser.Stream(samples)
	for i := range samples[:n] {
		samples[i][0] = clampUnit(samples[i][0] * s.gain)
		samples[i][1] = clampUnit(samples[i][1] * s.gain)
	}
	return n, ok
}

func clampUnit(v float64) float64 {
	return max(-1, min(1, v))
}
