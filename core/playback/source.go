package playback

import (
	"time"

	"github.com/koscakluka/sonicursor/core/audio"
)

// Source produces the buffers of one stream. Next returns false when the
// stream is over; Err then reports whether it ended because of a failure.
type Source interface {
	Next() (audio.PCMBuffer, bool)
	Err() error
}

// Releaser is implemented by sources that can end with a short tail, such as
// a fade-out, when stopped gracefully.
type Releaser interface {
	Release() (audio.PCMBuffer, bool)
}

type bufferSource struct {
	buf    audio.PCMBuffer
	frames int
	pos    int
}

// NewBufferSource plays a pre-rendered buffer in chunks of chunk duration.
func NewBufferSource(buf audio.PCMBuffer, chunk time.Duration) Source {
	frames := buf.Format.Frames(chunk)
	if frames <= 0 {
		frames = buf.Frames()
	}
	return &bufferSource{buf: buf, frames: max(frames, 1)}
}

func (s *bufferSource) Next() (audio.PCMBuffer, bool) {
	total := s.buf.Frames()
	if s.pos >= total {
		return audio.PCMBuffer{}, false
	}

	end := min(s.pos+s.frames, total)
	ch := int(s.buf.Format.Channels)
	out := audio.PCMBuffer{Format: s.buf.Format, Samples: s.buf.Samples[s.pos*ch : end*ch]}
	s.pos = end
	return out, true
}

func (s *bufferSource) Err() error { return nil }
