package tone

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/oscillator"
	"github.com/koscakluka/sonicursor/core/playback"
)

const (
	DefaultChunk   = 50 * time.Millisecond
	DefaultRelease = 15 * time.Millisecond
	DefaultVolume  = 0.3
)

// Stream is the playable continuous tone. Its frequency can be changed from
// any goroutine and takes effect at the next buffer.
type Stream struct {
	format  audio.Format
	volume  float32
	chunk   time.Duration
	release time.Duration

	frequency atomic.Uint64

	onFirstAccepted func()
}

func NewStream(format audio.Format, volume float32, frequency float64) *Stream {
	s := &Stream{
		format:  format,
		volume:  volume,
		chunk:   DefaultChunk,
		release: DefaultRelease,
	}
	s.SetFrequency(frequency)
	return s
}

func (s *Stream) SetFrequency(f float64) {
	s.frequency.Store(math.Float64bits(f))
}

func (s *Stream) Frequency() float64 {
	return math.Float64frombits(s.frequency.Load())
}

func (s *Stream) Play(ctx context.Context, token *playback.CancelToken, sink audio.Sink) error {
	state := oscillator.NewPhaseState(s.format, s.volume)
	state.Reset()

	var opts []playback.PumpOption
	if s.onFirstAccepted != nil {
		opts = append(opts, playback.WithOnFirstAccepted(s.onFirstAccepted))
	}
	return playback.Play(ctx, token, sink, s.format, &toneSource{stream: s, state: state}, opts...)
}

type toneSource struct {
	stream *Stream
	state  *oscillator.PhaseState
}

func (t *toneSource) Next() (audio.PCMBuffer, bool) {
	return oscillator.GenerateBuffer(t.state, t.stream.Frequency(), t.stream.chunk), true
}

func (t *toneSource) Err() error { return nil }

func (t *toneSource) Release() (audio.PCMBuffer, bool) {
	if t.stream.release <= 0 {
		return audio.PCMBuffer{}, false
	}
	return oscillator.GenerateRelease(t.state, t.stream.Frequency(), t.stream.release), true
}
