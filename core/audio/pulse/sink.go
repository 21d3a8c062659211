//go:build linux

package pulse

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/koscakluka/sonicursor/core/audio"
)

// Sink plays audio through a PulseAudio (or PipeWire) server.
type Sink struct {
	client *pulse.Client

	latency       time.Duration
	queueDuration time.Duration

	active *audio.StreamQueue
	mu     sync.Mutex
}

type SinkOption func(*Sink)

// WithLatency sets the playback latency requested from the server.
func WithLatency(d time.Duration) SinkOption {
	return func(s *Sink) { s.latency = d }
}

func WithQueueDuration(d time.Duration) SinkOption {
	return func(s *Sink) { s.queueDuration = d }
}

func NewSink(opts ...SinkOption) (*Sink, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("sonicursor"))
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %w", audio.ErrDeviceUnavailable, err)
	}

	s := &Sink{client: c, latency: 30 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sink) Open(format audio.Format) (audio.SinkHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
	}

	var layout pulse.PlaybackOption
	volumes := proto.ChannelVolumes{uint32(proto.VolumeNorm)}
	switch format.Channels {
	case 1:
		layout = pulse.PlaybackMono
	case 2:
		layout = pulse.PlaybackStereo
		volumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
	default:
		return nil, fmt.Errorf("%w: unsupported channel count %d", audio.ErrDeviceUnavailable, format.Channels)
	}

	if s.active != nil && !s.active.Finished() {
		logger.Warn("releasing audio device held by an unfinished stream")
		s.active.Finish(audio.ErrDeviceReleased)
	}
	s.active = nil

	queue := audio.NewStreamQueue(format, s.queueDuration)
	var scratch []byte
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cap(scratch) < len(buf)*2 {
			scratch = make([]byte, len(buf)*2)
		}
		scratch = scratch[:len(buf)*2]

		n, drained := queue.Read(scratch)
		if n == 0 && drained {
			return 0, pulse.EndOfData
		}
		samples := n / 2
		for i := range samples {
			buf[i] = int16(binary.LittleEndian.Uint16(scratch[i*2:]))
		}
		if drained {
			return samples, nil
		}
		// Underrun: keep the stream alive with silence.
		clear(buf[samples:])
		return len(buf), nil
	})

	stream, err := s.client.NewPlayback(reader,
		layout,
		pulse.PlaybackSampleRate(int(format.SampleRate)),
		pulse.PlaybackLatency(s.latency.Seconds()),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = volumes
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: pulse playback: %w", audio.ErrDeviceUnavailable, err)
	}

	s.active = queue
	go func() {
		defer stream.Close()
		stream.Start()
		stream.Drain()
		stream.Stop()

		if err := stream.Error(); err != nil {
			queue.Finish(fmt.Errorf("%w: %w", audio.ErrDeviceWriteFailed, err))
			return
		}
		queue.Finish(nil)
	}()
	return queue, nil
}

func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Finish(audio.ErrDeviceReleased)
		s.active = nil
	}
	s.client.Close()
}
