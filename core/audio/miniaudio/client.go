package miniaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/sonicursor/core/audio"
)

// Sink plays audio through the default miniaudio playback device. The device
// is created lazily on the first Open and recreated only when the requested
// format changes.
type Sink struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playback     playbackClient

	queueDuration time.Duration

	mu sync.Mutex
}

type SinkOption func(*Sink)

// WithQueueDuration sets how much audio may be queued before writes report
// backpressure.
func WithQueueDuration(d time.Duration) SinkOption {
	return func(s *Sink) { s.queueDuration = d }
}

func NewSink(opts ...SinkOption) (*Sink, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("%w: malgo init context: %w", audio.ErrDeviceUnavailable, err)
	}

	s := &Sink{audioContext: audioCtx}
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

	if previous := s.playback.attach(nil); previous != nil {
		logger.Warn("releasing audio device held by an unfinished stream")
		previous.Finish(audio.ErrDeviceReleased)
	}

	if s.playback.device == nil || s.playback.format != format {
		_ = s.playback.Uninit()
		if err := s.playback.Init(s.audioContext, format); err != nil {
			return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
	}

	if err := s.playback.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
	}

	queue := audio.NewStreamQueue(format, s.queueDuration)
	s.playback.attach(queue)
	return queue, nil
}

func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous := s.playback.attach(nil); previous != nil {
		previous.Finish(audio.ErrDeviceReleased)
	}
	_ = s.playback.Uninit()
	_ = s.audioContext.Uninit()
	s.audioContext.Free()
}
