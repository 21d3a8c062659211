package portaudio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/sonicursor/core/audio"
)

// Sink plays audio through the default PortAudio output device. Each Open
// gets its own blocking stream fed by a writer goroutine.
type Sink struct {
	framesPerBuffer int
	queueDuration   time.Duration

	active *audio.StreamQueue
	mu     sync.Mutex
}

type SinkOption func(*Sink)

// WithFramesPerBuffer sets the size of each blocking write to the device.
func WithFramesPerBuffer(frames int) SinkOption {
	return func(s *Sink) { s.framesPerBuffer = frames }
}

func WithQueueDuration(d time.Duration) SinkOption {
	return func(s *Sink) { s.queueDuration = d }
}

func NewSink(opts ...SinkOption) (*Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio initialize: %w", audio.ErrDeviceUnavailable, err)
	}

	s := &Sink{framesPerBuffer: 480}
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

	if s.active != nil && !s.active.Finished() {
		logger.Warn("releasing audio device held by an unfinished stream")
		s.active.Finish(audio.ErrDeviceReleased)
	}
	s.active = nil

	out := make([]int16, s.framesPerBuffer*int(format.Channels))
	stream, err := portaudio.OpenDefaultStream(0, int(format.Channels), float64(format.SampleRate), s.framesPerBuffer, out)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %w", audio.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: start stream: %w", audio.ErrDeviceUnavailable, err)
	}

	queue := audio.NewStreamQueue(format, s.queueDuration)
	s.active = queue
	go s.pump(stream, queue, out)
	return queue, nil
}

// pump moves queued audio to the device one buffer at a time until the queue
// drains or is finished from the outside.
func (s *Sink) pump(stream *portaudio.Stream, queue *audio.StreamQueue, out []int16) {
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
	}()

	chunk := make([]byte, len(out)*2)
	for {
		if queue.Finished() {
			return
		}

		if queue.Pending() < len(chunk) && !queue.Closed() {
			select {
			case <-queue.Wake():
				continue
			case <-queue.Done():
				return
			}
		}

		n, drained := queue.Read(chunk)
		if n > 0 {
			samples := n / 2
			for i := range samples {
				out[i] = int16(binary.LittleEndian.Uint16(chunk[i*2:]))
			}
			clear(out[samples:])

			if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
				queue.Finish(fmt.Errorf("%w: %w", audio.ErrDeviceWriteFailed, err))
				return
			}
		}
		if drained {
			queue.Finish(nil)
			return
		}
	}
}

func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Finish(audio.ErrDeviceReleased)
		s.active = nil
	}
	_ = portaudio.Terminate()
}
