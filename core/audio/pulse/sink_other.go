//go:build !linux

package pulse

import (
	"fmt"
	"time"

	"github.com/koscakluka/sonicursor/core/audio"
)

type Sink struct{}

type SinkOption func(*Sink)

func WithLatency(time.Duration) SinkOption       { return func(*Sink) {} }
func WithQueueDuration(time.Duration) SinkOption { return func(*Sink) {} }

func NewSink(...SinkOption) (*Sink, error) {
	return nil, fmt.Errorf("%w: pulse is only available on linux", audio.ErrDeviceUnavailable)
}

func (s *Sink) Open(audio.Format) (audio.SinkHandle, error) {
	return nil, audio.ErrDeviceUnavailable
}

func (s *Sink) Close() {}
