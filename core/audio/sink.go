package audio

import (
	"errors"
)

var (
	// ErrDeviceUnavailable is returned when a sink cannot be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrDeviceWriteFailed is returned when the device fails mid-stream.
	ErrDeviceWriteFailed = errors.New("audio device write failed")
	// ErrDeviceReleased ends a handle whose device was handed to a newer
	// stream before the old one finished.
	ErrDeviceReleased = errors.New("audio device released")
	// ErrHandleClosed is returned when writing to a closed handle.
	ErrHandleClosed = errors.New("audio handle closed")
	// ErrUnsupportedFormat is returned for formats other than 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

type WriteResult int

const (
	// Accepted means the buffer was queued and there is room for more.
	Accepted WriteResult = iota
	// Backpressured means the buffer was queued but the device queue is at
	// its high-water mark. The producer must wait on Ready before writing
	// again.
	Backpressured
)

func (r WriteResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Backpressured:
		return "backpressured"
	default:
		return "unknown"
	}
}

// Sink is an audio output device. At most one handle is live at a time;
// opening a new one releases the previous handle.
type Sink interface {
	Open(format Format) (SinkHandle, error)
}

// SinkHandle is a single stream on a sink.
type SinkHandle interface {
	// Write queues buf for playback.
	Write(buf PCMBuffer) (WriteResult, error)
	// Ready fires after a Backpressured write once the queue has drained
	// below its low-water mark.
	Ready() <-chan struct{}
	// Close stops accepting writes. Audio already queued keeps playing.
	Close() error
	// Done is closed when the stream has ended, either after Close once the
	// queue played out, or because the device failed or was released.
	Done() <-chan struct{}
	// Err reports why the stream ended. It is nil after a clean close.
	Err() error
}
