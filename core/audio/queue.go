package audio

import (
	"sync"
	"time"
)

const defaultQueueDuration = 250 * time.Millisecond

// StreamQueue is the buffering half of a device-backed SinkHandle. Producers
// Write PCM into it, the device side Reads bytes out of it on its own
// schedule. Writes report Backpressured once the queue holds more than the
// high-water duration, and Ready fires again when it drains below half of it.
type StreamQueue struct {
	mu sync.Mutex

	format    Format
	pending   []byte
	highWater int
	lowWater  int

	closed   bool
	finished bool
	err      error

	ready chan struct{}
	wake  chan struct{}
	done  chan struct{}
}

func NewStreamQueue(format Format, highWater time.Duration) *StreamQueue {
	if highWater <= 0 {
		highWater = defaultQueueDuration
	}
	high := format.Frames(highWater) * format.FrameSize()
	return &StreamQueue{
		format:    format,
		highWater: high,
		lowWater:  high / 2,
		ready:     make(chan struct{}, 1),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (q *StreamQueue) Format() Format { return q.format }

func (q *StreamQueue) Write(buf PCMBuffer) (WriteResult, error) {
	q.mu.Lock()
	if q.finished {
		err := q.err
		q.mu.Unlock()
		if err == nil {
			err = ErrHandleClosed
		}
		return Accepted, err
	} else if q.closed {
		q.mu.Unlock()
		return Accepted, ErrHandleClosed
	}

	q.pending = append(q.pending, buf.Bytes()...)
	full := len(q.pending) >= q.highWater
	q.mu.Unlock()

	q.signal(q.wake)
	if full {
		return Backpressured, nil
	}
	return Accepted, nil
}

// Read moves up to len(p) queued bytes into p. drained reports that the
// queue was closed and everything has been read.
func (q *StreamQueue) Read(p []byte) (n int, drained bool) {
	q.mu.Lock()
	n = copy(p, q.pending)
	q.pending = q.pending[n:]
	belowLow := len(q.pending) <= q.lowWater
	drained = q.closed && len(q.pending) == 0
	q.mu.Unlock()

	if belowLow {
		q.signal(q.ready)
	}
	return n, drained
}

// Pending returns the number of queued bytes.
func (q *StreamQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *StreamQueue) Ready() <-chan struct{} { return q.ready }

// Wake fires after every write and on Close, for backends that pump the
// queue from their own goroutine.
func (q *StreamQueue) Wake() <-chan struct{} { return q.wake }

func (q *StreamQueue) Done() <-chan struct{} { return q.done }

func (q *StreamQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *StreamQueue) Close() error {
	q.mu.Lock()
	if q.closed || q.finished {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.signal(q.wake)
	return nil
}

// Closed reports whether Close was called.
func (q *StreamQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Finish ends the stream. Pending audio is dropped. Only the first call has
// an effect.
func (q *StreamQueue) Finish(err error) {
	q.mu.Lock()
	if q.finished {
		q.mu.Unlock()
		return
	}
	q.finished = true
	q.closed = true
	q.err = err
	q.pending = nil
	q.mu.Unlock()

	close(q.done)
	q.signal(q.ready)
}

func (q *StreamQueue) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finished
}

func (q *StreamQueue) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
