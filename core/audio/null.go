package audio

import (
	"sync"
	"time"
)

const nullPeriod = 10 * time.Millisecond

// NullSink consumes streams at the pace a device would and discards them.
// It backs the "none" backend so producers see real backpressure without a
// sound card.
type NullSink struct {
	queueDuration time.Duration

	active *StreamQueue
	mu     sync.Mutex
}

func NewNullSink(queueDuration time.Duration) *NullSink {
	return &NullSink{queueDuration: queueDuration}
}

func (s *NullSink) Open(format Format) (SinkHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Finish(ErrDeviceReleased)
	}

	queue := NewStreamQueue(format, s.queueDuration)
	s.active = queue
	go drainInRealTime(queue)
	return queue, nil
}

func (s *NullSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.Finish(ErrDeviceReleased)
		s.active = nil
	}
}

func drainInRealTime(queue *StreamQueue) {
	format := queue.Format()
	buf := make([]byte, max(format.Frames(nullPeriod), 1)*format.FrameSize())

	ticker := time.NewTicker(nullPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-queue.Done():
			return
		case <-ticker.C:
			if _, drained := queue.Read(buf); drained {
				queue.Finish(nil)
				return
			}
		}
	}
}
