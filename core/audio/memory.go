package audio

import (
	"fmt"
	"sync"
)

// MemorySink is a Sink that keeps everything written to it. It backs the
// "none" backend and the tests. Nothing is drained unless Consume is called;
// with a zero high-water mark writes never report backpressure.
type MemorySink struct {
	mu sync.Mutex

	highWater   int
	manualDrain bool
	openErr     error
	failAfter   int

	opens   []Format
	written []PCMBuffer
	writes  int
	active  *memoryHandle
}

type MemorySinkOption func(*MemorySink)

// WithHighWater makes writes report Backpressured once n buffers are queued.
func WithHighWater(n int) MemorySinkOption {
	return func(s *MemorySink) { s.highWater = n }
}

// WithManualDrain keeps closed handles open until Consume empties them.
func WithManualDrain() MemorySinkOption {
	return func(s *MemorySink) { s.manualDrain = true }
}

func WithOpenError(err error) MemorySinkOption {
	return func(s *MemorySink) { s.openErr = err }
}

// WithWriteFailureAfter fails the n+1th write across all handles.
func WithWriteFailureAfter(n int) MemorySinkOption {
	return func(s *MemorySink) { s.failAfter = n }
}

func NewMemorySink(opts ...MemorySinkOption) *MemorySink {
	s := &MemorySink{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemorySink) Open(format Format) (SinkHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, s.openErr)
	}

	if s.active != nil {
		s.active.finishLocked(ErrDeviceReleased)
	}

	h := &memoryHandle{
		sink:   s,
		format: format,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.opens = append(s.opens, format)
	s.active = h
	return h, nil
}

// Opens returns the formats of every handle opened so far.
func (s *MemorySink) Opens() []Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Format(nil), s.opens...)
}

// Written returns every buffer accepted by any handle, in write order.
func (s *MemorySink) Written() []PCMBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PCMBuffer(nil), s.written...)
}

// Queued returns the number of buffers waiting on the live handle.
func (s *MemorySink) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0
	}
	return len(s.active.queued)
}

// Consume plays up to n queued buffers of the live handle and returns how
// many were consumed.
func (s *MemorySink) Consume(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.active
	if h == nil {
		return 0
	}

	n = min(n, len(h.queued))
	h.queued = h.queued[n:]
	if s.highWater == 0 || len(h.queued) < s.highWater {
		h.signalReady()
	}
	if h.closed && len(h.queued) == 0 {
		h.finishLocked(nil)
	}
	return n
}

// Fail ends the live handle with a device error.
func (s *MemorySink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.finishLocked(fmt.Errorf("%w: %w", ErrDeviceWriteFailed, err))
	}
}

type memoryHandle struct {
	sink   *MemorySink
	format Format

	queued   []PCMBuffer
	closed   bool
	finished bool
	err      error

	ready chan struct{}
	done  chan struct{}
}

func (h *memoryHandle) Write(buf PCMBuffer) (WriteResult, error) {
	s := h.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.finished {
		if h.err != nil {
			return Accepted, h.err
		}
		return Accepted, ErrHandleClosed
	} else if h.closed {
		return Accepted, ErrHandleClosed
	}

	s.writes++
	if s.failAfter > 0 && s.writes > s.failAfter {
		err := fmt.Errorf("%w: injected failure", ErrDeviceWriteFailed)
		h.finishLocked(err)
		return Accepted, err
	}

	s.written = append(s.written, buf)
	h.queued = append(h.queued, buf)
	if s.highWater > 0 && len(h.queued) >= s.highWater {
		return Backpressured, nil
	}
	return Accepted, nil
}

func (h *memoryHandle) Ready() <-chan struct{} { return h.ready }
func (h *memoryHandle) Done() <-chan struct{}  { return h.done }

func (h *memoryHandle) Err() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.err
}

func (h *memoryHandle) Close() error {
	s := h.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.closed || h.finished {
		return nil
	}
	h.closed = true
	if !s.manualDrain || len(h.queued) == 0 {
		h.queued = nil
		h.finishLocked(nil)
	}
	return nil
}

func (h *memoryHandle) signalReady() {
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

func (h *memoryHandle) finishLocked(err error) {
	if h.finished {
		return
	}
	h.finished = true
	h.err = err
	close(h.done)
	if h.sink.active == h {
		h.sink.active = nil
	}
}
