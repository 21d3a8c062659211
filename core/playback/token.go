package playback

import (
	"context"
	"sync"
)

// Reason tells a playable why its token was cancelled.
type Reason int

const (
	NotCancelled Reason = iota
	// Stopped asks the playable to wind down gracefully. It may write a
	// release tail and wait for the stream to finish.
	Stopped
	// Preempted means another request owns the device now. Nothing more may
	// be written.
	Preempted
)

func (r Reason) String() string {
	switch r {
	case NotCancelled:
		return "not cancelled"
	case Stopped:
		return "stopped"
	case Preempted:
		return "preempted"
	default:
		return "unknown"
	}
}

// CancelToken is a cooperatively checked cancellation flag shared between
// the arbiter and a playing request. Cancel blocks until any write running
// under Guard has returned, so once it returns no further guarded write can
// reach the sink.
type CancelToken struct {
	mu     sync.RWMutex
	reason Reason
	done   chan struct{}
}

func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Only the first call sets the reason; it
// reports whether this call was the one that cancelled.
func (t *CancelToken) Cancel(reason Reason) bool {
	if reason == NotCancelled {
		reason = Stopped
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reason != NotCancelled {
		return false
	}
	t.reason = reason
	close(t.done)
	return true
}

func (t *CancelToken) Cancelled() bool {
	return t.Reason() != NotCancelled
}

func (t *CancelToken) Reason() Reason {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reason
}

// Done is closed on cancellation.
func (t *CancelToken) Done() <-chan struct{} { return t.done }

// Guard runs fn unless the token is already cancelled. Cancel waits for a
// running fn to return.
func (t *CancelToken) Guard(fn func()) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.reason != NotCancelled {
		return false
	}
	fn()
	return true
}

// Context derives a context that is cancelled together with the token.
func (t *CancelToken) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
