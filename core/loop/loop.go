// Package loop is a single-consumer event loop. Work posted from any
// goroutine and timers created on the loop all run one at a time on the
// goroutine that drives it, so state touched only from loop callbacks needs
// no locking.
package loop

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

type Loop struct {
	mu     sync.Mutex
	queue  []func()
	timers timerHeap
	seq    uint64

	wake chan struct{}

	virtual bool
	now     time.Time
	running bool
}

// New returns a loop that runs on the wall clock. It does nothing until Run.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// NewManual returns a loop on a virtual clock starting at start. Time only
// moves through Advance and work only runs inside Drain and Advance.
func NewManual(start time.Time) *Loop {
	return &Loop{wake: make(chan struct{}, 1), virtual: true, now: start}
}

func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nowLocked()
}

func (l *Loop) nowLocked() time.Time {
	if l.virtual {
		return l.now
	}
	return time.Now()
}

// Post queues fn to run on the loop. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// AfterFunc schedules fn to run on the loop once d has passed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{loop: l, fn: fn, index: -1}
	l.mu.Lock()
	l.scheduleLocked(t, d)
	l.mu.Unlock()
	l.signal()
	return t
}

func (l *Loop) scheduleLocked(t *Timer, d time.Duration) {
	l.seq++
	t.when = l.nowLocked().Add(max(d, 0))
	t.seq = l.seq
	if t.index >= 0 {
		heap.Fix(&l.timers, t.index)
		return
	}
	heap.Push(&l.timers, t)
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives a wall-clock loop until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.virtual {
		l.mu.Unlock()
		return fmt.Errorf("loop: Run called on a manual loop")
	} else if l.running {
		l.mu.Unlock()
		return fmt.Errorf("loop: already running")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	var timer *time.Timer
	for {
		l.runReady()

		var timerC <-chan time.Time
		if wait, ok := l.nextDeadline(); ok {
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-l.wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (l *Loop) nextDeadline() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 {
		return 0, false
	}
	return max(l.timers[0].when.Sub(l.nowLocked()), 0), true
}

// runReady runs queued work and due timers until there is none left, and
// returns how many callbacks ran.
func (l *Loop) runReady() int {
	ran := 0
	for {
		fn := l.popReady()
		if fn == nil {
			return ran
		}
		fn()
		ran++
	}
}

func (l *Loop) popReady() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) > 0 {
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		return fn
	}

	if len(l.timers) > 0 && !l.timers[0].when.After(l.nowLocked()) {
		t := heap.Pop(&l.timers).(*Timer)
		return t.fn
	}
	return nil
}

// Drain runs everything that is ready on a manual loop without moving the
// clock, and returns how many callbacks ran.
func (l *Loop) Drain() int {
	return l.runReady()
}

// Advance moves a manual loop's clock forward by d, firing timers in
// deadline order and draining posted work after each one.
func (l *Loop) Advance(d time.Duration) {
	l.mu.Lock()
	target := l.now.Add(d)
	l.mu.Unlock()

	for {
		l.runReady()

		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(target) {
			l.now = target
			l.mu.Unlock()
			break
		}
		if next := l.timers[0].when; next.After(l.now) {
			l.now = next
		}
		l.mu.Unlock()
	}
	l.runReady()
}

// Timer is a callback scheduled on a loop.
type Timer struct {
	loop  *Loop
	fn    func()
	when  time.Time
	seq   uint64
	index int
}

// Stop unschedules the timer. It reports whether the timer was pending.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&l.timers, t.index)
	return true
}

// Reset reschedules the timer to fire d from now, whether or not it already
// fired.
func (t *Timer) Reset(d time.Duration) {
	l := t.loop
	l.mu.Lock()
	l.scheduleLocked(t, d)
	l.mu.Unlock()
	l.signal()
}

func (t *Timer) Pending() bool {
	if t == nil {
		return false
	}
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return t.index >= 0
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
