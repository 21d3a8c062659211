// Package arbiter routes every audio request through a single owner of the
// output device. At most one request plays at a time; a new request of equal
// or higher priority cancels the one playing, waits briefly for it to let go
// of the device and then starts.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/playback"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrCancellationTimeout is reported when a cancelled request did not stop
// within the grace period and its device was released anyway.
var ErrCancellationTimeout = errors.New("cancellation grace period expired")

const (
	DefaultGrace         = 60 * time.Millisecond
	DefaultMaxQueue      = 8
	DefaultBatchIdle     = 35 * time.Millisecond
	DefaultBatchMaxItems = 3
)

// Renderer turns resolved sound references into something playable.
type Renderer interface {
	Render(refs []earcons.SoundRef) playback.Playable
}

// Arbiter is not safe for concurrent use. Every method must be called from
// the goroutine driving its loop; playables run on their own goroutines and
// report back through the loop.
type Arbiter struct {
	loop     *loop.Loop
	sink     audio.Sink
	renderer Renderer

	ctx    context.Context
	cancel context.CancelFunc

	grace         time.Duration
	maxQueue      int
	batchIdle     time.Duration
	batchMaxItems int

	active     *Handle
	pending    *Handle
	queue      []*Handle
	graceTimer *loop.Timer

	batches    map[string]*batch
	suppressor *Suppressor

	stats Stats
}

type Option func(*Arbiter)

// WithGrace sets how long a cancelled request may keep the device.
func WithGrace(d time.Duration) Option {
	return func(a *Arbiter) {
		if d > 0 {
			a.grace = d
		}
	}
}

func WithMaxQueue(n int) Option {
	return func(a *Arbiter) { a.maxQueue = max(n, 0) }
}

// WithBatching sets the idle gap and the size at which keystroke batches
// flush.
func WithBatching(idle time.Duration, maxItems int) Option {
	return func(a *Arbiter) {
		if idle > 0 {
			a.batchIdle = idle
		}
		if maxItems > 0 {
			a.batchMaxItems = maxItems
		}
	}
}

func WithSuppressor(s *Suppressor) Option {
	return func(a *Arbiter) { a.suppressor = s }
}

func New(l *loop.Loop, sink audio.Sink, renderer Renderer, opts ...Option) *Arbiter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Arbiter{
		loop:          l,
		sink:          sink,
		renderer:      renderer,
		ctx:           ctx,
		cancel:        cancel,
		grace:         DefaultGrace,
		maxQueue:      DefaultMaxQueue,
		batchIdle:     DefaultBatchIdle,
		batchMaxItems: DefaultBatchMaxItems,
		batches:       make(map[string]*batch),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.suppressor == nil {
		a.suppressor = NewSuppressor()
	}
	return a
}

// Submit hands a request to the arbiter. The returned handle resolves once
// the request finished playing, was cancelled, dropped or failed.
func (a *Arbiter) Submit(req Request) *Handle {
	h := newHandle(a, req)
	a.stats.Submitted++

	if a.ctx.Err() != nil {
		a.resolve(h, Dropped, nil)
		return h
	}

	current := a.current()
	switch {
	case current == nil && a.active == nil:
		a.start(h)
	case current == nil:
		// The playing request is already cancelled; wait for it to let go.
		a.pending = h
	case h.Priority >= current.Priority:
		if a.pending != nil {
			a.resolve(a.pending, Dropped, nil)
			a.pending = h
			return h
		}
		a.pending = h
		a.stats.Preemptions++
		a.cancelActive()
	case h.Policy == Queue && len(a.queue) < a.maxQueue:
		h.queued = true
		a.queue = append(a.queue, h)
	default:
		a.resolve(h, Dropped, nil)
	}
	return h
}

// current is the request new submissions are compared against: the one
// waiting to take over the device, or else the one playing unless it is
// already on its way out.
func (a *Arbiter) current() *Handle {
	if a.pending != nil {
		return a.pending
	}
	if a.active != nil && !a.active.token.Cancelled() {
		return a.active
	}
	return nil
}

// Active returns the request holding the device, if any.
func (a *Arbiter) Active() (*Handle, bool) {
	return a.active, a.active != nil
}

// Audible counts requests that hold the device and have not been cancelled.
// It never exceeds one.
func (a *Arbiter) Audible() int {
	if a.active != nil && !a.active.token.Cancelled() {
		return 1
	}
	return 0
}

// CancelKind cancels the playing and the waiting requests of kind.
func (a *Arbiter) CancelKind(kind Kind) {
	if a.pending != nil && a.pending.Kind == kind {
		a.resolve(a.pending, Cancelled, nil)
		a.pending = nil
	}

	kept := a.queue[:0]
	for _, h := range a.queue {
		if h.Kind == kind {
			a.resolve(h, Cancelled, nil)
			continue
		}
		kept = append(kept, h)
	}
	clear(a.queue[len(kept):])
	a.queue = kept

	if a.active != nil && a.active.Kind == kind && !a.active.token.Cancelled() {
		a.cancelActive()
	}
}

func (a *Arbiter) Stats() Stats { return a.stats }

// Close cancels everything and refuses further requests.
func (a *Arbiter) Close() {
	for _, b := range a.batches {
		b.timer.Stop()
	}
	clear(a.batches)

	if a.pending != nil {
		a.resolve(a.pending, Cancelled, nil)
		a.pending = nil
	}
	for _, h := range a.queue {
		a.resolve(h, Cancelled, nil)
	}
	a.queue = nil

	if a.active != nil {
		a.active.token.Cancel(playback.Preempted)
	}
	a.cancel()
}

func (a *Arbiter) cancelActive() {
	h := a.active
	h.token.Cancel(playback.Preempted)
	a.graceTimer.Stop()
	a.graceTimer = a.loop.AfterFunc(a.grace, func() { a.graceExpired(h) })
}

func (a *Arbiter) graceExpired(h *Handle) {
	if a.active != h {
		return
	}

	a.stats.GraceTimeouts++
	err := fmt.Errorf("%w: %s request %s held the device for more than %s",
		ErrCancellationTimeout, h.Kind, h.ID, a.grace)
	logger.Warn("forcing release of the audio device", "request", h.ID.String(), "label", h.Label, "error", err)

	a.active = nil
	a.resolve(h, Cancelled, err)
	a.next()
}

func (a *Arbiter) start(h *Handle) {
	a.active = h
	h.started = true
	h.queued = false
	a.stats.Started++

	run := panicSafePlayback(h.Label, func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "play request", trace.WithAttributes(
			attribute.String("request.id", h.ID.String()),
			attribute.String("request.kind", h.Kind.String()),
			attribute.Int("request.priority", int(h.Priority)),
		))
		defer span.End()

		err := h.Playable.Play(ctx, h.token, a.sink)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})

	ctx := a.ctx
	go func() {
		err := run(ctx)
		a.loop.Post(func() { a.returned(h, err) })
	}()
}

func (a *Arbiter) returned(h *Handle, err error) {
	if a.active != h {
		// Already released after the grace period.
		return
	}
	a.active = nil
	a.graceTimer.Stop()
	a.graceTimer = nil

	switch reason := h.token.Reason(); {
	case reason == playback.Preempted:
		a.resolve(h, Cancelled, nil)
	case err != nil:
		logger.Warn("audio request failed", "request", h.ID.String(), "label", h.Label, "error", err)
		a.resolve(h, Failed, err)
	default:
		a.resolve(h, Completed, nil)
	}
	a.next()
}

func (a *Arbiter) next() {
	if a.active != nil {
		return
	}
	if a.pending != nil {
		h := a.pending
		a.pending = nil
		a.start(h)
		return
	}
	if len(a.queue) > 0 && a.ctx.Err() == nil {
		h := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.start(h)
	}
}

func (a *Arbiter) withdraw(h *Handle) {
	if a.pending == h {
		a.pending = nil
	}
	for i, queued := range a.queue {
		if queued == h {
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			break
		}
	}
	a.resolve(h, Cancelled, nil)
}

func (a *Arbiter) resolve(h *Handle, result Result, err error) {
	if !h.resolve(result, err) {
		return
	}
	a.stats.record(result)
	recordResult(a.ctx, h, result)
}
