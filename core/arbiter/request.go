package arbiter

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/koscakluka/sonicursor/core/playback"
)

type Kind int

const (
	KindTone Kind = iota
	KindEarcon
	KindSpeech
)

func (k Kind) String() string {
	switch k {
	case KindTone:
		return "tone"
	case KindEarcon:
		return "earcon"
	case KindSpeech:
		return "speech"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Default priorities. A request preempts the one playing when its priority
// is greater than or equal to it.
const (
	PriorityKeystroke  uint8 = 20
	PriorityNavigation uint8 = 20
	PriorityNarration  uint8 = 30
	PriorityCue        uint8 = 35
	PriorityTone       uint8 = 40
)

// Policy decides what happens to a request that loses to the one playing.
type Policy int

const (
	Drop Policy = iota
	// Queue keeps the request and plays it once the device is free.
	Queue
)

type Request struct {
	Kind     Kind
	Priority uint8
	Policy   Policy
	// Label names the request in logs and spans.
	Label    string
	Playable playback.Playable
}

type Result int

const (
	Pending Result = iota
	Completed
	Cancelled
	Dropped
	Failed
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Dropped:
		return "dropped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Handle tracks one submitted request. Done, Result and Err are safe from any
// goroutine; everything else belongs to the loop the arbiter runs on.
type Handle struct {
	ID uuid.UUID
	Request

	arbiter *Arbiter
	token   *playback.CancelToken
	started bool
	queued  bool

	result Result
	err    error
	done   chan struct{}
	onDone []func(Result, error)
}

func newHandle(a *Arbiter, req Request) *Handle {
	if req.Label == "" {
		req.Label = req.Kind.String()
	}
	return &Handle{
		ID:      uuid.New(),
		Request: req,
		arbiter: a,
		token:   playback.NewCancelToken(),
		done:    make(chan struct{}),
	}
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Result is Pending until Done is closed.
func (h *Handle) Result() Result {
	select {
	case <-h.done:
		return h.result
	default:
		return Pending
	}
}

func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Started reports whether the playable was handed the device.
func (h *Handle) Started() bool { return h.started }

// Token is the cancellation token handed to the playable.
func (h *Handle) Token() *playback.CancelToken { return h.token }

// OnDone registers fn to run on the loop once the request resolves. If it
// already has, fn runs right away.
func (h *Handle) OnDone(fn func(Result, error)) {
	select {
	case <-h.done:
		fn(h.result, h.err)
	default:
		h.onDone = append(h.onDone, fn)
	}
}

// Stop asks the request to end gracefully. A request that has not started
// yet is withdrawn.
func (h *Handle) Stop() {
	select {
	case <-h.done:
		return
	default:
	}

	if !h.started {
		h.arbiter.withdraw(h)
		return
	}
	h.token.Cancel(playback.Stopped)
}

func (h *Handle) resolve(result Result, err error) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	h.result = result
	h.err = err
	close(h.done)
	for _, fn := range h.onDone {
		fn(result, err)
	}
	h.onDone = nil
	return true
}
