package arbiter

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakePlayable blocks until released or cancelled. A stubborn one ignores
// cancellation.
type fakePlayable struct {
	stubborn bool
	err      error
	panics   bool

	mu       sync.Mutex
	running  bool
	token    *playback.CancelToken
	started  chan struct{}
	release  chan struct{}
	finished chan struct{}
}

func newFake() *fakePlayable {
	return &fakePlayable{
		started:  make(chan struct{}),
		release:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (p *fakePlayable) Play(_ context.Context, token *playback.CancelToken, _ audio.Sink) error {
	p.mu.Lock()
	p.running = true
	p.token = token
	p.mu.Unlock()
	close(p.started)

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(p.finished)
	}()

	if p.panics {
		panic("boom")
	}

	if p.stubborn {
		<-p.release
		return p.err
	}
	select {
	case <-p.release:
	case <-token.Done():
	}
	return p.err
}

func (p *fakePlayable) audible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running && !p.token.Cancelled()
}

func (p *fakePlayable) isStarted() bool {
	select {
	case <-p.started:
		return true
	default:
		return false
	}
}

type renderCall struct {
	refs []earcons.SoundRef
	at   time.Duration
}

type fakeRenderer struct {
	loop  *loop.Loop
	calls []renderCall
}

func (r *fakeRenderer) Render(refs []earcons.SoundRef) playback.Playable {
	r.calls = append(r.calls, renderCall{refs: append([]earcons.SoundRef(nil), refs...), at: r.loop.Now().Sub(epoch)})
	return playback.PlayableFunc(func(context.Context, *playback.CancelToken, audio.Sink) error { return nil })
}

func newTestArbiter(opts ...Option) (*Arbiter, *loop.Loop, *fakeRenderer) {
	l := loop.NewManual(epoch)
	r := &fakeRenderer{loop: l}
	return New(l, audio.NewMemorySink(), r, opts...), l, r
}

func eventually(t *testing.T, l *loop.Loop, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		l.Drain()
		return cond()
	}, time.Second, time.Millisecond)
}

func TestSubmitStartsWhenIdle(t *testing.T) {
	a, l, _ := newTestArbiter()
	p := newFake()

	h := a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Playable: p})
	eventually(t, l, p.isStarted)
	assert.True(t, h.Started())
	assert.Equal(t, 1, a.Audible())

	close(p.release)
	eventually(t, l, func() bool { return h.Result() == Completed })
	_, active := a.Active()
	assert.False(t, active)
}

func TestHigherPriorityPreempts(t *testing.T) {
	a, l, _ := newTestArbiter()
	narration, tone := newFake(), newFake()

	first := a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Playable: narration})
	eventually(t, l, narration.isStarted)

	second := a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: tone})
	assert.Equal(t, playback.Preempted, first.Token().Reason())
	assert.False(t, second.Started())

	eventually(t, l, tone.isStarted)
	assert.Equal(t, Cancelled, first.Result())
	assert.NoError(t, first.Err())
	assert.Equal(t, 1, a.Stats().Preemptions)
	close(tone.release)
}

func TestEqualPriorityPreempts(t *testing.T) {
	a, l, _ := newTestArbiter()
	first, second := newFake(), newFake()

	h := a.Submit(Request{Kind: KindEarcon, Priority: PriorityKeystroke, Playable: first})
	eventually(t, l, first.isStarted)
	a.Submit(Request{Kind: KindEarcon, Priority: PriorityKeystroke, Playable: second})

	eventually(t, l, second.isStarted)
	assert.Equal(t, Cancelled, h.Result())
	close(second.release)
}

func TestLowerPriorityIsDroppedOrQueued(t *testing.T) {
	a, l, _ := newTestArbiter()
	tone, queued, dropped := newFake(), newFake(), newFake()

	a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: tone})
	eventually(t, l, tone.isStarted)

	d := a.Submit(Request{Kind: KindEarcon, Priority: PriorityKeystroke, Playable: dropped})
	q := a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Policy: Queue, Playable: queued})
	assert.Equal(t, Dropped, d.Result())
	assert.Equal(t, Pending, q.Result())
	assert.False(t, tone.token.Cancelled())

	close(tone.release)
	eventually(t, l, queued.isStarted)
	assert.False(t, dropped.isStarted())
	close(queued.release)
	eventually(t, l, func() bool { return q.Result() == Completed })
}

func TestGraceTimeoutForcesRelease(t *testing.T) {
	a, l, _ := newTestArbiter()
	stuck, next := newFake(), newFake()
	stuck.stubborn = true

	h := a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Playable: stuck})
	eventually(t, l, stuck.isStarted)
	a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: next})

	l.Advance(DefaultGrace - time.Millisecond)
	assert.False(t, next.isStarted())

	l.Advance(time.Millisecond)
	assert.Equal(t, Cancelled, h.Result())
	assert.ErrorIs(t, h.Err(), ErrCancellationTimeout)
	assert.Equal(t, 1, a.Stats().GraceTimeouts)
	eventually(t, l, next.isStarted)

	// The late return of the stuck request changes nothing.
	close(stuck.release)
	<-stuck.finished
	l.Drain()
	active, ok := a.Active()
	require.True(t, ok)
	assert.Same(t, next, active.Playable)
	close(next.release)
}

func TestNewerRequestReplacesPendingOne(t *testing.T) {
	a, l, _ := newTestArbiter()
	stuck, waiting, newest := newFake(), newFake(), newFake()
	stuck.stubborn = true

	a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Playable: stuck})
	eventually(t, l, stuck.isStarted)

	w := a.Submit(Request{Kind: KindEarcon, Priority: PriorityCue, Playable: waiting})
	n := a.Submit(Request{Kind: KindEarcon, Priority: PriorityCue, Playable: newest})
	lower := a.Submit(Request{Kind: KindEarcon, Priority: PriorityKeystroke, Playable: newFake()})
	assert.Equal(t, Dropped, w.Result())
	assert.Equal(t, Dropped, lower.Result())

	close(stuck.release)
	eventually(t, l, newest.isStarted)
	assert.False(t, waiting.isStarted())
	assert.Equal(t, Pending, n.Result())
	close(newest.release)
}

func TestCancelKindStopsSpeech(t *testing.T) {
	a, l, _ := newTestArbiter()
	speech, queued := newFake(), newFake()

	h := a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Playable: speech})
	eventually(t, l, speech.isStarted)
	q := a.Submit(Request{Kind: KindSpeech, Priority: PriorityKeystroke, Policy: Queue, Playable: queued})

	a.CancelKind(KindSpeech)
	assert.Equal(t, Cancelled, q.Result())
	assert.Zero(t, a.Audible())

	// A lower priority request may follow right away.
	keys := newFake()
	a.Submit(Request{Kind: KindEarcon, Priority: PriorityKeystroke, Playable: keys})
	eventually(t, l, keys.isStarted)
	assert.Equal(t, Cancelled, h.Result())
	close(keys.release)
}

func TestStopEndsGracefully(t *testing.T) {
	a, l, _ := newTestArbiter()
	p := newFake()

	h := a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: p})
	eventually(t, l, p.isStarted)
	h.Stop()
	assert.Equal(t, playback.Stopped, h.Token().Reason())
	eventually(t, l, func() bool { return h.Result() == Completed })
}

func TestStopWithdrawsQueuedRequest(t *testing.T) {
	a, l, _ := newTestArbiter()
	tone := newFake()
	a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: tone})
	eventually(t, l, tone.isStarted)

	q := a.Submit(Request{Kind: KindSpeech, Priority: PriorityNarration, Policy: Queue, Playable: newFake()})
	q.Stop()
	assert.Equal(t, Cancelled, q.Result())

	var callbacks []Result
	q.OnDone(func(r Result, _ error) { callbacks = append(callbacks, r) })
	assert.Equal(t, []Result{Cancelled}, callbacks)
	close(tone.release)
}

func TestFailuresResolveAsFailed(t *testing.T) {
	a, l, _ := newTestArbiter()
	failing := newFake()
	failing.err = audio.ErrDeviceWriteFailed
	close(failing.release)

	h := a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: failing})
	eventually(t, l, func() bool { return h.Result() == Failed })
	assert.ErrorIs(t, h.Err(), audio.ErrDeviceWriteFailed)

	panicking := newFake()
	panicking.panics = true
	p := a.Submit(Request{Kind: KindEarcon, Priority: PriorityCue, Label: "cue", Playable: panicking})
	eventually(t, l, func() bool { return p.Result() == Failed })
	assert.Contains(t, p.Err().Error(), "cue playback panicked")
}

func TestSingleVoiceInvariant(t *testing.T) {
	a, l, _ := newTestArbiter()
	rng := rand.New(rand.NewSource(7))
	priorities := []uint8{PriorityKeystroke, PriorityNarration, PriorityCue, PriorityTone}

	var playables []*fakePlayable
	audible := func() int {
		n := 0
		for _, p := range playables {
			if p.audible() {
				n++
			}
		}
		return n
	}

	for step := range 200 {
		switch rng.Intn(4) {
		case 0, 1:
			p := newFake()
			p.stubborn = rng.Intn(5) == 0
			playables = append(playables, p)
			policy := Drop
			if rng.Intn(2) == 0 {
				policy = Queue
			}
			a.Submit(Request{Kind: Kind(rng.Intn(3)), Priority: priorities[rng.Intn(len(priorities))], Policy: policy, Playable: p})
		case 2:
			if len(playables) > 0 {
				p := playables[rng.Intn(len(playables))]
				select {
				case <-p.release:
				default:
					close(p.release)
				}
			}
		case 3:
			l.Advance(time.Duration(rng.Intn(80)) * time.Millisecond)
		}

		time.Sleep(100 * time.Microsecond)
		l.Drain()
		require.LessOrEqualf(t, audible(), 1, "step %d", step)
		require.LessOrEqualf(t, a.Audible(), 1, "step %d", step)
	}

	for _, p := range playables {
		select {
		case <-p.release:
		default:
			close(p.release)
		}
	}
}

func TestClosedArbiterDropsRequests(t *testing.T) {
	a, l, _ := newTestArbiter()
	p := newFake()
	h := a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: p})
	eventually(t, l, p.isStarted)

	a.Close()
	eventually(t, l, func() bool { return h.Result() == Cancelled })
	assert.Equal(t, Dropped, a.Submit(Request{Kind: KindTone, Priority: PriorityTone, Playable: newFake()}).Result())
}
