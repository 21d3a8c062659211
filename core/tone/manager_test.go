package tone

import (
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/movement"
	"github.com/koscakluka/sonicursor/core/oscillator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uri = "file:///src/main.go"

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	fast = movement.Decision{Fast: true, Speed: 20, SpeedKnown: true, IdleAfter: 75 * time.Millisecond}
	slow = movement.Decision{Speed: 1, SpeedKnown: true, IdleAfter: 75 * time.Millisecond}
)

type announcement struct {
	uri  string
	line uint32
}

type recordingNarrator struct {
	calls []announcement
}

func (n *recordingNarrator) AnnounceLine(uri string, line uint32) {
	n.calls = append(n.calls, announcement{uri: uri, line: line})
}

type fixture struct {
	loop     *loop.Loop
	sink     *audio.MemorySink
	arbiter  *arbiter.Arbiter
	narrator *recordingNarrator
	manager  *Manager
}

func newFixture(sinkOpts ...audio.MemorySinkOption) *fixture {
	l := loop.NewManual(epoch)
	sink := audio.NewMemorySink(append([]audio.MemorySinkOption{audio.WithHighWater(2)}, sinkOpts...)...)
	a := arbiter.New(l, sink, nil)
	n := &recordingNarrator{}
	return &fixture{
		loop:     l,
		sink:     sink,
		arbiter:  a,
		narrator: n,
		manager:  NewManager(l, a, n),
	}
}

func (f *fixture) eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.loop.Drain()
		return cond()
	}, time.Second, time.Millisecond)
}

func (f *fixture) startTone(t *testing.T, line uint32) {
	t.Helper()
	require.True(t, f.manager.Observe(uri, line, 100, fast))
	f.eventually(t, func() bool { return f.manager.State() == Active })
}

func TestSlowMovementIsNotClaimedWhenIdle(t *testing.T) {
	f := newFixture()

	assert.False(t, f.manager.Observe(uri, 3, 100, slow))
	assert.Equal(t, Idle, f.manager.State())
	assert.Empty(t, f.sink.Opens())
}

func TestToneFollowsCursorLine(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)

	assert.Equal(t, epoch, f.manager.StartedAt())
	assert.InDelta(t, oscillator.FrequencyForLine(10, 100), f.manager.Frequency(), 1e-9)

	require.True(t, f.manager.Observe(uri, 60, 100, fast))
	assert.InDelta(t, oscillator.FrequencyForLine(60, 100), f.manager.Frequency(), 1e-9)
	assert.NotEmpty(t, f.sink.Written())
}

func TestIdleStopNarratesOnce(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)
	f.manager.Observe(uri, 20, 100, fast)

	f.loop.Advance(74 * time.Millisecond)
	assert.Equal(t, Active, f.manager.State())

	f.loop.Advance(time.Millisecond)
	assert.NotEqual(t, Active, f.manager.State())
	f.eventually(t, func() bool { return f.manager.State() == Idle })
	assert.Empty(t, f.narrator.calls)

	f.loop.Advance(DefaultSettle - time.Millisecond)
	assert.Empty(t, f.narrator.calls)

	f.loop.Advance(time.Millisecond)
	assert.Equal(t, []announcement{{uri: uri, line: 20}}, f.narrator.calls)

	f.loop.Advance(time.Second)
	assert.Len(t, f.narrator.calls, 1)
}

func TestSlowDownTimerIsNotRearmed(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)

	f.loop.Advance(10 * time.Millisecond)
	f.manager.Observe(uri, 11, 100, slow)
	f.loop.Advance(50 * time.Millisecond)
	f.manager.Observe(uri, 12, 100, slow)

	f.loop.Advance(24 * time.Millisecond)
	assert.Equal(t, Active, f.manager.State())

	f.loop.Advance(time.Millisecond)
	assert.NotEqual(t, Active, f.manager.State())
	f.eventually(t, func() bool { return f.manager.State() == Idle })

	f.loop.Advance(DefaultSettle)
	assert.Equal(t, []announcement{{uri: uri, line: 12}}, f.narrator.calls)
}

func TestFastMovementCancelsSlowDown(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)

	f.manager.Observe(uri, 11, 100, slow)
	f.loop.Advance(50 * time.Millisecond)
	f.manager.Observe(uri, 14, 100, fast)

	f.loop.Advance(50 * time.Millisecond)
	assert.Equal(t, Active, f.manager.State())
}

func TestSinkFailureEndsSessionWithoutNarration(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)

	f.sink.Fail(errors.New("device unplugged"))
	f.eventually(t, func() bool { return f.manager.State() == Idle })

	f.loop.Advance(time.Second)
	assert.Empty(t, f.narrator.calls)
	assert.Zero(t, f.manager.Frequency())
}

func TestUnavailableDeviceEndsSession(t *testing.T) {
	f := newFixture(audio.WithOpenError(errors.New("no device")))

	require.True(t, f.manager.Observe(uri, 10, 100, fast))
	f.eventually(t, func() bool { return f.manager.State() == Idle })

	f.loop.Advance(time.Second)
	assert.Empty(t, f.narrator.calls)
}

func TestEditorSwitchStopsWithoutNarration(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)

	f.manager.Reset()
	assert.NotEqual(t, Active, f.manager.State())
	f.eventually(t, func() bool { return f.manager.State() == Idle })

	f.loop.Advance(time.Second)
	assert.Empty(t, f.narrator.calls)
}

func TestMovementDuringSettleCancelsNarration(t *testing.T) {
	f := newFixture()
	f.startTone(t, 10)

	f.loop.Advance(75 * time.Millisecond)
	f.eventually(t, func() bool { return f.manager.State() == Idle })

	f.loop.Advance(100 * time.Millisecond)
	assert.False(t, f.manager.Observe(uri, 11, 100, slow))

	f.loop.Advance(time.Second)
	assert.Empty(t, f.narrator.calls)
}

func TestFastMovementWhileStoppingRestarts(t *testing.T) {
	f := newFixture(audio.WithManualDrain())
	f.startTone(t, 10)

	f.loop.Advance(75 * time.Millisecond)
	require.Equal(t, Stopping, f.manager.State())

	// Two buffers plus the release tail.
	f.eventually(t, func() bool { return len(f.sink.Written()) == 3 })
	assert.True(t, f.manager.Observe(uri, 40, 100, fast))
	assert.Equal(t, Stopping, f.manager.State())

	f.sink.Consume(10)
	f.eventually(t, func() bool {
		return len(f.sink.Opens()) == 2 && f.manager.State() == Active
	})
	assert.InDelta(t, oscillator.FrequencyForLine(40, 100), f.manager.Frequency(), 1e-9)

	f.loop.Advance(time.Second)
	assert.Empty(t, f.narrator.calls)
}
