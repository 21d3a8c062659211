package feedback

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/events"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/oscillator"
	"github.com/koscakluka/sonicursor/core/playback"
	"github.com/koscakluka/sonicursor/core/tone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uri = "file:///src/main.go"

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingNarrator struct {
	lines []uint32
}

func (n *recordingNarrator) AnnounceLine(_ string, line uint32) {
	n.lines = append(n.lines, line)
}

type fixture struct {
	engine   *Engine
	loop     *loop.Loop
	sink     *audio.MemorySink
	narrator *recordingNarrator
}

func newFixture(t *testing.T, sinkOpts ...audio.MemorySinkOption) *fixture {
	t.Helper()
	l := loop.NewManual(epoch)
	sink := audio.NewMemorySink(sinkOpts...)
	n := &recordingNarrator{}
	e, err := New(sink, WithLoop(l), WithNarrator(n))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return &fixture{engine: e, loop: l, sink: sink, narrator: n}
}

func (f *fixture) move(t *testing.T, line, character uint32, source events.SelectionKind) {
	t.Helper()
	ev := events.NewCursorMoved(uri, line, character, 100, source).
		WithLineText(fmt.Sprintf("line %d", line))
	require.True(t, f.engine.Handle(ev))
	f.loop.Drain()
}

func (f *fixture) typeText(t *testing.T, line, column uint32, text string) {
	t.Helper()
	at := events.Position{Line: line, Character: column}
	ev := events.NewTextChanged(uri, events.Position{Line: line, Character: column + 1},
		events.Change{Range: events.Range{Start: at, End: at}, Text: text})
	require.True(t, f.engine.Handle(ev))
	f.loop.Drain()
}

func (f *fixture) eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.loop.Drain()
		return cond()
	}, time.Second, time.Millisecond)
}

func TestFastNavigationPlaysToneAndNarratesWhereItStops(t *testing.T) {
	f := newFixture(t, audio.WithHighWater(2))
	f.move(t, 0, 0, events.SelectionKeyboard)

	// Line 0 to 50 in ten jumps within 400 ms.
	for jump := uint32(1); jump <= 10; jump++ {
		f.loop.Advance(40 * time.Millisecond)
		f.move(t, jump*5, 0, events.SelectionKeyboard)

		switch {
		case jump < 3:
			assert.Equal(t, tone.Idle, f.engine.tone.State(), "jump %d", jump)
		case jump == 3:
			assert.True(t, f.engine.tone.Active(), "jump %d", jump)
			assert.InDelta(t, oscillator.FrequencyForLine(15, 100), f.engine.tone.Frequency(), 1e-9)
		default:
			assert.NotEqual(t, tone.Idle, f.engine.tone.State(), "jump %d", jump)
		}
	}
	f.eventually(t, func() bool { return f.engine.tone.State() == tone.Active })
	assert.InDelta(t, oscillator.FrequencyForLine(50, 100), f.engine.tone.Frequency(), 1e-9)
	assert.Equal(t, []uint32{5, 10}, f.narrator.lines)

	f.loop.Advance(80 * time.Millisecond)
	f.eventually(t, func() bool { return f.engine.tone.State() == tone.Idle })
	assert.Equal(t, []uint32{5, 10}, f.narrator.lines)

	f.loop.Advance(tone.DefaultSettle)
	assert.Equal(t, []uint32{5, 10, 50}, f.narrator.lines)
}

func TestSlowNavigationNarratesEachLine(t *testing.T) {
	f := newFixture(t)
	f.move(t, 10, 0, events.SelectionKeyboard)

	f.loop.Advance(time.Second)
	f.move(t, 11, 0, events.SelectionKeyboard)
	f.loop.Advance(time.Second)
	f.move(t, 12, 0, events.SelectionMouse)

	assert.Equal(t, []uint32{11, 12}, f.narrator.lines)
	assert.Equal(t, tone.Idle, f.engine.tone.State())
}

func TestCommandMovesAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.move(t, 0, 0, events.SelectionKeyboard)
	f.move(t, 40, 0, events.SelectionCommand)

	assert.Zero(t, f.engine.detector.Len())
	assert.Empty(t, f.narrator.lines)
	assert.Zero(t, f.engine.arbiter.Stats().Submitted)

	f.loop.Advance(time.Second)
	f.move(t, 41, 0, events.SelectionKeyboard)
	assert.Equal(t, []uint32{41}, f.narrator.lines)
}

func TestSameLineMovePlaysCharacter(t *testing.T) {
	f := newFixture(t)
	f.move(t, 3, 0, events.SelectionKeyboard)
	assert.Zero(t, f.engine.arbiter.Stats().Submitted)

	f.move(t, 3, 2, events.SelectionKeyboard)
	assert.Equal(t, 1, f.engine.arbiter.Stats().Submitted)
	assert.Empty(t, f.narrator.lines)
	f.eventually(t, func() bool { return f.engine.arbiter.Stats().Completed == 1 })
	assert.NotEmpty(t, f.sink.Written())
}

func TestTypingSuppressesNavigationBriefly(t *testing.T) {
	f := newFixture(t)
	f.move(t, 3, 0, events.SelectionKeyboard)

	f.typeText(t, 3, 0, "x")
	f.move(t, 3, 1, events.SelectionKeyboard)
	assert.Zero(t, f.engine.arbiter.Stats().Submitted)

	f.loop.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, f.engine.arbiter.Stats().Flushes)
	assert.Equal(t, 1, f.engine.arbiter.Stats().Submitted)

	f.move(t, 3, 0, events.SelectionKeyboard)
	assert.Equal(t, 2, f.engine.arbiter.Stats().Submitted)
}

func TestKeystrokesFlushInBatches(t *testing.T) {
	f := newFixture(t)
	f.move(t, 0, 0, events.SelectionKeyboard)

	for i, c := range []string{"a", "b", "c"} {
		f.typeText(t, 0, uint32(i), c)
	}
	assert.Equal(t, 1, f.engine.arbiter.Stats().Flushes)

	f.typeText(t, 0, 3, "d")
	f.loop.Advance(arbiter.DefaultBatchIdle)
	assert.Equal(t, 2, f.engine.arbiter.Stats().Flushes)
}

func TestTypingStopsNarration(t *testing.T) {
	f := newFixture(t)
	f.move(t, 0, 0, events.SelectionKeyboard)

	h := f.engine.arbiter.Submit(arbiter.Request{
		Kind:     arbiter.KindSpeech,
		Priority: arbiter.PriorityNarration,
		Playable: playback.PlayableFunc(func(_ context.Context, token *playback.CancelToken, _ audio.Sink) error {
			<-token.Done()
			return nil
		}),
	})

	f.typeText(t, 0, 0, "a")
	f.eventually(t, func() bool { return h.Result() == arbiter.Cancelled })
}

func TestBulkEditPlaysUndoCueOnce(t *testing.T) {
	f := newFixture(t)
	f.move(t, 0, 0, events.SelectionKeyboard)

	undo := events.NewTextChanged(uri, events.Position{Line: 2},
		events.Change{Range: events.Range{Start: events.Position{Line: 2}, End: events.Position{Line: 6}}, RangeLength: 80})
	require.True(t, f.engine.Handle(undo))
	f.loop.Drain()
	assert.Equal(t, 1, f.engine.arbiter.Stats().Submitted)

	f.typeText(t, 2, 0, "a")
	f.loop.Advance(time.Second)
	assert.Equal(t, 1, f.engine.arbiter.Stats().Submitted)
	assert.Equal(t, 1, f.engine.arbiter.Stats().Suppressed)
}

func TestIndentChangePlaysCue(t *testing.T) {
	f := newFixture(t)
	f.move(t, 0, 0, events.SelectionKeyboard)

	at := events.Position{Line: 0}
	ev := events.NewTextChanged(uri, events.Position{Line: 0, Character: 1},
		events.Change{Range: events.Range{Start: at, End: at}, Text: "\t"}).WithIndent(0, 1)
	require.True(t, f.engine.Handle(ev))
	f.loop.Drain()

	assert.Equal(t, 1, f.engine.arbiter.Stats().Submitted)
	assert.Zero(t, f.engine.arbiter.Stats().Flushes)
}

func TestEditorSwitchStopsToneWithoutNarration(t *testing.T) {
	f := newFixture(t, audio.WithHighWater(2))
	f.move(t, 0, 0, events.SelectionKeyboard)
	for jump := uint32(1); jump <= 3; jump++ {
		f.loop.Advance(20 * time.Millisecond)
		f.move(t, jump*10, 0, events.SelectionKeyboard)
	}
	require.True(t, f.engine.tone.Active())

	require.True(t, f.engine.Handle(events.NewEditorSwitched("file:///src/other.go")))
	f.eventually(t, func() bool { return f.engine.tone.State() == tone.Idle })
	assert.Zero(t, f.engine.detector.Len())

	f.loop.Advance(time.Second)
	assert.Equal(t, []uint32{10, 20}, f.narrator.lines)
	assert.Equal(t, "file:///src/other.go", f.engine.snapshot().ActiveURI)
}

func TestDocumentClosedForgetsDocument(t *testing.T) {
	f := newFixture(t)
	f.move(t, 5, 0, events.SelectionKeyboard)
	f.loop.Advance(time.Second)
	f.move(t, 6, 0, events.SelectionKeyboard)

	text, ok := f.engine.state.LineText(uri, 6)
	require.True(t, ok)
	assert.Equal(t, "line 6", text)

	require.True(t, f.engine.Handle(events.NewDocumentClosed(uri)))
	f.loop.Drain()
	_, ok = f.engine.state.LineText(uri, 6)
	assert.False(t, ok)

	f.loop.Advance(time.Second)
	f.move(t, 7, 0, events.SelectionKeyboard)
	assert.Equal(t, []uint32{6}, f.narrator.lines)
}

type unknownEvent struct{ events.Base }

func TestHandleRejectsUnknownAndLateEvents(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.engine.Handle(unknownEvent{events.NewBase("editor.unknown")}))

	f.engine.Close()
	assert.False(t, f.engine.Handle(events.NewEditorSwitched(uri)))
}

func TestRunStopsCleanly(t *testing.T) {
	e, err := New(audio.NewMemorySink(), WithPreload("char"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.True(t, e.Handle(events.NewCursorMoved(uri, 1, 0, 10, events.SelectionKeyboard)))
	snapshot, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uri, snapshot.ActiveURI)
	assert.Equal(t, tone.Idle, snapshot.Tone)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, e.Handle(events.NewEditorSwitched(uri)))

	_, err = e.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewRejectsUnsupportedFormat(t *testing.T) {
	_, err := New(audio.NewMemorySink(), WithFormat(audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 24}))
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}
