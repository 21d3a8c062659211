// Package feedback turns editor events into audio. An Engine owns a single
// event loop; every event, timer and playback completion is handled on it in
// order, so the detector, the tone session and the arbiter never need locks.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/events"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/movement"
	"github.com/koscakluka/sonicursor/core/speech"
	"github.com/koscakluka/sonicursor/core/tone"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Snapshot after the engine shut down.
var ErrClosed = errors.New("feedback engine closed")

type Engine struct {
	loop     *loop.Loop
	sink     audio.Sink
	format   audio.Format
	library  *earcons.Library
	resolver *earcons.Resolver
	arbiter  *arbiter.Arbiter
	detector *movement.Detector
	tone     *tone.Manager
	narrator tone.Narrator
	state    *state

	synth          speech.Synthesizer
	preload        []string
	libraryOpts    []earcons.Option
	arbiterOpts    []arbiter.Option
	detectorOpts   []movement.Option
	toneOpts       []tone.Option
	narratorOpts   []speech.NarratorOption
	suppressorOpts []arbiter.SuppressorOption
	panColumns     uint32

	closed atomic.Bool
}

func New(sink audio.Sink, opts ...Option) (*Engine, error) {
	e := &Engine{
		sink:    sink,
		format:  audio.GetDefaultFormat(),
		preload: defaultPreload,
		state:   newState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.format.Validate(); err != nil {
		return nil, err
	}

	if e.loop == nil {
		e.loop = loop.New()
	}
	if e.library == nil {
		e.library = earcons.NewLibrary(e.format, e.libraryOpts...)
	}
	e.resolver = earcons.NewResolver()
	if e.panColumns > 0 {
		e.resolver.PanColumns = e.panColumns
	}

	arbiterOpts := append([]arbiter.Option{
		arbiter.WithSuppressor(arbiter.NewSuppressor(e.suppressorOpts...)),
	}, e.arbiterOpts...)
	e.arbiter = arbiter.New(e.loop, e.sink, e.library, arbiterOpts...)
	e.detector = movement.NewDetector(e.detectorOpts...)

	if e.narrator == nil {
		if e.synth != nil {
			narratorOpts := append([]speech.NarratorOption{speech.WithFormat(e.format)}, e.narratorOpts...)
			e.narrator = speech.NewLineNarrator(e.arbiter, e.synth, e.state, narratorOpts...)
		} else {
			e.narrator = silentNarrator{}
		}
	}

	toneOpts := append([]tone.Option{tone.WithFormat(e.format)}, e.toneOpts...)
	e.tone = tone.NewManager(e.loop, e.arbiter, e.narrator, toneOpts...)
	return e, nil
}

// Loop is the loop the engine runs on.
func (e *Engine) Loop() *loop.Loop { return e.loop }

// Handle queues an editor event. It reports false for events the engine does
// not understand and after the engine was closed.
func (e *Engine) Handle(event events.Event) bool {
	if e.closed.Load() {
		return false
	}

	switch ev := event.(type) {
	case events.CursorMoved:
		e.loop.Post(func() { e.cursorMoved(ev) })
	case events.TextChanged:
		e.loop.Post(func() { e.textChanged(ev) })
	case events.EditorSwitched:
		e.loop.Post(func() { e.editorSwitched(ev) })
	case events.DocumentClosed:
		e.loop.Post(func() { e.documentClosed(ev) })
	default:
		logger.Debug("ignoring unknown event", "kind", string(event.Kind()))
		return false
	}
	return true
}

// Run drives the engine until ctx is done. The loop is shut down cleanly
// before Run returns: the tone stops without narration and every request is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "run feedback engine")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.library.Preload(e.preload...); err != nil {
			logger.Warn("failed to preload earcons", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return e.loop.Run(gctx)
	})

	err := g.Wait()
	e.shutdown()

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		err = fmt.Errorf("feedback loop stopped: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Close shuts the engine down. It must run on the loop goroutine or after
// Run returned; with a manual loop it can be called directly.
func (e *Engine) Close() {
	e.shutdown()
}

func (e *Engine) shutdown() {
	if e.closed.Swap(true) {
		return
	}
	e.tone.Reset()
	e.arbiter.Close()
}

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	ActiveURI string
	Tone      tone.State
	Frequency float64
	Audible   int
	Threshold float64
	Samples   int
	Stats     arbiter.Stats
}

// Snapshot collects a Snapshot on the loop. The loop must be running.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	if e.closed.Load() {
		return Snapshot{}, ErrClosed
	}
	result := make(chan Snapshot, 1)
	e.loop.Post(func() { result <- e.snapshot() })
	select {
	case s := <-result:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		ActiveURI: e.state.activeURI,
		Tone:      e.tone.State(),
		Frequency: e.tone.Frequency(),
		Audible:   e.arbiter.Audible(),
		Threshold: e.detector.Threshold(),
		Samples:   e.detector.Len(),
		Stats:     e.arbiter.Stats(),
	}
}

type silentNarrator struct{}

func (silentNarrator) AnnounceLine(uri string, line uint32) {
	logger.Debug("no speech backend, skipping line narration", "uri", uri, "line", line)
}
