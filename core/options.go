package feedback

import (
	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/movement"
	"github.com/koscakluka/sonicursor/core/speech"
	"github.com/koscakluka/sonicursor/core/tone"
)

type Option func(*Engine)

// defaultPreload are the sounds heard while typing and navigating.
var defaultPreload = []string{"char", "space", "tab", "enter", "backspace", "line_end", "undo"}

// WithLoop runs the engine on l instead of a new wall-clock loop. Tests pass
// a manual loop.
func WithLoop(l *loop.Loop) Option {
	return func(e *Engine) { e.loop = l }
}

// WithFormat sets the format every stream is opened with. New rejects
// anything but 16-bit PCM.
func WithFormat(format audio.Format) Option {
	return func(e *Engine) {
		if !format.IsZero() {
			e.format = format
		}
	}
}

// WithLibrary replaces the earcon library. Library options are ignored when
// it is set.
func WithLibrary(library *earcons.Library) Option {
	return func(e *Engine) { e.library = library }
}

func WithLibraryOptions(opts ...earcons.Option) Option {
	return func(e *Engine) { e.libraryOpts = append(e.libraryOpts, opts...) }
}

// WithPreload sets the earcons loaded when Run starts.
func WithPreload(names ...string) Option {
	return func(e *Engine) { e.preload = names }
}

// WithPanColumns sets the column that pans fully right.
func WithPanColumns(columns uint32) Option {
	return func(e *Engine) { e.panColumns = columns }
}

func WithArbiterOptions(opts ...arbiter.Option) Option {
	return func(e *Engine) { e.arbiterOpts = append(e.arbiterOpts, opts...) }
}

func WithSuppressorOptions(opts ...arbiter.SuppressorOption) Option {
	return func(e *Engine) { e.suppressorOpts = append(e.suppressorOpts, opts...) }
}

func WithDetectorOptions(opts ...movement.Option) Option {
	return func(e *Engine) { e.detectorOpts = append(e.detectorOpts, opts...) }
}

func WithToneOptions(opts ...tone.Option) Option {
	return func(e *Engine) { e.toneOpts = append(e.toneOpts, opts...) }
}

// WithSynthesizer narrates lines with synth. It has no effect when a
// narrator is set with WithNarrator.
func WithSynthesizer(synth speech.Synthesizer, opts ...speech.NarratorOption) Option {
	return func(e *Engine) {
		e.synth = synth
		e.narratorOpts = append(e.narratorOpts, opts...)
	}
}

// WithNarrator replaces line narration entirely.
func WithNarrator(narrator tone.Narrator) Option {
	return func(e *Engine) { e.narrator = narrator }
}
