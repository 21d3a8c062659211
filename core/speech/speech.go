// Package speech narrates lines through a text-to-speech backend. Every
// utterance is an arbiter request, so narration follows the same priority
// and cancellation rules as the rest of the audio.
package speech

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/playback"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultVoice = "default"
	DefaultSpeed = 1.0
	DefaultPitch = 1.0
	DefaultChunk = 20 * time.Millisecond
)

// ErrEmptyText is returned when there is nothing to say.
var ErrEmptyText = errors.New("empty text")

// Request describes one utterance.
type Request struct {
	Text   string
	Voice  string
	Speed  float64
	Pitch  float64
	Format audio.Format
}

// Synthesizer turns text into PCM in the requested format. The returned
// source may still be receiving audio while it is played; it stops once ctx
// is cancelled. Sources that hold a connection implement io.Closer.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (playback.Source, error)
}

// Utterance is the playable for one piece of text.
type Utterance struct {
	synth Synthesizer
	req   Request
}

func NewUtterance(synth Synthesizer, req Request) *Utterance {
	return &Utterance{synth: synth, req: req}
}

func (u *Utterance) Text() string { return u.req.Text }

func (u *Utterance) Play(ctx context.Context, token *playback.CancelToken, sink audio.Sink) (err error) {
	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()
	span.SetAttributes(
		attribute.String("speech.voice", u.req.Voice),
		attribute.Int("speech.text_length", len(u.req.Text)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if strings.TrimSpace(u.req.Text) == "" {
		return ErrEmptyText
	}

	synthCtx, cancel := token.Context(ctx)
	defer cancel()

	src, err := u.synth.Synthesize(synthCtx, u.req)
	if err != nil {
		if token.Cancelled() {
			return nil
		}
		return err
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	return playback.Play(ctx, token, sink, u.req.Format, src)
}

// Submitter is the part of the arbiter a narrator needs.
type Submitter interface {
	Submit(req arbiter.Request) *arbiter.Handle
}

// LineSource looks up the text of a document line.
type LineSource interface {
	LineText(uri string, line uint32) (string, bool)
}

// LineNarrator speaks whole lines at narration priority.
type LineNarrator struct {
	submitter Submitter
	synth     Synthesizer
	lines     LineSource

	voice  string
	speed  float64
	pitch  float64
	format audio.Format
}

type NarratorOption func(*LineNarrator)

func WithVoice(voice string) NarratorOption {
	return func(n *LineNarrator) {
		if voice != "" {
			n.voice = voice
		}
	}
}

func WithSpeed(speed float64) NarratorOption {
	return func(n *LineNarrator) {
		if speed > 0 {
			n.speed = speed
		}
	}
}

func WithPitch(pitch float64) NarratorOption {
	return func(n *LineNarrator) {
		if pitch > 0 {
			n.pitch = pitch
		}
	}
}

func WithFormat(format audio.Format) NarratorOption {
	return func(n *LineNarrator) { n.format = format }
}

func NewLineNarrator(submitter Submitter, synth Synthesizer, lines LineSource, opts ...NarratorOption) *LineNarrator {
	n := &LineNarrator{
		submitter: submitter,
		synth:     synth,
		lines:     lines,
		voice:     DefaultVoice,
		speed:     DefaultSpeed,
		pitch:     DefaultPitch,
		format:    audio.GetDefaultFormat(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AnnounceLine narrates a line. Lines the narrator has no text for are
// announced by number.
func (n *LineNarrator) AnnounceLine(uri string, line uint32) {
	text, ok := n.lines.LineText(uri, line)
	if !ok {
		logger.Debug("no text known for line", "uri", uri, "line", line)
	}
	n.Say(LineText(text, line, ok))
}

// Say narrates arbitrary text.
func (n *LineNarrator) Say(text string) *arbiter.Handle {
	return n.submitter.Submit(arbiter.Request{
		Kind:     arbiter.KindSpeech,
		Priority: arbiter.PriorityNarration,
		Label:    "narrate line",
		Playable: NewUtterance(n.synth, Request{
			Text:   text,
			Voice:  n.voice,
			Speed:  n.speed,
			Pitch:  n.pitch,
			Format: n.format,
		}),
	})
}
