package main

import (
	"fmt"

	"github.com/koscakluka/sonicursor/config"
	feedback "github.com/koscakluka/sonicursor/core"
	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/audio/miniaudio"
	"github.com/koscakluka/sonicursor/core/audio/portaudio"
	"github.com/koscakluka/sonicursor/core/audio/pulse"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/movement"
	"github.com/koscakluka/sonicursor/core/speech"
	"github.com/koscakluka/sonicursor/core/speech/deepgram"
	"github.com/koscakluka/sonicursor/core/tone"
)

func audioFormat(c config.AudioConfig) audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: audio.DefaultBitDepth}
}

// openSink opens the configured output. The returned func releases the
// device.
func openSink(c config.AudioConfig) (audio.Sink, func(), error) {
	switch c.Backend {
	case "miniaudio":
		sink, err := miniaudio.NewSink(miniaudio.WithQueueDuration(c.QueueDuration))
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case "portaudio":
		sink, err := portaudio.NewSink(portaudio.WithQueueDuration(c.QueueDuration))
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case "pulse":
		sink, err := pulse.NewSink(pulse.WithQueueDuration(c.QueueDuration))
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case "none":
		sink := audio.NewNullSink(c.QueueDuration)
		return sink, sink.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown audio backend %q", c.Backend)
	}
}

// newSynthesizer returns nil when speech is disabled.
func newSynthesizer(c config.SpeechConfig) (speech.Synthesizer, error) {
	switch c.Backend {
	case "http":
		return speech.NewClient(c.URL, speech.WithTimeout(c.Timeout)), nil
	case "deepgram":
		var opts []deepgram.Option
		if c.Voice != "" {
			opts = append(opts, deepgram.WithVoice(deepgram.Voice(c.Voice)))
		}
		return deepgram.NewSynthesizer(opts...)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown speech backend %q", c.Backend)
	}
}

func engineOptions(c config.Config) ([]feedback.Option, error) {
	opts := []feedback.Option{
		feedback.WithFormat(audioFormat(c.Audio)),
		feedback.WithLibraryOptions(
			earcons.WithDir(c.Earcons.Dir),
			earcons.WithVolume(c.Earcons.Volume),
			earcons.WithGap(c.Earcons.Gap),
		),
		feedback.WithPreload(c.Earcons.Preload...),
		feedback.WithPanColumns(c.Earcons.PanColumns),
		feedback.WithArbiterOptions(
			arbiter.WithGrace(c.Arbiter.Grace),
			arbiter.WithMaxQueue(c.Arbiter.MaxQueue),
			arbiter.WithBatching(c.Keystroke.BatchIdle, c.Keystroke.BatchMaxItems),
		),
		feedback.WithSuppressorOptions(
			arbiter.WithUndoWindow(c.Suppression.UndoWindow),
			arbiter.WithTypingWindow(c.Suppression.TypingWindow),
			arbiter.WithBulkEditLimits(c.Suppression.MaxChanges, c.Suppression.MaxChangeLength),
		),
		feedback.WithDetectorOptions(
			movement.WithWindow(c.Movement.Window),
			movement.WithThreshold(c.Movement.Threshold),
			movement.WithMinSamples(c.Movement.MinSamples),
			movement.WithIdleTimeouts(c.Movement.IdleKnown, c.Movement.IdleUnknown),
		),
		feedback.WithToneOptions(
			tone.WithVolume(float32(c.Tone.Volume)),
			tone.WithChunk(c.Tone.Chunk),
			tone.WithRelease(c.Tone.Release),
			tone.WithSettle(c.Tone.Settle),
		),
	}

	synth, err := newSynthesizer(c.Speech)
	if err != nil {
		return nil, fmt.Errorf("speech backend: %w", err)
	}
	if synth != nil {
		opts = append(opts, feedback.WithSynthesizer(synth,
			speech.WithVoice(c.Speech.Voice),
			speech.WithSpeed(c.Speech.Speed),
			speech.WithPitch(c.Speech.Pitch),
		))
	}
	return opts, nil
}
