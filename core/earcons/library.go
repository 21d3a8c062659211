// Package earcons provides the short non-speech cues played for keystrokes,
// navigation and edits. Sounds are loaded from WAV or FLAC files when present
// and synthesized otherwise.
package earcons

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/flac"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/playback"
)

const (
	defaultChunk = 20 * time.Millisecond
	defaultGap   = 15 * time.Millisecond

	resampleQuality = 4
)

var ErrUnknownFormat = errors.New("unknown earcon file format")

// Library loads, caches and plays earcons.
type Library struct {
	dir    string
	format audio.Format
	volume float64
	chunk  time.Duration
	gap    time.Duration

	mu    sync.Mutex
	cache map[string]*beep.Buffer
}

type Option func(*Library)

// WithDir makes the library look for <name>.wav and <name>.flac in dir
// before falling back to a synthesized sound.
func WithDir(dir string) Option {
	return func(l *Library) { l.dir = dir }
}

// WithVolume scales every earcon, 1 leaves them unchanged.
func WithVolume(volume float64) Option {
	return func(l *Library) { l.volume = max(volume, 0) }
}

// WithChunk sets the size of the buffers written to the sink.
func WithChunk(d time.Duration) Option {
	return func(l *Library) {
		if d > 0 {
			l.chunk = d
		}
	}
}

// WithGap sets the silence between the sounds of one sequence.
func WithGap(d time.Duration) Option {
	return func(l *Library) { l.gap = max(d, 0) }
}

func NewLibrary(format audio.Format, opts ...Option) *Library {
	l := &Library{
		format: format,
		volume: 1,
		chunk:  defaultChunk,
		gap:    defaultGap,
		cache:  make(map[string]*beep.Buffer),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Library) Format() audio.Format { return l.format }

func (l *Library) beepFormat() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(l.format.SampleRate),
		NumChannels: 2,
		Precision:   2,
	}
}

// Load returns the decoded sound for name, reading or synthesizing it on
// first use.
func (l *Library) Load(name string) (*beep.Buffer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if buf, ok := l.cache[name]; ok {
		return buf, nil
	}

	buf, err := l.loadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		buf, err = l.synthesize(name)
	}
	if err != nil {
		return nil, fmt.Errorf("load earcon %q: %w", name, err)
	}

	l.cache[name] = buf
	return buf, nil
}

// Preload loads every named sound up front.
func (l *Library) Preload(names ...string) error {
	var errs []error
	for _, name := range names {
		if _, err := l.Load(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Library) loadFile(name string) (*beep.Buffer, error) {
	if l.dir == "" {
		return nil, fs.ErrNotExist
	}

	for _, ext := range []string{".wav", ".flac"} {
		path := filepath.Join(l.dir, name+ext)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		buf, err := l.decode(f, ext)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return buf, nil
	}
	return nil, fs.ErrNotExist
}

func (l *Library) decode(f *os.File, ext string) (*beep.Buffer, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch ext {
	case ".wav":
		streamer, format, err = playback.DecodeWAV(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	buf := beep.NewBuffer(l.beepFormat())
	target := beep.SampleRate(l.format.SampleRate)
	if format.SampleRate != target {
		buf.Append(beep.Resample(resampleQuality, format.SampleRate, target, streamer))
	} else {
		buf.Append(streamer)
	}
	if err := streamer.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (l *Library) synthesize(name string) (*beep.Buffer, error) {
	streamer, err := synthTick(name).streamer(beep.SampleRate(l.format.SampleRate))
	if err != nil {
		return nil, err
	}
	buf := beep.NewBuffer(l.beepFormat())
	buf.Append(streamer)
	return buf, nil
}

// Streamer returns a fresh streamer for ref, panned and scaled.
func (l *Library) Streamer(ref SoundRef) (beep.Streamer, error) {
	buf, err := l.Load(ref.Name)
	if err != nil {
		return nil, err
	}

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if ref.Pan != 0 {
		s = &effects.Pan{Streamer: s, Pan: clampPan(ref.Pan)}
	}
	if l.volume != 1 {
		s = gain(s, l.volume)
	}
	return s, nil
}

func gain(s beep.Streamer, g float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := s.Stream(samples)
		for i := range samples[:n] {
			samples[i][0] *= g
			samples[i][1] *= g
		}
		return n, ok
	})
}

func clampPan(p float64) float64 {
	return max(-1, min(1, p))
}

// Render returns a playable that plays refs in order as one stream.
func (l *Library) Render(refs []SoundRef) playback.Playable {
	refs = append([]SoundRef(nil), refs...)
	return playback.PlayableFunc(func(ctx context.Context, token *playback.CancelToken, sink audio.Sink) error {
		src, err := l.Source(refs)
		if err != nil {
			return err
		}
		return playback.Play(ctx, token, sink, l.format, src)
	})
}

// Source renders refs into one PCM source. Sounds that fail to load are
// skipped and logged.
func (l *Library) Source(refs []SoundRef) (playback.Source, error) {
	rate := beep.SampleRate(l.format.SampleRate)
	parts := make([]beep.Streamer, 0, len(refs)*2)
	for _, ref := range refs {
		s, err := l.Streamer(ref)
		if err != nil {
			logger.Warn("skipping earcon", "earcon", ref.Name, "error", err)
			continue
		}
		if len(parts) > 0 && l.gap > 0 {
			parts = append(parts, beep.Silence(rate.N(l.gap)))
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no playable earcons in %v", refs)
	}
	return playback.NewStreamerSource(beep.Seq(parts...), l.format, l.chunk), nil
}
