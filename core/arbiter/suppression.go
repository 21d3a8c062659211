package arbiter

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/events"
)

const (
	DefaultUndoWindow      = 500 * time.Millisecond
	DefaultTypingWindow    = 100 * time.Millisecond
	DefaultMaxChanges      = 3
	DefaultMaxChangeLength = 50
)

// Suppressor holds the debounce windows that keep typing audio from piling
// up: a bulk edit silences per-character audio for a while, and a keystroke
// silences navigation audio caused by its own cursor advance.
type Suppressor struct {
	undoWindow      time.Duration
	typingWindow    time.Duration
	maxChanges      int
	maxChangeLength int

	charactersUntil time.Time
	lastKeystroke   time.Time
}

type SuppressorOption func(*Suppressor)

func WithUndoWindow(d time.Duration) SuppressorOption {
	return func(s *Suppressor) { s.undoWindow = d }
}

func WithTypingWindow(d time.Duration) SuppressorOption {
	return func(s *Suppressor) { s.typingWindow = d }
}

// WithBulkEditLimits sets how many changes, and how long a single change,
// an edit may have before it counts as a bulk edit.
func WithBulkEditLimits(maxChanges, maxChangeLength int) SuppressorOption {
	return func(s *Suppressor) {
		if maxChanges > 0 {
			s.maxChanges = maxChanges
		}
		if maxChangeLength > 0 {
			s.maxChangeLength = maxChangeLength
		}
	}
}

func NewSuppressor(opts ...SuppressorOption) *Suppressor {
	s := &Suppressor{
		undoWindow:      DefaultUndoWindow,
		typingWindow:    DefaultTypingWindow,
		maxChanges:      DefaultMaxChanges,
		maxChangeLength: DefaultMaxChangeLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsBulkEdit reports whether an edit looks like an undo, a paste or a
// refactoring rather than typing.
func (s *Suppressor) IsBulkEdit(changes []events.Change) bool {
	if len(changes) > s.maxChanges {
		return true
	}
	for _, change := range changes {
		if isLineBreak(change) {
			continue
		}
		if utf8.RuneCountInString(change.Text) > s.maxChangeLength || change.RangeLength > s.maxChangeLength {
			return true
		}
		if strings.ContainsAny(change.Text, "\r\n") || change.Range.SpansLines() {
			return true
		}
	}
	return false
}

// isLineBreak matches Enter, optionally followed by auto-indentation, and a
// backspace that joins two lines.
func isLineBreak(change events.Change) bool {
	if change.Text == "" {
		r := change.Range
		return r.End.Line == r.Start.Line+1 && change.RangeLength <= 2
	}

	rest, ok := strings.CutPrefix(change.Text, "\r\n")
	if !ok {
		rest, ok = strings.CutPrefix(change.Text, "\n")
	}
	return ok && !change.Range.SpansLines() && strings.Trim(rest, " \t") == ""
}

// ObserveEdit records an edit made at now. bulk reports whether it was a bulk
// edit; cue is true only for the first bulk edit of a suppression window.
// Each bulk edit extends the window.
func (s *Suppressor) ObserveEdit(now time.Time, changes []events.Change) (bulk, cue bool) {
	s.lastKeystroke = now
	if !s.IsBulkEdit(changes) {
		return false, false
	}

	cue = !s.CharactersSuppressed(now)
	s.charactersUntil = now.Add(s.undoWindow)
	return true, cue
}

// CharactersSuppressed reports whether per-character audio is silenced.
func (s *Suppressor) CharactersSuppressed(now time.Time) bool {
	return now.Before(s.charactersUntil)
}

// NavigationSuppressed reports whether a keystroke happened recently enough
// that cursor movement audio would double it.
func (s *Suppressor) NavigationSuppressed(now time.Time) bool {
	return !s.lastKeystroke.IsZero() && now.Sub(s.lastKeystroke) < s.typingWindow
}

// ObserveEdit runs the bulk edit detector for an edit of uri. For a bulk
// edit it drops the document's pending keystrokes, plays the undo cue once
// per suppression window and returns true; the caller must not play
// per-character audio for it.
func (a *Arbiter) ObserveEdit(uri string, changes []events.Change) bool {
	bulk, cue := a.suppressor.ObserveEdit(a.loop.Now(), changes)
	if !bulk {
		return false
	}

	a.discardBatch(uri)
	if !cue {
		a.stats.Suppressed++
		return true
	}

	a.Submit(Request{
		Kind:     KindEarcon,
		Priority: PriorityCue,
		Label:    "undo cue",
		Playable: a.renderer.Render([]earcons.SoundRef{earcons.Undo}),
	})
	return true
}

// NavigationSuppressed reports whether cursor movement audio should be
// skipped because a keystroke just happened.
func (a *Arbiter) NavigationSuppressed() bool {
	return a.suppressor.NavigationSuppressed(a.loop.Now())
}
