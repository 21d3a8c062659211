package earcons

import (
	"fmt"
	"unicode"

	"github.com/koscakluka/sonicursor/core/events"
)

const defaultPanColumns = 120

var punctuation = map[rune]string{
	'(': "paren_open", ')': "paren_close",
	'[': "bracket_open", ']': "bracket_close",
	'{': "brace_open", '}': "brace_close",
	'<': "angle_open", '>': "angle_close",
	',': "comma", '.': "dot", ';': "semicolon", ':': "colon",
	'"': "quote", '\'': "apostrophe", '`': "backtick",
	'=': "equals", '+': "plus", '-': "minus", '*': "asterisk",
	'/': "slash", '\\': "backslash", '_': "underscore",
	'!': "bang", '?': "question", '&': "ampersand", '|': "pipe",
	'%': "percent", '#': "hash", '@': "at", '$': "dollar",
	'^': "caret", '~': "tilde",
}

// Resolver maps editor activity to earcons.
type Resolver struct {
	// PanColumns is the column that pans fully right. Column 0 is fully
	// left; zero disables panning.
	PanColumns uint32
}

func NewResolver() *Resolver {
	return &Resolver{PanColumns: defaultPanColumns}
}

// Pan places column in the stereo field.
func (r *Resolver) Pan(column uint32) float64 {
	if r.PanColumns == 0 {
		return 0
	}
	return clampPan(float64(min(column, r.PanColumns))/float64(r.PanColumns)*2 - 1)
}

// Name returns the earcon for a single character.
func Name(c rune) string {
	switch {
	case c == ' ':
		return "space"
	case c == '\t':
		return "tab"
	case c == '\n' || c == '\r':
		return "enter"
	case c >= 'a' && c <= 'z':
		return fmt.Sprintf("alpha_%c", c)
	case c >= 'A' && c <= 'Z':
		return fmt.Sprintf("alpha_%c", unicode.ToLower(c))
	case c >= '0' && c <= '9':
		return fmt.Sprintf("digit_%c", c)
	}
	if name, ok := punctuation[c]; ok {
		return name
	}
	return "char"
}

// Character returns the sound for c typed or passed over at column.
func (r *Resolver) Character(c rune, column uint32) SoundRef {
	return SoundRef{Name: Name(c), Pan: r.Pan(column)}
}

// UnderCursor returns the sound for the character at column of line, or the
// end-of-line sound past its end.
func (r *Resolver) UnderCursor(line string, column uint32) SoundRef {
	i := uint32(0)
	for _, c := range line {
		if i == column {
			return r.Character(c, column)
		}
		i++
	}
	return SoundRef{Name: "line_end", Pan: r.Pan(column)}
}

// Change returns the per-character sounds for one typed change. A pure
// deletion plays backspace; an insertion plays one sound per character,
// panned from the column it starts at.
func (r *Resolver) Change(change events.Change) []SoundRef {
	column := change.Range.Start.Character
	if change.Text == "" {
		if change.RangeLength == 0 && change.Range.Start == change.Range.End {
			return nil
		}
		return []SoundRef{{Name: "backspace", Pan: r.Pan(column)}}
	}

	refs := make([]SoundRef, 0, len(change.Text))
	for _, c := range change.Text {
		if c == '\r' {
			continue
		}
		refs = append(refs, r.Character(c, column))
		if c == '\n' {
			column = 0
			continue
		}
		column++
	}
	return refs
}

// Indent returns the indentation cue for an indentation change. Indenting
// to level n plays indent_n, outdenting plays indent_(5+n); levels above 4
// share the last cue.
func (r *Resolver) Indent(change events.IndentChange) (SoundRef, bool) {
	level := min(max(change.After, 0), 4)
	switch {
	case change.After > change.Before:
		return SoundRef{Name: fmt.Sprintf("indent_%d", level)}, true
	case change.After < change.Before:
		return SoundRef{Name: fmt.Sprintf("indent_%d", level+5)}, true
	default:
		return SoundRef{}, false
	}
}
