package main

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/koscakluka/sonicursor/core/events"
)

const (
	maxHistory   = 100
	spacesPerTab = 4
)

// document is an editable buffer that reports what a real editor would
// report for each operation.
type document struct {
	uri   string
	lines []string
	line  int
	col   int

	history []revision
}

type revision struct {
	lines     []string
	line, col int
}

func newDocument(uri, text string) *document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return &document{uri: uri, lines: strings.Split(text, "\n")}
}

func (d *document) totalLines() uint32 { return uint32(len(d.lines)) }

func (d *document) cursor() events.Position {
	return events.Position{Line: uint32(d.line), Character: uint32(d.col)}
}

func (d *document) cursorMoved(source events.SelectionKind) events.CursorMoved {
	return events.NewCursorMoved(d.uri, uint32(d.line), uint32(d.col), d.totalLines(), source).
		WithLineText(d.lines[d.line])
}

func (d *document) lineLength(line int) int {
	return utf8.RuneCountInString(d.lines[line])
}

// moveTo clamps the target into the document and reports whether the
// cursor moved.
func (d *document) moveTo(line, col int) bool {
	line = min(max(line, 0), len(d.lines)-1)
	col = min(max(col, 0), d.lineLength(line))
	if line == d.line && col == d.col {
		return false
	}
	d.line, d.col = line, col
	return true
}

func (d *document) moveLines(delta int) bool {
	return d.moveTo(d.line+delta, d.col)
}

func (d *document) moveColumn(delta int) bool {
	return d.moveTo(d.line, d.col+delta)
}

func (d *document) save() {
	d.history = append(d.history, revision{
		lines: append([]string(nil), d.lines...),
		line:  d.line,
		col:   d.col,
	})
	if len(d.history) > maxHistory {
		d.history = d.history[1:]
	}
}

// insert types text, which must not contain line breaks, at the cursor.
func (d *document) insert(text string) events.TextChanged {
	d.save()
	at := d.cursor()
	before := indentLevel(d.lines[d.line])

	r := []rune(d.lines[d.line])
	d.lines[d.line] = string(r[:d.col]) + text + string(r[d.col:])
	d.col += utf8.RuneCountInString(text)

	ev := events.NewTextChanged(d.uri, d.cursor(), events.Change{
		Range: events.Range{Start: at, End: at},
		Text:  text,
	})
	if after := indentLevel(d.lines[d.line]); after != before && d.inIndentation() {
		ev = ev.WithIndent(before, after)
	}
	return ev
}

// newline splits the line at the cursor and carries its indentation over.
func (d *document) newline() events.TextChanged {
	d.save()
	at := d.cursor()

	r := []rune(d.lines[d.line])
	indent := leadingWhitespace(d.lines[d.line])
	head, tail := string(r[:d.col]), indent+string(r[d.col:])

	d.lines[d.line] = head
	d.lines = slices.Insert(d.lines, d.line+1, tail)
	d.line++
	d.col = utf8.RuneCountInString(indent)

	return events.NewTextChanged(d.uri, d.cursor(), events.Change{
		Range: events.Range{Start: at, End: at},
		Text:  "\n" + indent,
	})
}

// backspace deletes the character before the cursor, joining lines at the
// start of one.
func (d *document) backspace() (events.TextChanged, bool) {
	if d.col == 0 && d.line == 0 {
		return events.TextChanged{}, false
	}
	d.save()

	if d.col == 0 {
		end := d.cursor()
		prev := d.line - 1
		d.col = d.lineLength(prev)
		d.lines[prev] += d.lines[d.line]
		d.lines = slices.Delete(d.lines, d.line, d.line+1)
		d.line = prev

		return events.NewTextChanged(d.uri, d.cursor(), events.Change{
			Range:       events.Range{Start: d.cursor(), End: end},
			RangeLength: 1,
		}), true
	}

	end := d.cursor()
	before := indentLevel(d.lines[d.line])
	r := []rune(d.lines[d.line])
	d.lines[d.line] = string(r[:d.col-1]) + string(r[d.col:])
	d.col--

	ev := events.NewTextChanged(d.uri, d.cursor(), events.Change{
		Range:       events.Range{Start: d.cursor(), End: end},
		RangeLength: 1,
	})
	if after := indentLevel(d.lines[d.line]); after != before && d.inIndentation() {
		ev = ev.WithIndent(before, after)
	}
	return ev, true
}

// undo restores the previous revision as a single whole-document change.
func (d *document) undo() (events.TextChanged, bool) {
	if len(d.history) == 0 {
		return events.TextChanged{}, false
	}

	last := len(d.lines) - 1
	replaced := events.Range{
		Start: events.Position{},
		End:   events.Position{Line: uint32(last), Character: uint32(d.lineLength(last))},
	}
	length := utf8.RuneCountInString(strings.Join(d.lines, "\n"))

	rev := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	d.lines, d.line, d.col = rev.lines, rev.line, rev.col

	return events.NewTextChanged(d.uri, d.cursor(), events.Change{
		Range:       replaced,
		RangeLength: length,
		Text:        strings.Join(d.lines, "\n"),
	}), true
}

// inIndentation reports whether only whitespace precedes the cursor.
func (d *document) inIndentation() bool {
	r := []rune(d.lines[d.line])
	return strings.TrimLeft(string(r[:d.col]), " \t") == ""
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// indentLevel counts a tab or four spaces as one level.
func indentLevel(s string) int {
	tabs, spaces := 0, 0
	for _, c := range leadingWhitespace(s) {
		if c == '\t' {
			tabs++
		} else {
			spaces++
		}
	}
	return tabs + spaces/spacesPerTab
}
