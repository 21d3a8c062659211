package main

import (
	"testing"

	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(line, col uint32) events.Position {
	return events.Position{Line: line, Character: col}
}

func TestNewDocumentSplitsLines(t *testing.T) {
	d := newDocument("file:///a", "one\r\ntwo\n")
	assert.Equal(t, []string{"one", "two"}, d.lines)
	assert.EqualValues(t, 2, d.totalLines())

	empty := newDocument("untitled:x", "")
	assert.Equal(t, []string{""}, empty.lines)
}

func TestMoveToClamps(t *testing.T) {
	d := newDocument("file:///a", "abc\nde")

	assert.True(t, d.moveTo(5, 10))
	assert.Equal(t, 1, d.line)
	assert.Equal(t, 2, d.col)
	assert.False(t, d.moveTo(1, 2))

	assert.True(t, d.moveLines(-1))
	assert.Equal(t, 0, d.line)
	assert.Equal(t, 2, d.col)
}

func TestInsertReportsTypedText(t *testing.T) {
	d := newDocument("file:///a", "ab")
	d.moveTo(0, 1)

	ev := d.insert("x")
	assert.Equal(t, "axb", d.lines[0])
	assert.Equal(t, pos(0, 2), ev.Cursor)
	require.Len(t, ev.Changes, 1)
	assert.Equal(t, events.Range{Start: pos(0, 1), End: pos(0, 1)}, ev.Changes[0].Range)
	assert.Equal(t, "x", ev.Changes[0].Text)
	assert.Nil(t, ev.Indent)
}

func TestTabInIndentationReportsIndentChange(t *testing.T) {
	d := newDocument("file:///a", "foo")

	ev := d.insert("\t")
	require.NotNil(t, ev.Indent)
	assert.Equal(t, events.IndentChange{Before: 0, After: 1}, *ev.Indent)

	ev, ok := d.backspace()
	require.True(t, ok)
	require.NotNil(t, ev.Indent)
	assert.Equal(t, events.IndentChange{Before: 1, After: 0}, *ev.Indent)
}

func TestNewlineCarriesIndentation(t *testing.T) {
	d := newDocument("file:///a", "\tfoo")
	d.moveTo(0, 4)

	ev := d.newline()
	assert.Equal(t, []string{"\tfoo", "\t"}, d.lines)
	assert.Equal(t, pos(1, 1), ev.Cursor)
	assert.Equal(t, "\n\t", ev.Changes[0].Text)
	assert.False(t, arbiter.NewSuppressor().IsBulkEdit(ev.Changes))
}

func TestBackspaceJoinsLines(t *testing.T) {
	d := newDocument("file:///a", "ab\ncd")
	d.moveTo(1, 0)

	ev, ok := d.backspace()
	require.True(t, ok)
	assert.Equal(t, []string{"abcd"}, d.lines)
	assert.Equal(t, pos(0, 2), ev.Cursor)
	assert.Equal(t, events.Range{Start: pos(0, 2), End: pos(1, 0)}, ev.Changes[0].Range)
	assert.False(t, arbiter.NewSuppressor().IsBulkEdit(ev.Changes))

	d.moveTo(0, 0)
	_, ok = d.backspace()
	assert.False(t, ok)
}

func TestUndoReplacesDocument(t *testing.T) {
	d := newDocument("file:///a", "ab\ncd")
	d.moveTo(1, 2)
	d.insert("e")

	ev, ok := d.undo()
	require.True(t, ok)
	assert.Equal(t, []string{"ab", "cd"}, d.lines)
	assert.Equal(t, pos(1, 2), ev.Cursor)
	assert.Equal(t, "ab\ncd", ev.Changes[0].Text)
	assert.Equal(t, 6, ev.Changes[0].RangeLength)
	assert.True(t, arbiter.NewSuppressor().IsBulkEdit(ev.Changes))

	_, ok = d.undo()
	assert.False(t, ok)
}

func TestIndentLevel(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"", 0},
		{"x", 0},
		{"\tx", 1},
		{"    x", 1},
		{"\t   x", 1},
		{"\t    x", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, indentLevel(tt.line), "%q", tt.line)
	}
}
