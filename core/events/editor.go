package events

const (
	// KindCursorMoved identifies a change of the primary selection.
	KindCursorMoved Kind = "editor.cursor_moved"
	// KindTextChanged identifies an edit to a document.
	KindTextChanged Kind = "editor.text_changed"
	// KindEditorSwitched identifies a change of the focused editor.
	KindEditorSwitched Kind = "editor.switched"
	// KindDocumentClosed identifies a document being closed.
	KindDocumentClosed Kind = "editor.document_closed"
)

// SelectionKind is what caused a cursor move.
type SelectionKind int

const (
	SelectionUnknown SelectionKind = iota
	SelectionKeyboard
	SelectionMouse
	// SelectionCommand covers moves made by the editor itself, such as
	// go-to-definition or a programmatic reveal.
	SelectionCommand
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionKeyboard:
		return "keyboard"
	case SelectionMouse:
		return "mouse"
	case SelectionCommand:
		return "command"
	default:
		return "unknown"
	}
}

// UserDriven reports whether the move came from the keyboard or the mouse.
func (k SelectionKind) UserDriven() bool {
	return k == SelectionKeyboard || k == SelectionMouse
}

type Position struct {
	Line      uint32
	Character uint32
}

type Range struct {
	Start Position
	End   Position
}

// SpansLines reports whether the range covers more than one line.
func (r Range) SpansLines() bool {
	return r.Start.Line != r.End.Line
}

// CursorMoved carries the new primary cursor position.
type CursorMoved struct {
	Base
	URI string
	Position
	// TotalLines is the line count of the document.
	TotalLines uint32
	// LineText is the text of the line the cursor is on.
	LineText string
	Source   SelectionKind
}

// NewCursorMoved creates a cursor moved event.
func NewCursorMoved(uri string, line, character, totalLines uint32, source SelectionKind) CursorMoved {
	return CursorMoved{
		Base:       NewBase(KindCursorMoved),
		URI:        uri,
		Position:   Position{Line: line, Character: character},
		TotalLines: totalLines,
		Source:     source,
	}
}

// WithLineText returns a copy of the event carrying the text of the cursor
// line.
func (e CursorMoved) WithLineText(text string) CursorMoved {
	e.LineText = text
	return e
}

// Change is one content change of an edit.
type Change struct {
	Range Range
	// RangeLength is the number of characters replaced.
	RangeLength int
	Text        string
}

// IndentChange describes how an edit changed the indentation of the cursor
// line, in indentation levels.
type IndentChange struct {
	Before int
	After  int
}

// TextChanged carries the content changes of one edit.
type TextChanged struct {
	Base
	URI     string
	Changes []Change
	// Cursor is where the primary cursor ends up after the edit.
	Cursor Position
	Indent *IndentChange
}

// NewTextChanged creates a text changed event.
func NewTextChanged(uri string, cursor Position, changes ...Change) TextChanged {
	return TextChanged{Base: NewBase(KindTextChanged), URI: uri, Cursor: cursor, Changes: changes}
}

// WithIndent returns a copy of the event carrying an indentation change.
func (e TextChanged) WithIndent(before, after int) TextChanged {
	e.Indent = &IndentChange{Before: before, After: after}
	return e
}

// EditorSwitched marks that another editor took focus.
type EditorSwitched struct {
	Base
	URI string
}

// NewEditorSwitched creates an editor switched event.
func NewEditorSwitched(uri string) EditorSwitched {
	return EditorSwitched{Base: NewBase(KindEditorSwitched), URI: uri}
}

// DocumentClosed marks that a document was closed.
type DocumentClosed struct {
	Base
	URI string
}

// NewDocumentClosed creates a document closed event.
func NewDocumentClosed(uri string) DocumentClosed {
	return DocumentClosed{Base: NewBase(KindDocumentClosed), URI: uri}
}
