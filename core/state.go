package feedback

import (
	"strings"

	"github.com/koscakluka/sonicursor/core/events"
)

// document is what the engine remembers about one open document.
type document struct {
	seen       bool
	line       uint32
	totalLines uint32
	lines      map[uint32]string
}

type state struct {
	activeURI string
	documents map[string]*document
}

func newState() *state {
	return &state{documents: make(map[string]*document)}
}

func (s *state) document(uri string) *document {
	doc, ok := s.documents[uri]
	if !ok {
		doc = &document{lines: make(map[uint32]string)}
		s.documents[uri] = doc
	}
	return doc
}

func (s *state) drop(uri string) {
	delete(s.documents, uri)
	if s.activeURI == uri {
		s.activeURI = ""
	}
}

// LineText returns the last known text of a line.
func (s *state) LineText(uri string, line uint32) (string, bool) {
	doc, ok := s.documents[uri]
	if !ok {
		return "", false
	}
	text, ok := doc.lines[line]
	return text, ok
}

// forget drops cached line text an edit may have invalidated. Edits that add
// or remove lines shift every line after them, so the whole cache goes.
func (d *document) forget(changes []events.Change) {
	for _, change := range changes {
		if change.Range.SpansLines() || strings.ContainsAny(change.Text, "\r\n") {
			clear(d.lines)
			return
		}
		delete(d.lines, change.Range.Start.Line)
	}
}
