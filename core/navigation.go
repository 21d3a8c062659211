package feedback

import (
	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/events"
)

func (e *Engine) cursorMoved(ev events.CursorMoved) {
	e.state.activeURI = ev.URI
	doc := e.state.document(ev.URI)
	doc.lines[ev.Line] = ev.LineText
	doc.totalLines = ev.TotalLines

	seen, previous := doc.seen, doc.line
	doc.seen, doc.line = true, ev.Line

	// The first position of a document is where it opened, not a move.
	if !seen || !ev.Source.UserDriven() {
		return
	}

	if previous == ev.Line {
		e.characterMoved(ev)
		return
	}

	decision, err := e.detector.Observe(ev.Line, e.loop.Now(), e.tone.Active())
	if err != nil {
		logger.Warn("dropped cursor observation", "uri", ev.URI, "line", ev.Line, "error", err)
	}
	if e.tone.Observe(ev.URI, ev.Line, ev.TotalLines, decision) {
		return
	}
	if e.arbiter.NavigationSuppressed() {
		return
	}
	e.narrator.AnnounceLine(ev.URI, ev.Line)
}

// characterMoved plays the character the cursor landed on, panned by column.
func (e *Engine) characterMoved(ev events.CursorMoved) {
	if e.tone.Active() || e.arbiter.NavigationSuppressed() {
		return
	}

	ref := e.resolver.UnderCursor(ev.LineText, ev.Character)
	e.arbiter.Submit(arbiter.Request{
		Kind:     arbiter.KindEarcon,
		Priority: arbiter.PriorityNavigation,
		Label:    "character",
		Playable: e.library.Render([]earcons.SoundRef{ref}),
	})
}

func (e *Engine) editorSwitched(ev events.EditorSwitched) {
	e.state.activeURI = ev.URI
	e.tone.Reset()
	e.detector.Reset()
}

func (e *Engine) documentClosed(ev events.DocumentClosed) {
	if e.state.activeURI == ev.URI {
		e.tone.Reset()
		e.detector.Reset()
	}
	e.arbiter.DropDocument(ev.URI)
	e.state.drop(ev.URI)
}
