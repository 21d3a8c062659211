package feedback

import (
	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/events"
)

func (e *Engine) textChanged(ev events.TextChanged) {
	e.state.activeURI = ev.URI
	doc := e.state.document(ev.URI)
	doc.forget(ev.Changes)
	// The cursor move that follows an edit is part of typing, not navigation.
	doc.seen, doc.line = true, ev.Cursor.Line

	e.arbiter.CancelKind(arbiter.KindSpeech)

	if e.arbiter.ObserveEdit(ev.URI, ev.Changes) {
		return
	}

	var refs []earcons.SoundRef
	for _, change := range ev.Changes {
		refs = append(refs, e.resolver.Change(change)...)
	}
	e.arbiter.Keystroke(ev.URI, refs...)

	if ev.Indent == nil {
		return
	}
	if ref, ok := e.resolver.Indent(*ev.Indent); ok {
		e.arbiter.Submit(arbiter.Request{
			Kind:     arbiter.KindEarcon,
			Priority: arbiter.PriorityCue,
			Label:    "indent cue",
			Playable: e.library.Render([]earcons.SoundRef{ref}),
		})
	}
}
