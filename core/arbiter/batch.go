package arbiter

import (
	"github.com/koscakluka/sonicursor/core/earcons"
	"github.com/koscakluka/sonicursor/core/loop"
)

// batch collects the keystroke sounds of one document until it flushes.
type batch struct {
	items []earcons.SoundRef
	timer *loop.Timer
}

// Keystroke adds per-character sounds to the batch of uri. The batch plays
// as one sequence once it holds the maximum number of items or after an
// idle gap without further keystrokes, whichever comes first. Sounds are
// dropped while a bulk edit suppresses per-character audio.
func (a *Arbiter) Keystroke(uri string, refs ...earcons.SoundRef) {
	if len(refs) == 0 {
		return
	}
	if a.suppressor.CharactersSuppressed(a.loop.Now()) {
		a.stats.Suppressed += len(refs)
		return
	}

	for _, ref := range refs {
		b, ok := a.batches[uri]
		if !ok {
			b = &batch{}
			a.batches[uri] = b
		}
		b.items = append(b.items, ref)
		if len(b.items) >= a.batchMaxItems {
			a.flush(uri)
		}
	}

	if b, ok := a.batches[uri]; ok {
		if b.timer == nil {
			b.timer = a.loop.AfterFunc(a.batchIdle, func() { a.flush(uri) })
		} else {
			b.timer.Reset(a.batchIdle)
		}
	}
}

func (a *Arbiter) flush(uri string) {
	b, ok := a.batches[uri]
	if !ok {
		return
	}
	delete(a.batches, uri)
	b.timer.Stop()
	if len(b.items) == 0 {
		return
	}

	a.stats.Flushes++
	a.Submit(Request{
		Kind:     KindEarcon,
		Priority: PriorityKeystroke,
		Label:    "keystroke batch",
		Playable: a.renderer.Render(b.items),
	})
}

func (a *Arbiter) discardBatch(uri string) {
	if b, ok := a.batches[uri]; ok {
		b.timer.Stop()
		delete(a.batches, uri)
	}
}

// DropDocument forgets the pending keystrokes of a closed document.
func (a *Arbiter) DropDocument(uri string) {
	a.discardBatch(uri)
}
