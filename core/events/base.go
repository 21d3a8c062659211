package events

import "time"

// Kind names an editor event, e.g. "editor.cursor_moved".
type Kind string

// Event is anything an editor integration reports to the engine.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries what every event shares. Events embed it.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
