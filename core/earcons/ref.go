package earcons

import "fmt"

// SoundRef names one short sound. Name selects an earcon from the library;
// Pan places it in the stereo field from -1 (left) to 1 (right).
type SoundRef struct {
	Name string
	Pan  float64
}

func (r SoundRef) String() string {
	if r.Pan == 0 {
		return r.Name
	}
	return fmt.Sprintf("%s@%+.2f", r.Name, r.Pan)
}

// Undo is the cue played for bulk edits.
var Undo = SoundRef{Name: "undo"}
