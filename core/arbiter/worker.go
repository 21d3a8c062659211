package arbiter

import (
	"context"
	"fmt"
)

type playbackRun func(context.Context) error

// panicSafePlayback keeps a panicking playable from taking the host down; the
// panic is reported as the request's error instead.
func panicSafePlayback(label string, run func(context.Context) error) playbackRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s playback panicked: %v", label, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s playback: %w", label, err)
		}
		return nil
	}
}
