package playback

import (
	"context"
	"errors"

	"github.com/koscakluka/sonicursor/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Playable is anything the arbiter can start against the output device. Play
// returns once the stream has ended, or right away after a preemption.
type Playable interface {
	Play(ctx context.Context, token *CancelToken, sink audio.Sink) error
}

// PlayableFunc adapts a function to Playable.
type PlayableFunc func(ctx context.Context, token *CancelToken, sink audio.Sink) error

func (f PlayableFunc) Play(ctx context.Context, token *CancelToken, sink audio.Sink) error {
	return f(ctx, token, sink)
}

type pumpOptions struct {
	onFirstAccepted func()
}

type PumpOption func(*pumpOptions)

// WithOnFirstAccepted runs fn once, right after the sink accepted the first
// buffer of the stream.
func WithOnFirstAccepted(fn func()) PumpOption {
	return func(o *pumpOptions) { o.onFirstAccepted = fn }
}

// Pump writes buffers from src to handle until src runs out, the token is
// cancelled or the stream fails. The token is checked before every write and
// the write itself runs under the token's guard, so a preempted pump never
// writes again. A Backpressured write suspends the pump until the handle is
// ready for more.
func Pump(ctx context.Context, token *CancelToken, handle audio.SinkHandle, src Source, opts ...PumpOption) error {
	var options pumpOptions
	for _, opt := range opts {
		opt(&options)
	}

	accepted := false
	for {
		if token.Cancelled() {
			return release(token, handle, src)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		buf, ok := src.Next()
		if !ok {
			return src.Err()
		}

		var (
			result audio.WriteResult
			err    error
		)
		if !token.Guard(func() { result, err = handle.Write(buf) }) {
			return release(token, handle, src)
		}
		if err != nil {
			return err
		}

		if !accepted {
			accepted = true
			if options.onFirstAccepted != nil {
				options.onFirstAccepted()
			}
		}

		if result == audio.Backpressured {
			select {
			case <-handle.Ready():
			case <-token.Done():
			case <-handle.Done():
				if err := handle.Err(); err != nil {
					return err
				}
				return audio.ErrHandleClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func release(token *CancelToken, handle audio.SinkHandle, src Source) error {
	if token.Reason() != Stopped {
		return nil
	}
	releaser, ok := src.(Releaser)
	if !ok {
		return nil
	}
	if tail, ok := releaser.Release(); ok {
		if _, err := handle.Write(tail); err != nil {
			return err
		}
	}
	return nil
}

// Play opens sink, pumps src into it and waits for the stream to end. A
// preempted stream returns as soon as it stops writing; the next stream
// opened on the sink releases whatever is still queued.
func Play(ctx context.Context, token *CancelToken, sink audio.Sink, format audio.Format, src Source, opts ...PumpOption) (err error) {
	ctx, span := tracer.Start(ctx, "play stream")
	defer span.End()
	span.SetAttributes(
		attribute.Int("audio.sample_rate", int(format.SampleRate)),
		attribute.Int("audio.channels", int(format.Channels)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if token.Cancelled() {
		return nil
	}

	handle, err := sink.Open(format)
	if err != nil {
		return err
	}

	pumpErr := Pump(ctx, token, handle, src, opts...)
	_ = handle.Close()
	if pumpErr != nil {
		return pumpErr
	}

	return Wait(ctx, token, handle)
}

// Wait blocks until handle finishes. It returns early with a nil error when
// the token is preempted.
func Wait(ctx context.Context, token *CancelToken, handle audio.SinkHandle) error {
	tokenDone := token.Done()
	for {
		if token.Reason() == Preempted {
			return nil
		}

		select {
		case <-handle.Done():
			err := handle.Err()
			if errors.Is(err, audio.ErrDeviceReleased) && token.Reason() == Preempted {
				return nil
			}
			return err
		case <-tokenDone:
			tokenDone = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
