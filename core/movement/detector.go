// Package movement turns a stream of cursor line observations into a fast
// navigation signal and a speed estimate over a short sliding window.
package movement

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gammazero/deque"
)

var ErrMalformedObservation = errors.New("malformed movement observation")

const (
	DefaultWindow      = 300 * time.Millisecond
	DefaultThreshold   = 3.0
	DefaultMinSamples  = 3
	DefaultIdleKnown   = 75 * time.Millisecond
	DefaultIdleUnknown = 100 * time.Millisecond

	MinThreshold = 0.1
	MaxThreshold = 20.0
)

// Sample is one line-changing cursor move.
type Sample struct {
	Line uint32
	At   time.Time
}

// Decision is the outcome of one observation.
type Decision struct {
	Fast bool
	// Speed is in lines per second. It is only meaningful when SpeedKnown.
	Speed      float64
	SpeedKnown bool
	// IdleAfter is how long the tone may go without another observation
	// before it should stop.
	IdleAfter time.Duration
}

type Detector struct {
	window      time.Duration
	threshold   float64
	minSamples  int
	idleKnown   time.Duration
	idleUnknown time.Duration

	samples deque.Deque[Sample]
}

type Option func(*Detector)

func WithWindow(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.window = d
		}
	}
}

// WithThreshold sets the speed in lines per second at which movement counts
// as fast. It is clamped to [MinThreshold, MaxThreshold].
func WithThreshold(linesPerSecond float64) Option {
	return func(det *Detector) { det.threshold = ClampThreshold(linesPerSecond) }
}

func WithMinSamples(n int) Option {
	return func(det *Detector) { det.minSamples = max(n, 2) }
}

func WithIdleTimeouts(known, unknown time.Duration) Option {
	return func(det *Detector) {
		if known > 0 {
			det.idleKnown = known
		}
		if unknown > 0 {
			det.idleUnknown = unknown
		}
	}
}

func ClampThreshold(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultThreshold
	}
	return math.Max(MinThreshold, math.Min(MaxThreshold, v))
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		window:      DefaultWindow,
		threshold:   DefaultThreshold,
		minSamples:  DefaultMinSamples,
		idleKnown:   DefaultIdleKnown,
		idleUnknown: DefaultIdleUnknown,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Threshold() float64 { return d.threshold }

// Observe records a move to line at now. sessionActive tells the detector
// whether a tone is already playing, which decides the outcome while there
// are too few samples for a speed estimate.
//
// An observation older than the newest sample is dropped and reported with
// ErrMalformedObservation; the returned decision then reflects the window
// without it.
func (d *Detector) Observe(line uint32, now time.Time, sessionActive bool) (Decision, error) {
	if d.samples.Len() > 0 {
		if newest := d.samples.Back(); now.Before(newest.At) {
			d.prune(newest.At)
			return d.decide(sessionActive), fmt.Errorf("%w: %s is %s before the newest sample",
				ErrMalformedObservation, now.Format(time.RFC3339Nano), newest.At.Sub(now))
		}
	}

	d.samples.PushBack(Sample{Line: line, At: now})
	d.prune(now)
	return d.decide(sessionActive), nil
}

func (d *Detector) prune(now time.Time) {
	for d.samples.Len() > 0 && now.Sub(d.samples.Front().At) > d.window {
		d.samples.PopFront()
	}
}

func (d *Detector) decide(sessionActive bool) Decision {
	speed, known := d.estimate()
	if !known {
		return Decision{Fast: sessionActive, IdleAfter: d.idleUnknown}
	}
	return Decision{
		Fast:       speed >= d.threshold,
		Speed:      speed,
		SpeedKnown: true,
		IdleAfter:  d.idleKnown,
	}
}

func (d *Detector) estimate() (float64, bool) {
	if d.samples.Len() < d.minSamples {
		return 0, false
	}

	oldest, newest := d.samples.Front(), d.samples.Back()
	elapsed := newest.At.Sub(oldest.At).Seconds()
	if elapsed <= 0 {
		return 0, false
	}

	lines := math.Abs(float64(newest.Line) - float64(oldest.Line))
	return lines / elapsed, true
}

// Len returns the number of samples in the window.
func (d *Detector) Len() int { return d.samples.Len() }

// Reset forgets every sample.
func (d *Detector) Reset() {
	d.samples.Clear()
}
