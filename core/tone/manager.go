// Package tone runs the continuous navigation tone: it starts when the
// cursor moves fast, follows the cursor line with its pitch and stops once
// movement slows down or pauses, handing over to line narration.
package tone

import (
	"errors"
	"time"

	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/movement"
	"github.com/koscakluka/sonicursor/core/oscillator"
)

const DefaultSettle = 150 * time.Millisecond

type State int

const (
	Idle State = iota
	Starting
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Narrator announces the line where movement stopped.
type Narrator interface {
	AnnounceLine(uri string, line uint32)
}

// Submitter is the part of the arbiter the manager needs.
type Submitter interface {
	Submit(req arbiter.Request) *arbiter.Handle
}

// Manager owns the single tone session. It must only be used from the loop
// it was created with.
type Manager struct {
	loop     *loop.Loop
	arbiter  Submitter
	narrator Narrator

	format  audio.Format
	volume  float32
	chunk   time.Duration
	release time.Duration
	settle  time.Duration

	state     State
	session   uint64
	handle    *arbiter.Handle
	stream    *Stream
	startedAt time.Time

	uri        string
	line       uint32
	totalLines uint32

	idleTimer   *loop.Timer
	slowTimer   *loop.Timer
	settleTimer *loop.Timer

	narrateOnStop  bool
	restartPending bool
}

type Option func(*Manager)

func WithFormat(format audio.Format) Option {
	return func(m *Manager) { m.format = format }
}

func WithVolume(volume float32) Option {
	return func(m *Manager) { m.volume = volume }
}

// WithChunk sets the length of each generated buffer, which bounds how late
// a frequency change or a cancellation is heard.
func WithChunk(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.chunk = d
		}
	}
}

// WithRelease sets the fade-out written when the tone stops; zero ends it
// without a fade.
func WithRelease(d time.Duration) Option {
	return func(m *Manager) { m.release = max(d, 0) }
}

// WithSettle sets the pause between the end of the tone and the narration.
func WithSettle(d time.Duration) Option {
	return func(m *Manager) { m.settle = max(d, 0) }
}

func NewManager(l *loop.Loop, submitter Submitter, narrator Narrator, opts ...Option) *Manager {
	m := &Manager{
		loop:     l,
		arbiter:  submitter,
		narrator: narrator,
		format:   audio.GetDefaultFormat(),
		volume:   DefaultVolume,
		chunk:    DefaultChunk,
		release:  DefaultRelease,
		settle:   DefaultSettle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() State { return m.state }

// Frequency is the pitch of the playing tone, zero when idle.
func (m *Manager) Frequency() float64 {
	if m.stream == nil {
		return 0
	}
	return m.stream.Frequency()
}

// StartedAt is when the current session became Active.
func (m *Manager) StartedAt() time.Time { return m.startedAt }

// Active reports whether a session is starting or playing.
func (m *Manager) Active() bool {
	return m.state == Starting || m.state == Active
}

// Observe feeds one line-changing cursor move and the detector's verdict on
// it. It reports whether the tone session took care of the move; when it did
// not, the caller is free to narrate the line itself.
func (m *Manager) Observe(uri string, line, totalLines uint32, decision movement.Decision) bool {
	m.settleTimer.Stop()
	m.uri, m.line, m.totalLines = uri, line, totalLines

	switch m.state {
	case Idle:
		if !decision.Fast {
			return false
		}
		m.start(decision.IdleAfter)
		return true

	case Starting, Active:
		m.stream.SetFrequency(oscillator.FrequencyForLine(line, totalLines))
		m.armIdle(decision.IdleAfter)
		if decision.Fast {
			m.slowTimer.Stop()
		} else if !m.slowTimer.Pending() {
			m.slowTimer = m.loop.AfterFunc(decision.IdleAfter, m.sessionCallback(func() { m.stop(true) }))
		}
		return true

	case Stopping:
		if decision.Fast {
			m.restartPending = true
		}
		return true
	}
	return false
}

// Reset ends any session without narration, as when the user switches to
// another editor.
func (m *Manager) Reset() {
	m.settleTimer.Stop()
	m.restartPending = false
	switch m.state {
	case Starting, Active:
		m.stop(false)
	case Stopping:
		m.narrateOnStop = false
	}
}

func (m *Manager) start(idleAfter time.Duration) {
	m.session++
	m.state = Starting
	m.narrateOnStop = false
	m.startedAt = time.Time{}

	session := m.session
	stream := NewStream(m.format, m.volume, oscillator.FrequencyForLine(m.line, m.totalLines))
	stream.chunk = m.chunk
	stream.release = m.release
	stream.onFirstAccepted = func() {
		m.loop.Post(func() { m.firstAccepted(session) })
	}
	m.stream = stream

	m.armIdle(idleAfter)
	m.handle = m.arbiter.Submit(arbiter.Request{
		Kind:     arbiter.KindTone,
		Priority: arbiter.PriorityTone,
		Label:    "tone",
		Playable: stream,
	})
	m.handle.OnDone(func(result arbiter.Result, err error) {
		m.ended(session, result, err)
	})
}

func (m *Manager) armIdle(d time.Duration) {
	if d <= 0 {
		d = movement.DefaultIdleUnknown
	}
	if m.idleTimer == nil {
		m.idleTimer = m.loop.AfterFunc(d, func() { m.idleExpired() })
		return
	}
	m.idleTimer.Reset(d)
}

func (m *Manager) idleExpired() {
	if m.state == Starting || m.state == Active {
		m.stop(true)
	}
}

// sessionCallback drops timer callbacks that outlive their session.
func (m *Manager) sessionCallback(fn func()) func() {
	session := m.session
	return func() {
		if session == m.session {
			fn()
		}
	}
}

func (m *Manager) firstAccepted(session uint64) {
	if session != m.session || m.state != Starting {
		return
	}
	m.state = Active
	m.startedAt = m.loop.Now()
}

func (m *Manager) stop(narrate bool) {
	if m.state != Starting && m.state != Active {
		return
	}
	m.state = Stopping
	m.narrateOnStop = narrate
	m.idleTimer.Stop()
	m.slowTimer.Stop()
	m.handle.Stop()
}

func (m *Manager) ended(session uint64, result arbiter.Result, err error) {
	if session != m.session {
		return
	}

	narrate := m.state == Stopping && m.narrateOnStop
	restart := m.restartPending

	m.state = Idle
	m.handle = nil
	m.stream = nil
	m.restartPending = false
	m.narrateOnStop = false
	m.idleTimer.Stop()
	m.slowTimer.Stop()

	switch result {
	case arbiter.Failed:
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			logger.Warn("tone could not open the audio device", "error", err)
		} else {
			logger.Warn("tone stream failed", "error", err)
		}
		return
	case arbiter.Cancelled, arbiter.Dropped:
		logger.Debug("tone session ended without narration", "result", result.String())
		return
	}

	if restart {
		m.start(movement.DefaultIdleUnknown)
		return
	}
	if narrate {
		uri, line := m.uri, m.line
		m.settleTimer = m.loop.AfterFunc(m.settle, func() {
			m.narrator.AnnounceLine(uri, line)
		})
	}
}
