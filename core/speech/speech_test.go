package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/koscakluka/sonicursor/core/arbiter"
	"github.com/koscakluka/sonicursor/core/audio"
	"github.com/koscakluka/sonicursor/core/loop"
	"github.com/koscakluka/sonicursor/core/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	})
}

func wavBytes(t *testing.T, rate beep.SampleRate, frames int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speech.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Take(frames, constant(0.25)), format))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func drain(t *testing.T, src playback.Source) (frames int, first []int16) {
	t.Helper()
	for {
		buf, ok := src.Next()
		if !ok {
			break
		}
		if first == nil {
			first = buf.Samples
		}
		frames += buf.Frames()
	}
	require.NoError(t, src.Err())
	return frames, first
}

func newTTSServer(t *testing.T, wavData []byte, got *ttsRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tts", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got.Text == "fail" {
			http.Error(w, "voice not loaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wavData)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /voices", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{"voices": {"alba", "kevin"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSynthesize(t *testing.T) {
	var got ttsRequest
	srv := newTTSServer(t, wavBytes(t, 48000, 4800), &got)
	c := NewClient(srv.URL + "/")

	src, err := c.Synthesize(context.Background(), Request{
		Text:   "return nil",
		Voice:  "alba",
		Speed:  1.25,
		Pitch:  1,
		Format: audio.GetDefaultFormat(),
	})
	require.NoError(t, err)

	assert.Equal(t, ttsRequest{Text: "return nil", Voice: "alba", Speed: 1.25, Pitch: 1, SampleRate: 48000}, got)

	frames, first := drain(t, src)
	assert.Equal(t, 4800, frames)
	require.NotEmpty(t, first)
	assert.InDelta(t, 8192, float64(first[0]), 2)
	assert.Equal(t, first[0], first[1])
}

func TestClientResamples(t *testing.T) {
	var got ttsRequest
	srv := newTTSServer(t, wavBytes(t, 24000, 2400), &got)
	c := NewClient(srv.URL)

	src, err := c.Synthesize(context.Background(), Request{Text: "x", Format: audio.GetDefaultFormat()})
	require.NoError(t, err)

	frames, _ := drain(t, src)
	assert.InDelta(t, 4800, frames, 16)
}

func TestClientReportsServiceErrors(t *testing.T) {
	var got ttsRequest
	srv := newTTSServer(t, nil, &got)
	c := NewClient(srv.URL)

	_, err := c.Synthesize(context.Background(), Request{Text: "fail", Format: audio.GetDefaultFormat()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClientHealthAndVoices(t *testing.T) {
	var got ttsRequest
	srv := newTTSServer(t, nil, &got)
	c := NewClient(srv.URL, WithTimeout(time.Second))

	require.NoError(t, c.Health(context.Background()))

	voices, err := c.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alba", "kevin"}, voices)

	down := NewClient("http://127.0.0.1:1")
	assert.Error(t, down.Health(context.Background()))
}

type fakeSynth struct {
	requests []Request
	err      error
}

func (s *fakeSynth) Synthesize(_ context.Context, req Request) (playback.Source, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	buf := audio.NewPCMBuffer(req.Format, req.Format.Frames(30*time.Millisecond))
	return playback.NewBufferSource(buf, 10*time.Millisecond), nil
}

type lines map[uint32]string

func (l lines) LineText(_ string, line uint32) (string, bool) {
	text, ok := l[line]
	return text, ok
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newNarrator(synth Synthesizer, opts ...NarratorOption) (*LineNarrator, *arbiter.Arbiter, *loop.Loop, *audio.MemorySink) {
	l := loop.NewManual(epoch)
	sink := audio.NewMemorySink()
	a := arbiter.New(l, sink, nil)
	text := lines{4: "\tif err != nil {", 5: "   "}
	return NewLineNarrator(a, synth, text, opts...), a, l, sink
}

func eventually(t *testing.T, l *loop.Loop, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		l.Drain()
		return cond()
	}, time.Second, time.Millisecond)
}

func TestAnnounceLineSpeaksLineText(t *testing.T) {
	synth := &fakeSynth{}
	n, a, l, sink := newNarrator(synth, WithVoice("kevin"), WithSpeed(1.5))

	n.AnnounceLine("file:///a.go", 4)
	active, ok := a.Active()
	require.True(t, ok)
	assert.Equal(t, arbiter.KindSpeech, active.Kind)
	assert.Equal(t, arbiter.PriorityNarration, active.Priority)

	eventually(t, l, func() bool { return active.Result() == arbiter.Completed })
	require.Len(t, synth.requests, 1)
	assert.Equal(t, "if err != nil {", synth.requests[0].Text)
	assert.Equal(t, "kevin", synth.requests[0].Voice)
	assert.Equal(t, 1.5, synth.requests[0].Speed)
	assert.Len(t, sink.Written(), 3)
}

func TestSayFailsOnEmptyText(t *testing.T) {
	synth := &fakeSynth{}
	n, _, l, _ := newNarrator(synth)

	h := n.Say(" ")
	eventually(t, l, func() bool { return h.Result() == arbiter.Failed })
	assert.ErrorIs(t, h.Err(), ErrEmptyText)
	assert.Empty(t, synth.requests)
}

func TestSynthesisFailureFailsRequest(t *testing.T) {
	boom := errors.New("service down")
	n, _, l, _ := newNarrator(&fakeSynth{err: boom})

	h := n.Say("hello")
	eventually(t, l, func() bool { return h.Result() == arbiter.Failed })
	assert.ErrorIs(t, h.Err(), boom)
}

func TestLineText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		line  uint32
		known bool
		want  string
	}{
		{name: "code", text: "\treturn  x + 1", line: 9, known: true, want: "return x + 1"},
		{name: "blank", text: "  \t", line: 9, known: true, want: "blank line 10"},
		{name: "unknown", line: 0, want: "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineText(tt.text, tt.line, tt.known))
		})
	}
}
