// Package deepgram synthesizes speech with Deepgram's streaming websocket
// API.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/sonicursor/core/playback"
	"github.com/koscakluka/sonicursor/core/speech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultEndpoint = "wss://api.deepgram.com/v1/speak"

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrInvalidVoice  = errors.New("invalid voice")
)

type Synthesizer struct {
	apiKey   string
	voice    Voice
	endpoint string
	dialer   *websocket.Dialer
}

type Option func(*Synthesizer)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(s *Synthesizer) { s.apiKey = key }
}

func WithVoice(voice Voice) Option {
	return func(s *Synthesizer) { s.voice = voice }
}

// WithEndpoint points the synthesizer at another websocket URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Synthesizer) { s.endpoint = endpoint }
}

func NewSynthesizer(opts ...Option) (*Synthesizer, error) {
	s := &Synthesizer{
		voice:    defaultVoice,
		endpoint: defaultEndpoint,
		dialer:   websocket.DefaultDialer,
	}
	s.apiKey, _ = os.LookupEnv("DEEPGRAM_API_KEY")
	for _, opt := range opts {
		opt(s)
	}

	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if !slices.Contains(GetAvailableVoices(), s.voice) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVoice, s.voice)
	}
	return s, nil
}

// Synthesize opens a websocket for a single utterance. Request voices that
// name a Deepgram model override the configured voice.
func (s *Synthesizer) Synthesize(ctx context.Context, req speech.Request) (_ playback.Source, err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	voice := s.voice
	if v := Voice(req.Voice); slices.Contains(GetAvailableVoices(), v) {
		voice = v
	}
	span.SetAttributes(attribute.String("speech.voice", string(voice)))

	conn, err := s.connect(ctx, voice, req.Format.SampleRate)
	if err != nil {
		return nil, err
	}

	src := newStreamSource(ctx, conn, req.Format)
	if err := src.send(speakMsg{Type: "Speak", Text: req.Text}); err != nil {
		_ = src.Close()
		return nil, err
	}
	if err := src.send(flushMsg); err != nil {
		_ = src.Close()
		return nil, err
	}

	go src.readMessages()
	return src, nil
}

func (s *Synthesizer) connect(ctx context.Context, voice Voice, sampleRate uint32) (*websocket.Conn, error) {
	endpoint, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	query := url.Values{}
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.FormatUint(uint64(sampleRate), 10))
	query.Set("model", string(voice))
	query.Set("container", "none")
	endpoint.RawQuery = query.Encode()

	conn, _, err := s.dialer.DialContext(ctx, endpoint.String(),
		http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}
