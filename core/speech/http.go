package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/koscakluka/sonicursor/core/playback"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTimeout  = 5 * time.Second
	resampleQuality = 4
)

// Client talks to an HTTP speech service that answers POST /tts with a WAV
// file.
type Client struct {
	baseURL string
	http    *http.Client
	chunk   time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.http = client }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithChunk(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.chunk = d
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		},
		chunk: DefaultChunk,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ttsRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Speed      float64 `json:"speed"`
	Pitch      float64 `json:"pitch"`
	SampleRate uint32  `json:"sample_rate"`
}

func (c *Client) Synthesize(ctx context.Context, req Request) (_ playback.Source, err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	body, err := json.Marshal(ttsRequest{
		Text:       req.Text,
		Voice:      req.Voice,
		Speed:      req.Speed,
		Pitch:      req.Pitch,
		SampleRate: req.Format.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024)); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading audio: %w", err)
	}
	return decodeWAV(data, req, c.chunk)
}

func decodeWAV(data []byte, req Request, chunk time.Duration) (playback.Source, error) {
	streamer, format, err := playback.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding WAV: %w", err)
	}
	defer streamer.Close()

	target := beep.SampleRate(req.Format.SampleRate)
	buf := beep.NewBuffer(beep.Format{SampleRate: target, NumChannels: 2, Precision: 2})
	if format.SampleRate != target {
		buf.Append(beep.Resample(resampleQuality, format.SampleRate, target, streamer))
	} else {
		buf.Append(streamer)
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("error decoding WAV: %w", err)
	}

	return playback.NewStreamerSource(buf.Streamer(0, buf.Len()), req.Format, chunk), nil
}

// Health checks that the service is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech service unhealthy: %s", resp.Status)
	}
	return nil
}

// Voices lists the voices the service offers.
func (c *Client) Voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var body struct {
		Voices []string `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("error unmarshalling JSON: %w", err)
	}
	return body.Voices, nil
}
