package deepgram

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/sonicursor/core/audio"
)

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

// streamSource plays mono linear16 audio as it arrives on the websocket.
type streamSource struct {
	ctx    context.Context
	ws     *websocket.Conn
	format audio.Format

	chunks chan []byte
	// leftover holds an odd trailing byte between messages.
	leftover []byte

	mu     sync.Mutex
	closed bool
	err    error
}

func newStreamSource(ctx context.Context, ws *websocket.Conn, format audio.Format) *streamSource {
	return &streamSource{
		ctx:    ctx,
		ws:     ws,
		format: format,
		chunks: make(chan []byte, 16),
	}
}

func (s *streamSource) readMessages() {
	defer close(s.chunks)

	for {
		msgType, msg, err := s.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !s.isClosed() {
				s.setErr(fmt.Errorf("websocket read error: %w", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			select {
			case s.chunks <- msg:
			case <-s.ctx.Done():
				return
			}
		case websocket.TextMessage:
			var parsed websocketMessage
			if err := json.Unmarshal(msg, &parsed); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}
			switch parsed.Type {
			case "Flushed":
				_ = s.send(closeMsg)
				return
			case "Warning", "Error":
				logger.Warn("deepgram reported a problem", "message", string(msg))
			}
		}
	}
}

func (s *streamSource) Next() (audio.PCMBuffer, bool) {
	for {
		var (
			data []byte
			ok   bool
		)
		select {
		case data, ok = <-s.chunks:
		case <-s.ctx.Done():
			return audio.PCMBuffer{}, false
		}
		if !ok {
			return audio.PCMBuffer{}, false
		}

		if len(s.leftover) > 0 {
			data = append(s.leftover, data...)
			s.leftover = nil
		}
		if len(data)%2 == 1 {
			s.leftover = []byte{data[len(data)-1]}
			data = data[:len(data)-1]
		}
		if len(data) == 0 {
			continue
		}
		return s.toPCM(data), true
	}
}

func (s *streamSource) toPCM(data []byte) audio.PCMBuffer {
	frames := len(data) / 2
	ch := int(s.format.Channels)
	buf := audio.NewPCMBuffer(s.format, frames)
	for i := range frames {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		for c := range ch {
			buf.Samples[i*ch+c] = sample
		}
	}
	return buf
}

// Err reports read failures. Cancellation is not a failure.
func (s *streamSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := s.ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *streamSource) send(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("websocket connection closed")
	}
	if err := s.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

func (s *streamSource) Close() error {
	_ = s.send(closeMsg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ws.Close()
}

func (s *streamSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *streamSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
