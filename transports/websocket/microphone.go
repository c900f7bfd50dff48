package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"avatarvoice/core"
	"avatarvoice/handlers/capture"
	"avatarvoice/protocol"
)

const micChunkBuffer = 256

type micReply struct {
	stream *micStream
	err    error
}

type Microphone struct {
	ws     *WebSocketService
	logger *core.Logger

	mu      sync.Mutex
	pending chan micReply
	active  *micStream
	closed  bool
}

func newMicrophone(ws *WebSocketService, logger *core.Logger) *Microphone {
	return &Microphone{ws: ws, logger: logger}
}

// Open blocks until the browser answers mic_request or ctx is cancelled.
func (m *Microphone) Open(ctx context.Context) (capture.MicStream, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, core.ErrDeviceClosed
	}
	reply := make(chan micReply, 1)
	m.pending = reply
	m.mu.Unlock()

	if err := m.ws.SendMessage(protocol.MsgMicRequest, nil); err != nil {
		m.clearPending(reply)
		return nil, fmt.Errorf("%w: %v", core.ErrMicrophoneUnavailable, err)
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return nil, r.err
		}
		return r.stream, nil
	case <-ctx.Done():
		m.clearPending(reply)
		select {
		case r := <-reply:
			if r.stream != nil {
				r.stream.Close()
			}
		default:
		}
		return nil, ctx.Err()
	}
}

func (m *Microphone) clearPending(reply chan micReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == reply {
		m.pending = nil
	}
}

// answer resolves the pending Open. A grant activates the stream here, before
// the next frame is read, so no chunk is lost.
func (m *Microphone) answer(format *capture.RecordingFormat, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		m.logger.Debug("microphone answer without a request")
		return
	}
	r := micReply{err: err}
	if format != nil {
		if m.active != nil {
			m.active.closeLocked()
		}
		r.stream = &micStream{mic: m, format: *format, chunks: make(chan []byte, micChunkBuffer)}
		m.active = r.stream
	}
	m.pending <- r
	m.pending = nil
}

func (m *Microphone) granted(p protocol.MicGrantedPayload) {
	format := capture.RecordingFormat{
		MimeType:   p.MimeType,
		PCM:        p.PCM,
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
	}
	switch {
	case format.PCM && format.Channels == 0:
		format.Channels = 1
	case !format.PCM && format.MimeType == "":
		format.MimeType = "audio/webm"
	}
	m.answer(&format, nil)
}

func (m *Microphone) denied(reason string) {
	err := core.ErrMicrophoneUnavailable
	if reason != "" {
		err = fmt.Errorf("%w: %s", core.ErrMicrophoneUnavailable, reason)
	}
	m.answer(nil, err)
}

// push delivers one binary frame to the open stream, if any.
func (m *Microphone) push(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	select {
	case m.active.chunks <- chunk:
	default:
		m.logger.Warn("recording chunk dropped", "bytes", len(chunk))
	}
}

func (m *Microphone) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.pending != nil {
		m.pending <- micReply{err: errors.Join(core.ErrMicrophoneUnavailable, core.ErrDeviceClosed)}
		m.pending = nil
	}
	if m.active != nil {
		m.active.closeLocked()
	}
}

type micStream struct {
	mic      *Microphone
	format   capture.RecordingFormat
	chunks   chan []byte
	isClosed bool
}

func (s *micStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *micStream) Format() capture.RecordingFormat {
	return s.format
}

func (s *micStream) Close() error {
	s.mic.mu.Lock()
	defer s.mic.mu.Unlock()
	s.closeLocked()
	return nil
}

// closeLocked requires s.mic.mu.
func (s *micStream) closeLocked() {
	if s.isClosed {
		return
	}
	s.isClosed = true
	close(s.chunks)
	if s.mic.active == s {
		s.mic.active = nil
	}
}
