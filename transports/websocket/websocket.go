package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"avatarvoice/core"
	captureevents "avatarvoice/events/capture"
	convevents "avatarvoice/events/conversation"
	"avatarvoice/handlers/conversation"
	"avatarvoice/protocol"
	"avatarvoice/utils/audio"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = 25 * time.Second
	// maxMessageBytes bounds one inbound frame (a recording chunk or a message).
	maxMessageBytes = 1 << 20
)

// WebSocketService is one browser session's connection. It emits session
// events as protocol messages, plays audio through Sink and records through
// Microphone, and feeds client messages to the orchestrator.
type WebSocketService struct {
	conn   *websocket.Conn
	logger *core.Logger

	mu     sync.Mutex // protects writes
	closed bool

	sink *Sink
	mic  *Microphone
}

// NewWebSocketService wraps an upgraded connection.
func NewWebSocketService(conn *websocket.Conn, logger *core.Logger) *WebSocketService {
	if logger == nil {
		logger = core.GetLogger()
	}
	ws := &WebSocketService{
		conn:   conn,
		logger: logger.With(map[string]interface{}{"component": "websocket_session"}),
	}
	ws.sink = newSink(ws)
	ws.mic = newMicrophone(ws, ws.logger)
	return ws
}

// Sink is the session's audio output. Hand it out through a SinkFactory.
func (ws *WebSocketService) Sink() *Sink {
	return ws.sink
}

// Microphone is the browser microphone, acquired over the connection.
func (ws *WebSocketService) Microphone() *Microphone {
	return ws.mic
}

// NewSink satisfies conversation.SinkFactory.
func (ws *WebSocketService) NewSink(ctx context.Context) (audio.Sink, error) {
	if ws.isClosed() {
		return nil, core.ErrDeviceClosed
	}
	return ws.sink, nil
}

// SendMessage writes one JSON envelope.
func (ws *WebSocketService) SendMessage(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.writeLocked(websocket.TextMessage, data)
}

// SendAudio writes the audio_unit header and its binary PCM frame back to back.
func (ws *WebSocketService) SendAudio(header protocol.AudioUnitPayload, pcm []byte) error {
	data, err := protocol.Marshal(protocol.MsgAudioUnit, header)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.writeLocked(websocket.TextMessage, data); err != nil {
		return err
	}
	return ws.writeLocked(websocket.BinaryMessage, pcm)
}

func (ws *WebSocketService) writeLocked(messageType int, data []byte) error {
	if ws.closed {
		return websocket.ErrCloseSent
	}
	ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.conn.WriteMessage(messageType, data)
}

// Emit forwards session events to the browser. It implements core.EventEmitter.
func (ws *WebSocketService) Emit(event core.IEvent) {
	msgType, payload, ok := toMessage(event)
	if !ok {
		return
	}
	if err := ws.SendMessage(msgType, payload); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		ws.logger.Debug("failed to send event", "event", event.GetId(), "error", err)
	}
}

func toMessage(event core.IEvent) (protocol.MessageType, interface{}, bool) {
	switch ev := event.(type) {
	case *convevents.UserMessageAddedEvent:
		return protocol.MsgUserMessage, protocol.MessagePayload{Text: ev.Text, Expression: ev.Expression}, true
	case *convevents.AssistantMessageAddedEvent:
		return protocol.MsgAssistantMessage, protocol.MessagePayload{
			Text:            ev.Text,
			Expression:      ev.Expression,
			MouthDurationMs: ev.MouthDurationMs,
		}, true
	case *convevents.UnitSpeakingEvent:
		return protocol.MsgUnitSpeaking, protocol.UnitSpeakingPayload{
			Index:            ev.Index,
			Text:             ev.Text,
			ApproxDurationMs: ev.ApproxDurationMs,
		}, true
	case *captureevents.InputBufferUpdatedEvent:
		return protocol.MsgInputBuffer, protocol.InputBufferPayload{Text: ev.Text}, true
	case *captureevents.CaptureStateChangedEvent:
		return protocol.MsgCaptureState, protocol.CaptureStatePayload{State: ev.State}, true
	case *captureevents.CaptureFailedEvent:
		return protocol.MsgAlert, protocol.AlertPayload{Kind: ev.Kind, Message: ev.Message}, true
	default:
		return "", nil, false
	}
}

// Serve reads client messages until the connection drops or ctx ends and
// applies them to session.
func (ws *WebSocketService) Serve(ctx context.Context, session *conversation.Orchestrator) error {
	ws.conn.SetReadLimit(maxMessageBytes)
	ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error {
		ws.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		ws.Close()
	}()
	go ws.heartbeat(ctx)

	for {
		messageType, message, err := ws.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("websocket session: read: %w", err)
		}
		ws.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.BinaryMessage:
			ws.mic.push(message)
		case websocket.TextMessage:
			ws.dispatch(session, message)
		}
	}
}

func (ws *WebSocketService) dispatch(session *conversation.Orchestrator, message []byte) {
	msgType, raw, err := protocol.Unmarshal(message)
	if err != nil {
		ws.logger.Warn("ignoring malformed message", "error", err)
		return
	}

	switch msgType {
	case protocol.MsgSubmitText:
		p, err := protocol.UnmarshalPayload[protocol.SubmitTextPayload](raw)
		if err != nil {
			ws.logger.Warn("ignoring submit_text", "error", err)
			return
		}
		session.Submit(p.Text)
	case protocol.MsgRecordStart:
		session.StartRecording()
	case protocol.MsgRecordStop:
		session.StopRecording()
	case protocol.MsgGesture:
		session.Gesture()
	case protocol.MsgMicGranted:
		p, err := protocol.UnmarshalPayload[protocol.MicGrantedPayload](raw)
		if err != nil {
			ws.logger.Warn("ignoring mic_granted", "error", err)
			return
		}
		ws.mic.granted(p)
	case protocol.MsgMicDenied:
		p, _ := protocol.UnmarshalPayload[protocol.MicDeniedPayload](raw)
		ws.mic.denied(p.Reason)
	case protocol.MsgPlaybackEnded:
		p, err := protocol.UnmarshalPayload[protocol.PlaybackEndedPayload](raw)
		if err != nil {
			return
		}
		ws.sink.ended(p.Seq)
	default:
		ws.logger.Debug("ignoring unknown message", "type", msgType)
	}
}

// heartbeat sends periodic pings to keep the connection alive
func (ws *WebSocketService) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.mu.Lock()
			err := ws.writeLocked(websocket.PingMessage, nil)
			ws.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (ws *WebSocketService) isClosed() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.closed
}

// Close shuts down the WebSocket connection and unblocks pending playback
// and microphone requests.
func (ws *WebSocketService) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.conn.SetWriteDeadline(time.Now().Add(time.Second))
	ws.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.closed = true
	ws.mu.Unlock()

	ws.sink.Close()
	ws.mic.close()
	return ws.conn.Close()
}
