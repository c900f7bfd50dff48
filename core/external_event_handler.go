package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const DefaultAvatarEventsAddr = ":19304"

// WireEvent is the JSON envelope used on the avatar event connection.
//
//	{"id": "<event id>", "payload": { /* event-specific fields */ }}
type WireEvent struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// ExternalEventHandler is a WebSocket server that bridges conversation
// sessions with external renderers (the avatar).
//
//   - Output events passed to Emit are serialised as WireEvent and broadcast
//     to every connected client.
//
//   - Incoming WireEvent messages are deserialised using a registered factory
//     and pushed to the input channel given to Initialize, when one was given.
type ExternalEventHandler struct {
	logger    *Logger
	addr      string
	inputChan chan<- *EventPacket
	ctx       context.Context

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]*sync.Mutex
	clientsMu sync.RWMutex

	inputRegistry map[string]func() IExternalInputEvent
	registryMu    sync.RWMutex
}

func NewExternalEventHandler(addr string, logger *Logger) *ExternalEventHandler {
	if logger == nil {
		logger = GetLogger()
	}
	if addr == "" {
		addr = DefaultAvatarEventsAddr
	}
	return &ExternalEventHandler{
		logger:        logger.With(map[string]interface{}{"component": "avatar_events"}),
		addr:          addr,
		ctx:           context.Background(),
		clients:       make(map[*websocket.Conn]*sync.Mutex),
		inputRegistry: make(map[string]func() IExternalInputEvent),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Initialize wires the handler to a session input channel (may be nil) and
// starts the WebSocket server. The server stops when ctx is cancelled.
func (e *ExternalEventHandler) Initialize(ctx context.Context, inputChan chan<- *EventPacket) {
	e.inputChan = inputChan
	e.ctx = ctx
	go e.serve()
}

// Emit serialises an IExternalOutputEvent and sends it to all connected
// clients. Other events are ignored.
func (e *ExternalEventHandler) Emit(event IEvent) {
	ev, ok := event.(IExternalOutputEvent)
	if !ok {
		return
	}
	payload, err := sonic.Marshal(ev)
	if err != nil {
		e.logger.Errorf("marshal output event %q: %v", ev.GetId(), err)
		return
	}
	wire, err := sonic.Marshal(WireEvent{ID: ev.GetId(), Payload: payload})
	if err != nil {
		return
	}
	e.broadcast(wire)
}

// RegisterInputEvent registers a factory for a given event ID. When a client
// sends {"id": id, "payload": {...}}, the factory creates a zero-value event,
// the payload is unmarshalled into it, and the event is pushed to the input
// channel.
func (e *ExternalEventHandler) RegisterInputEvent(id string, factory func() IExternalInputEvent) {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()
	e.inputRegistry[id] = factory
}

// ClientCount reports the number of connected clients.
func (e *ExternalEventHandler) ClientCount() int {
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()
	return len(e.clients)
}

func (e *ExternalEventHandler) sendInput(event IExternalInputEvent) {
	if e.inputChan == nil {
		return
	}
	packet := NewEventPacket(event, EventRelayDestinationSession, "avatar-events")
	select {
	case e.inputChan <- packet:
	case <-e.ctx.Done():
	}
}

func (e *ExternalEventHandler) broadcast(data []byte) {
	e.clientsMu.RLock()
	type target struct {
		conn *websocket.Conn
		mu   *sync.Mutex
	}
	targets := make([]target, 0, len(e.clients))
	for conn, mu := range e.clients {
		targets = append(targets, target{conn, mu})
	}
	e.clientsMu.RUnlock()

	for _, t := range targets {
		t.mu.Lock()
		err := t.conn.WriteMessage(websocket.TextMessage, data)
		t.mu.Unlock()
		if err != nil {
			e.logger.Warnf("write to client %s: %v", t.conn.RemoteAddr(), err)
		}
	}
}

func (e *ExternalEventHandler) serve() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", e.ServeHTTP)
	server := &http.Server{Addr: e.addr, Handler: mux}

	go func() {
		<-e.ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	e.logger.Infof("avatar event server listening on %s", e.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.logger.Errorf("avatar event server: %v", err)
	}
}

// ServeHTTP upgrades the request and serves one avatar client until it disconnects.
func (e *ExternalEventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	e.clientsMu.Lock()
	e.clients[conn] = &sync.Mutex{}
	e.clientsMu.Unlock()

	defer func() {
		e.clientsMu.Lock()
		delete(e.clients, conn)
		e.clientsMu.Unlock()
	}()

	e.logger.Infof("client connected (%s)", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var wire WireEvent
		if err := sonic.Unmarshal(data, &wire); err != nil {
			e.logger.Warnf("unmarshal wire event: %v", err)
			continue
		}

		e.registryMu.RLock()
		factory, ok := e.inputRegistry[wire.ID]
		e.registryMu.RUnlock()
		if !ok {
			e.logger.Warnf("no factory registered for event id %q", wire.ID)
			continue
		}

		ev := factory()
		if err := sonic.Unmarshal(wire.Payload, ev); err != nil {
			e.logger.Warnf("unmarshal payload for %q: %v", wire.ID, err)
			continue
		}

		e.sendInput(ev)
	}
}
