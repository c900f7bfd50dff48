package core

type IEvent interface {
	GetId() string // Returns the unique identifier of the event.
}

// IExternalOutputEvent is implemented by events that leave the conversation
// core: avatar renderers and browser clients consume them.
type IExternalOutputEvent interface {
	IEvent
}

// IExternalInputEvent is implemented by events that originate outside the
// conversation core (browser, terminal, avatar renderer) and are fed to a
// session's event loop.
type IExternalInputEvent interface {
	IEvent
}

// EventEmitter delivers output events. Emit must not block on slow consumers.
type EventEmitter interface {
	Emit(event IEvent)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(event IEvent)

func (f EmitterFunc) Emit(event IEvent) {
	f(event)
}

// MultiEmitter fans an event out to every non-nil emitter in order.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(event IEvent) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(event)
		}
	}
}

// NopEmitter discards every event.
var NopEmitter EventEmitter = EmitterFunc(func(IEvent) {})
