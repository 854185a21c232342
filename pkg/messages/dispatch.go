package messages

import "fmt"

// HandlerFunc handles one message type.
type HandlerFunc func(m *Message) error

// Dispatcher routes messages to handlers by exact type tag. There is no
// fallback route: unknown types are protocol errors.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for msgType. Registering a type twice panics.
func (d *Dispatcher) Handle(msgType string, h HandlerFunc) {
	if _, exists := d.handlers[msgType]; exists {
		panic(fmt.Sprintf("messages: handler for %q already registered", msgType))
	}
	d.handlers[msgType] = h
}

// Dispatch calls the handler registered for m.Type.
func (d *Dispatcher) Dispatch(m *Message) error {
	h, ok := d.handlers[m.Type]
	if !ok {
		return &ProtocolError{Type: m.Type, Reason: "unknown message type"}
	}
	return h(m)
}

func (d *Dispatcher) Handles(msgType string) bool {
	_, ok := d.handlers[msgType]
	return ok
}
