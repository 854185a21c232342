package messages

import "fmt"

// ProtocolError reports an unknown message type or a payload missing
// required attributes.
type ProtocolError struct {
	Type   string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol error"
	if e.Type != "" {
		msg = fmt.Sprintf("protocol error in %s", e.Type)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func expectType(m *Message, msgType string) error {
	if m.Type != msgType {
		return &ProtocolError{Type: m.Type, Reason: fmt.Sprintf("expected %s", msgType)}
	}
	return nil
}

func payloadErr(m *Message, err error) error {
	return &ProtocolError{Type: m.Type, Reason: "invalid payload", Err: err}
}
