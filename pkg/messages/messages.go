package messages

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/value"
)

const (
	// MessageBufferSize represents the maximum size of a decoded frame
	MessageBufferSize = 1 << 20
)

// Message types
const (
	MessageTypeHandshake        = "handshake"
	MessageTypeTurnSubmit       = "turnsubmit"
	MessageTypeTurnBroadcast    = "turnbroadcast"
	MessageTypeFullStateRequest = "fullstaterequest"
	MessageTypeFullStateReply   = "fullstatereply"
	MessageTypeChat             = "chat"
	MessageTypeChatBroadcast    = "chatbroadcast"
	MessageTypePlayerDefeated   = "playerdefeated"
	MessageTypePlayerVictorious = "playervictorious"
	MessageTypeGameDrawn        = "gamedrawn"
	MessageTypeServerShutdown   = "servershutdown"
	MessageTypePing             = "ping"
	MessageTypeServerInfo       = "serverinfo"
	MessageTypeJoinError        = "joinerror"
)

// Message is the envelope exchanged between peers: a type tag and a Value
// payload. ClientID identifies the sending session on the server and is
// never written to the wire.
type Message struct {
	ClientID string
	Type     string
	Payload  *value.Value
}

// New creates a message. A nil payload is replaced by an empty object.
func New(msgType string, payload *value.Value) *Message {
	if payload == nil {
		payload = value.NewObject()
	}
	return &Message{Type: msgType, Payload: payload}
}

func (m *Message) String() string {
	return fmt.Sprintf("%s %s", m.Type, m.Payload)
}

func (m *Message) ToValue() *value.Value {
	return value.NewObject().
		Set("type", value.String(m.Type)).
		Set("payload", m.Payload)
}

// FromValue destructures an envelope. The payload must be an object.
func FromValue(v *value.Value) (*Message, error) {
	if v.Kind() != value.KindObject {
		return nil, &ProtocolError{Reason: fmt.Sprintf("envelope is %s, not object", v.Kind())}
	}
	msgType, err := v.StringAttr("type")
	if err != nil {
		return nil, &ProtocolError{Reason: "invalid type tag", Err: err}
	}
	payload, err := v.ObjectAttr("payload")
	if err != nil {
		return nil, &ProtocolError{Type: msgType, Reason: "invalid payload", Err: err}
	}
	return &Message{Type: msgType, Payload: payload}, nil
}

// Encode returns the wire text of a message.
func Encode(m *Message) string {
	return value.Serialize(m.ToValue())
}

// Decode parses wire text into a message. Malformed text yields a
// *value.ParseError, a malformed envelope a *ProtocolError.
func Decode(text string) (*Message, error) {
	v, err := value.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return FromValue(v)
}
