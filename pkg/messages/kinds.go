package messages

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/config"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/value"
)

// Handshake is the first message a client sends. Token is empty when the
// server runs without authentication.
type Handshake struct {
	Nickname string
	Token    string
}

func NewHandshake(h Handshake) *Message {
	payload := value.NewObject().Set("nickname", value.String(h.Nickname))
	if h.Token != "" {
		payload.Set("token", value.String(h.Token))
	}
	return New(MessageTypeHandshake, payload)
}

func ParseHandshake(m *Message) (Handshake, error) {
	if err := expectType(m, MessageTypeHandshake); err != nil {
		return Handshake{}, err
	}
	nickname, err := m.Payload.StringAttr("nickname")
	if err != nil {
		return Handshake{}, payloadErr(m, err)
	}
	if nickname == "" {
		return Handshake{}, &ProtocolError{Type: m.Type, Reason: "empty nickname"}
	}
	h := Handshake{Nickname: nickname}
	if t := m.Payload.OptAttr("token"); !t.IsNull() {
		if h.Token, err = t.AsString(); err != nil {
			return Handshake{}, payloadErr(m, err)
		}
	}
	return h, nil
}

func NewTurnSubmit(turn *gametypes.Turn) *Message {
	return New(MessageTypeTurnSubmit, value.NewObject().Set("turn", turn.ToValue()))
}

// ParseTurnSubmit decodes the submitted turn against the state it targets.
// Unknown references surface as a *gametypes.ConstructionError.
func ParseTurnSubmit(m *Message, s *gametypes.GameState) (*gametypes.Turn, error) {
	if err := expectType(m, MessageTypeTurnSubmit); err != nil {
		return nil, err
	}
	tv, err := m.Payload.ObjectAttr("turn")
	if err != nil {
		return nil, payloadErr(m, err)
	}
	return gametypes.TurnFromValue(tv, s)
}

// TurnBroadcast carries an executed turn and the hash of the state it
// produced on the server.
type TurnBroadcast struct {
	Turn      *value.Value
	StateHash value.Digest
}

// HasHash reports whether the server supplied a state hash.
func (b TurnBroadcast) HasHash() bool {
	return b.StateHash != value.Digest{}
}

// DecodeTurn decodes the broadcast turn against the local state.
func (b TurnBroadcast) DecodeTurn(s *gametypes.GameState) (*gametypes.Turn, error) {
	return gametypes.TurnFromValue(b.Turn, s)
}

func NewTurnBroadcast(executed *gametypes.ExecutedTurn) *Message {
	return New(MessageTypeTurnBroadcast, value.NewObject().
		Set("turn", executed.Turn().ToValue()).
		Set("statehash", value.String(executed.StateHash.String())))
}

func ParseTurnBroadcast(m *Message) (TurnBroadcast, error) {
	if err := expectType(m, MessageTypeTurnBroadcast); err != nil {
		return TurnBroadcast{}, err
	}
	tv, err := m.Payload.ObjectAttr("turn")
	if err != nil {
		return TurnBroadcast{}, payloadErr(m, err)
	}
	b := TurnBroadcast{Turn: tv}
	if h := m.Payload.OptAttr("statehash"); !h.IsNull() {
		text, err := h.AsString()
		if err != nil {
			return TurnBroadcast{}, payloadErr(m, err)
		}
		if b.StateHash, err = value.ParseDigest(text); err != nil {
			return TurnBroadcast{}, payloadErr(m, err)
		}
	}
	return b, nil
}

// NewFullStateRequest asks for the authoritative state. reference is the
// hash of the requester's state; a zero digest requests the state
// unconditionally.
func NewFullStateRequest(reference value.Digest) *Message {
	payload := value.NewObject().Set("referencestatehash", value.Null())
	if reference != (value.Digest{}) {
		payload.Set("referencestatehash", value.String(reference.String()))
	}
	return New(MessageTypeFullStateRequest, payload)
}

func ParseFullStateRequest(m *Message) (value.Digest, error) {
	if err := expectType(m, MessageTypeFullStateRequest); err != nil {
		return value.Digest{}, err
	}
	ref := m.Payload.OptAttr("referencestatehash")
	if ref.IsNull() {
		return value.Digest{}, nil
	}
	text, err := ref.AsString()
	if err != nil {
		return value.Digest{}, payloadErr(m, err)
	}
	d, err := value.ParseDigest(text)
	if err != nil {
		return value.Digest{}, payloadErr(m, err)
	}
	return d, nil
}

// NewFullStateReply carries the state, or null when the requester's
// reference hash already matches. player names the recipient's player.
func NewFullStateReply(s *gametypes.GameState, player string) *Message {
	payload := value.NewObject().
		Set("state", value.Null()).
		Set("player", value.String(player))
	if s != nil {
		payload.Set("state", s.ToValue())
	}
	return New(MessageTypeFullStateReply, payload)
}

// ParseFullStateReply rebuilds the carried state. The state is nil when the
// server replied with null.
func ParseFullStateReply(m *Message, data *config.GameData) (*gametypes.GameState, string, error) {
	if err := expectType(m, MessageTypeFullStateReply); err != nil {
		return nil, "", err
	}
	player, err := m.Payload.StringAttr("player")
	if err != nil {
		return nil, "", payloadErr(m, err)
	}
	sv := m.Payload.OptAttr("state")
	if sv.IsNull() {
		return nil, player, nil
	}
	s, err := gametypes.GameStateFromValue(sv, data)
	if err != nil {
		return nil, "", err
	}
	return s, player, nil
}

func NewChat(text string) *Message {
	return New(MessageTypeChat, value.NewObject().Set("text", value.String(text)))
}

func ParseChat(m *Message) (string, error) {
	if err := expectType(m, MessageTypeChat); err != nil {
		return "", err
	}
	text, err := m.Payload.StringAttr("text")
	if err != nil {
		return "", payloadErr(m, err)
	}
	return text, nil
}

type ChatBroadcast struct {
	Player string
	Color  string
	Text   string
}

func NewChatBroadcast(c ChatBroadcast) *Message {
	return New(MessageTypeChatBroadcast, value.NewObject().
		Set("player", value.String(c.Player)).
		Set("color", value.String(c.Color)).
		Set("text", value.String(c.Text)))
}

func ParseChatBroadcast(m *Message) (ChatBroadcast, error) {
	if err := expectType(m, MessageTypeChatBroadcast); err != nil {
		return ChatBroadcast{}, err
	}
	var c ChatBroadcast
	var err error
	if c.Player, err = m.Payload.StringAttr("player"); err != nil {
		return ChatBroadcast{}, payloadErr(m, err)
	}
	if c.Color, err = m.Payload.StringAttr("color"); err != nil {
		return ChatBroadcast{}, payloadErr(m, err)
	}
	if c.Text, err = m.Payload.StringAttr("text"); err != nil {
		return ChatBroadcast{}, payloadErr(m, err)
	}
	return c, nil
}

func NewPlayerDefeated(player string) *Message {
	return New(MessageTypePlayerDefeated, value.NewObject().Set("playername", value.String(player)))
}

func NewPlayerVictorious(player string) *Message {
	return New(MessageTypePlayerVictorious, value.NewObject().Set("playername", value.String(player)))
}

// NewGameDrawn announces a match that ended with every player defeated.
func NewGameDrawn() *Message {
	return New(MessageTypeGameDrawn, nil)
}

// ParsePlayerName reads the player of a playerdefeated or playervictorious
// message.
func ParsePlayerName(m *Message) (string, error) {
	if m.Type != MessageTypePlayerDefeated && m.Type != MessageTypePlayerVictorious {
		return "", &ProtocolError{Type: m.Type, Reason: "message carries no player name"}
	}
	name, err := m.Payload.StringAttr("playername")
	if err != nil {
		return "", payloadErr(m, err)
	}
	return name, nil
}

func NewServerShutdown() *Message {
	return New(MessageTypeServerShutdown, nil)
}

// NewPing creates a latency probe carrying the sender's clock in
// milliseconds. The receiver echoes it unchanged.
func NewPing(timestamp int64) *Message {
	return New(MessageTypePing, value.NewObject().Set("timestamp", value.Int64(timestamp)))
}

func ParsePing(m *Message) (int64, error) {
	if err := expectType(m, MessageTypePing); err != nil {
		return 0, err
	}
	ts, err := m.Payload.Int64Attr("timestamp")
	if err != nil {
		return 0, payloadErr(m, err)
	}
	return ts, nil
}

// ServerInfo describes a server to clients browsing for a match.
type ServerInfo struct {
	Name    string
	Players int
	InGame  bool
	Round   int
}

func NewServerInfo(info ServerInfo) *Message {
	return New(MessageTypeServerInfo, value.NewObject().
		Set("name", value.String(info.Name)).
		Set("players", value.Int(info.Players)).
		Set("ingame", value.Bool(info.InGame)).
		Set("round", value.Int(info.Round)))
}

func ParseServerInfo(m *Message) (ServerInfo, error) {
	if err := expectType(m, MessageTypeServerInfo); err != nil {
		return ServerInfo{}, err
	}
	var info ServerInfo
	var err error
	if info.Name, err = m.Payload.StringAttr("name"); err != nil {
		return ServerInfo{}, payloadErr(m, err)
	}
	if info.Players, err = m.Payload.IntAttr("players"); err != nil {
		return ServerInfo{}, payloadErr(m, err)
	}
	if info.InGame, err = m.Payload.BoolAttr("ingame"); err != nil {
		return ServerInfo{}, payloadErr(m, err)
	}
	if info.Round, err = m.Payload.IntAttr("round"); err != nil {
		return ServerInfo{}, payloadErr(m, err)
	}
	return info, nil
}

func NewJoinError(reason string) *Message {
	return New(MessageTypeJoinError, value.NewObject().Set("reason", value.String(reason)))
}

func ParseJoinError(m *Message) (string, error) {
	if err := expectType(m, MessageTypeJoinError); err != nil {
		return "", err
	}
	reason, err := m.Payload.StringAttr("reason")
	if err != nil {
		return "", payloadErr(m, err)
	}
	return reason, nil
}

// Describe is a short human readable summary used in logs.
func Describe(m *Message) string {
	if m.ClientID != "" {
		return fmt.Sprintf("%s from %s", m.Type, m.ClientID)
	}
	return m.Type
}
