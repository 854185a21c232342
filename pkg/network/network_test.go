package network

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authproviders "github.com/cbodonnell/evervoid/pkg/auth/providers"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/cbodonnell/evervoid/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type rejectingAuthProvider struct{}

func (rejectingAuthProvider) VerifyToken(context.Context, string) (*authproviders.TokenClaims, error) {
	return nil, errors.New("token expired")
}

type harness struct {
	ctx     context.Context
	manager *NetworkManager
	queue   *queue.InMemoryQueue[*messages.Message]
	url     string
}

func newHarness(t *testing.T, auth authproviders.AuthProvider, limit RateLimit) *harness {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemoryQueue[*messages.Message](0)
	nm := NewNetworkManager(NewNetworkManagerOptions{
		AuthProvider:  auth,
		ClientManager: NewClientManager(limit),
		MessageQueue:  q,
	})
	srv := httptest.NewServer(nm.Handler(ctx))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &harness{
		ctx:     ctx,
		manager: nm,
		queue:   q,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, m *messages.Message) {
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(messages.Encode(m))))
}

func readMessage(t *testing.T, conn *websocket.Conn) (*messages.Message, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, binary, err := ReadMessageFromWS(ctx, conn)
	require.NoError(t, err)
	return m, binary
}

func TestPingIsEchoed(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	conn := h.dial(t)

	sendText(t, conn, messages.NewPing(1234))
	reply, binary := readMessage(t, conn)
	assert.False(t, binary)
	ts, err := messages.ParsePing(reply)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), ts)
	assert.Equal(t, 0, h.queue.Size())
}

func TestBinaryFramesAreAnsweredInKind(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	conn := h.dial(t)

	frame, err := messages.SerializeFrame(messages.NewPing(99), 1)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageBinary, frame))

	reply, binary := readMessage(t, conn)
	assert.True(t, binary)
	ts, err := messages.ParsePing(reply)
	require.NoError(t, err)
	assert.Equal(t, int64(99), ts)
}

func TestHandshakeIsQueued(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	conn := h.dial(t)

	sendText(t, conn, messages.NewHandshake(messages.Handshake{Nickname: "alice"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := h.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, messages.MessageTypeHandshake, m.Type)
	assert.NotEmpty(t, m.ClientID)
	assert.True(t, h.manager.ClientManager.Exists(m.ClientID))

	event := <-h.manager.ClientManager.GetConnectionEventChan()
	assert.Equal(t, ConnectionEvent{ClientID: m.ClientID, Type: ConnectionEventTypeConnect}, event)
}

func TestRejectedHandshake(t *testing.T) {
	h := newHarness(t, rejectingAuthProvider{}, RateLimit{})
	conn := h.dial(t)

	sendText(t, conn, messages.NewHandshake(messages.Handshake{Nickname: "alice", Token: "stale"}))
	reply, _ := readMessage(t, conn)
	reason, err := messages.ParseJoinError(reply)
	require.NoError(t, err)
	assert.Contains(t, reason, "token expired")
	assert.Equal(t, 0, h.queue.Size())
}

func TestMalformedMessageKeepsSession(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	conn := h.dial(t)

	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte("{type: ")))
	require.NoError(t, conn.Write(context.Background(), websocket.MessageBinary, []byte{0x01, 0x02}))
	sendText(t, conn, messages.NewPing(7))

	reply, _ := readMessage(t, conn)
	assert.Equal(t, messages.MessageTypePing, reply.Type)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, nil, RateLimit{PerSecond: 0.001, Burst: 2})
	conn := h.dial(t)

	for i := 0; i < 5; i++ {
		sendText(t, conn, messages.NewChat("spam"))
	}
	sendText(t, conn, messages.NewPing(1))

	require.Eventually(t, func() bool { return h.queue.Size() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Never(t, func() bool { return h.queue.Size() > 2 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestRateLimitExemptions(t *testing.T) {
	h := newHarness(t, nil, RateLimit{PerSecond: 0.001, Burst: 1})
	conn := h.dial(t)

	sendText(t, conn, messages.NewChat("first"))
	sendText(t, conn, messages.NewChat("limited"))
	sendText(t, conn, messages.NewFullStateRequest(value.Digest{}))
	sendText(t, conn, messages.NewTurnSubmit(gametypes.NewTurn(0)))

	require.Eventually(t, func() bool { return h.queue.Size() == 3 }, 5*time.Second, 10*time.Millisecond)
	queued, err := h.queue.ReadAllMessages()
	require.NoError(t, err)
	types := make([]string, 0, len(queued))
	for _, m := range queued {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{
		messages.MessageTypeChat,
		messages.MessageTypeFullStateRequest,
		messages.MessageTypeTurnSubmit,
	}, types)
}

func TestCloseClient(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	conn := h.dial(t)

	connected := <-h.manager.ClientManager.GetConnectionEventChan()
	require.NoError(t, h.manager.CloseClient(connected.ClientID, "too slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusTryAgainLater, websocket.CloseStatus(err))

	require.Eventually(t, func() bool { return !h.manager.ClientManager.Exists(connected.ClientID) }, 5*time.Second, 10*time.Millisecond)
	assert.Error(t, h.manager.CloseClient("missing", "gone"))
}

func TestDisconnectEmitsEvent(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	conn := h.dial(t)

	connected := <-h.manager.ClientManager.GetConnectionEventChan()
	require.Equal(t, ConnectionEventTypeConnect, connected.Type)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	select {
	case event := <-h.manager.ClientManager.GetConnectionEventChan():
		assert.Equal(t, ConnectionEvent{ClientID: connected.ClientID, Type: ConnectionEventTypeDisconnect}, event)
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect event")
	}
	assert.False(t, h.manager.ClientManager.Exists(connected.ClientID))
}

func TestBroadcastMessage(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	a := h.dial(t)
	b := h.dial(t)

	require.Eventually(t, func() bool { return len(h.manager.ClientManager.GetClients()) == 2 }, 5*time.Second, 10*time.Millisecond)
	h.manager.BroadcastMessage(context.Background(), messages.NewServerShutdown())

	for _, conn := range []*websocket.Conn{a, b} {
		m, _ := readMessage(t, conn)
		assert.Equal(t, messages.MessageTypeServerShutdown, m.Type)
	}
}

func TestSendToUnknownClient(t *testing.T) {
	h := newHarness(t, nil, RateLimit{})
	err := h.manager.SendMessageToClient(context.Background(), "nobody", messages.NewServerShutdown())
	assert.Error(t, err)
}
