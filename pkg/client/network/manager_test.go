package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers pings, sends one chat broadcast and then closes the
// session once it receives a chat message.
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()

		greeting := messages.NewChatBroadcast(messages.ChatBroadcast{Player: "server", Text: "welcome"})
		if err := conn.WriteMessage(websocket.TextMessage, []byte(messages.Encode(greeting))); err != nil {
			return
		}
		for {
			typ, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := decode(typ, b)
			if err != nil {
				continue
			}
			switch msg.Type {
			case messages.MessageTypePing:
				if err := conn.WriteMessage(typ, b); err != nil {
					return
				}
			case messages.MessageTypeChat:
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
		}
	}))
}

func newTestManager(t *testing.T, binary bool) (*NetworkManager, *queue.InMemoryQueue[*messages.Message]) {
	srv := echoServer(t)
	t.Cleanup(srv.Close)
	q := queue.NewInMemoryQueue[*messages.Message](0)
	m := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Binary:             binary,
		ServerMessageQueue: q,
		PingInterval:       20 * time.Millisecond,
	})
	return m, q
}

func TestNetworkManagerSession(t *testing.T) {
	for _, binary := range []bool{false, true} {
		t.Run(map[bool]string{false: "text", true: "binary"}[binary], func(t *testing.T) {
			m, q := newTestManager(t, binary)
			require.NoError(t, m.Start(context.Background()))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			msg, err := q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, messages.MessageTypeChatBroadcast, msg.Type)

			require.Eventually(t, func() bool {
				m.rtt.lock.Lock()
				defer m.rtt.lock.Unlock()
				return len(m.rtt.recentRTTs) >= 2
			}, 5*time.Second, 10*time.Millisecond)
			assert.Equal(t, 0, q.Size(), "pings are not queued")

			require.NoError(t, m.SendMessage(messages.NewChat("gg")))
			select {
			case err := <-m.ErrChan():
				assert.IsType(t, &ErrConnectionClosedByServer{}, err)
			case <-time.After(5 * time.Second):
				t.Fatal("session did not end")
			}
			require.NoError(t, m.Stop())
		})
	}
}

func TestNetworkManagerStop(t *testing.T) {
	m, _ := newTestManager(t, false)
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())

	select {
	case err := <-m.ErrChan():
		assert.IsType(t, &ErrConnectionClosedByClient{}, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.NoError(t, m.Stop())
}

func TestConnectFailure(t *testing.T) {
	m := NewNetworkManager(NewNetworkManagerOptions{
		ServerAddr:         "ws://127.0.0.1:1",
		ServerMessageQueue: queue.NewInMemoryQueue[*messages.Message](0),
	})
	assert.Error(t, m.Start(context.Background()))
}
