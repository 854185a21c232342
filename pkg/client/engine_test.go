package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/evervoid/pkg/config"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/geometry"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(msg *messages.Message) error {
	return m.Called(msg).Error(0)
}

// sent returns the messages of the given type passed to SendMessage.
func (m *mockSender) sent(msgType string) []*messages.Message {
	var out []*messages.Message
	for _, c := range m.Calls {
		msg := c.Arguments.Get(0).(*messages.Message)
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

type harness struct {
	data   *config.GameData
	server *gametypes.GameState
	sender *mockSender
	queue  *queue.InMemoryQueue[*messages.Message]
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	data, err := config.DefaultGameData()
	require.NoError(t, err)
	server, err := gametypes.NewGame([]gametypes.PlayerSpec{
		{Name: "alice", Race: "round", Color: "red"},
		{Name: "bob", Race: "square", Color: "blue"},
	}, data, 42)
	require.NoError(t, err)

	sender := &mockSender{}
	sender.On("SendMessage", mock.Anything).Return(nil)
	q := queue.NewInMemoryQueue[*messages.Message](0)
	return &harness{
		data:   data,
		server: server,
		sender: sender,
		queue:  q,
		engine: NewEngine(NewEngineOptions{
			GameData: data,
			Nickname: "alice",
			Sender:   sender,
			Inbound:  q,
		}),
	}
}

// deliver queues server messages and runs one engine update.
func (h *harness) deliver(t *testing.T, msgs ...*messages.Message) {
	t.Helper()
	for _, m := range msgs {
		// round trip through the wire text as a real client would
		decoded, err := messages.Decode(messages.Encode(m))
		require.NoError(t, err)
		require.NoError(t, h.queue.Enqueue(decoded))
	}
	h.engine.Update()
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.engine.Join())
	h.deliver(t, messages.NewFullStateReply(h.server, "alice"))
	require.Equal(t, StatusPlaying, h.engine.Status())
}

// serverCommit applies the turns the engine submitted, plus extra, on the
// server state.
func (h *harness) serverCommit(t *testing.T, extra ...*gametypes.Turn) *gametypes.ExecutedTurn {
	t.Helper()
	var turns []*gametypes.Turn
	for _, m := range h.sender.sent(messages.MessageTypeTurnSubmit) {
		turn, err := messages.ParseTurnSubmit(m, h.server)
		require.NoError(t, err)
		if turn.Round == h.server.Round() {
			turns = append(turns, turn)
		}
	}
	turns = append(turns, extra...)
	executed, err := h.server.ApplyTurn(gametypes.MergeTurns(h.server.Round(), turns...))
	require.NoError(t, err)
	return executed
}

func (h *harness) scoutMove(t *testing.T) gametypes.Action {
	t.Helper()
	ship := h.engine.State().EntitiesOf("alice", gametypes.EntityShip)[0]
	destinations := h.engine.State().ValidDestinations(ship.ID)
	require.NotEmpty(t, destinations)
	return gametypes.NewMoveShip("alice", ship.ID, destinations[len(destinations)-1].Origin)
}

func TestJoin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Join())

	assert.Equal(t, StatusJoining, h.engine.Status())
	sent := h.sender.sent(messages.MessageTypeHandshake)
	require.Len(t, sent, 1)
	hs, err := messages.ParseHandshake(sent[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", hs.Nickname)
	assert.Nil(t, h.engine.State())

	h.deliver(t, messages.NewServerInfo(messages.ServerInfo{Name: "test", Players: 1}))
	assert.Equal(t, 1, h.engine.ServerInfo().Players)
	assert.Equal(t, StatusJoining, h.engine.Status())
}

func TestTurnCycle(t *testing.T) {
	h := newHarness(t)
	var steps []Step
	h.engine.Subscribe(func(s Step) { steps = append(steps, s) })
	h.start(t)

	assert.Equal(t, "alice", h.engine.Player())
	assert.Equal(t, h.server.Hash(), h.engine.State().Hash())

	move := h.scoutMove(t)
	require.NoError(t, h.engine.AddAction(move))
	require.Len(t, h.engine.PendingActions(), 1)
	require.NoError(t, h.engine.CommitTurn())

	assert.ErrorIs(t, h.engine.CommitTurn(), ErrAlreadyCommitted)
	assert.ErrorIs(t, h.engine.AddAction(move), ErrAlreadyCommitted)

	executed := h.serverCommit(t)
	require.Len(t, executed.Actions, 1)
	h.deliver(t, messages.NewTurnBroadcast(executed))

	assert.Equal(t, 1, h.engine.State().Round())
	assert.Equal(t, h.server.Hash(), h.engine.State().Hash())
	assert.Empty(t, h.sender.sent(messages.MessageTypeFullStateRequest))
	require.Len(t, steps, len(executed.Events))
	for i, s := range steps {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, len(executed.Events), s.Total)
		assert.Equal(t, 0, s.Round)
	}

	// the next round accepts actions again
	assert.Empty(t, h.engine.PendingActions())
	require.NoError(t, h.engine.CommitTurn())
}

func TestStaleTurnIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	executed := h.serverCommit(t)
	h.deliver(t, messages.NewTurnBroadcast(executed))
	require.Equal(t, 1, h.engine.State().Round())

	h.deliver(t, messages.NewTurnBroadcast(executed))
	assert.Equal(t, 1, h.engine.State().Round())
	assert.Empty(t, h.sender.sent(messages.MessageTypeFullStateRequest))
}

func TestHashMismatchRequestsState(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	executed := h.serverCommit(t)
	tampered := *executed
	tampered.StateHash[0] ^= 0xff
	h.deliver(t, messages.NewTurnBroadcast(&tampered))

	requests := h.sender.sent(messages.MessageTypeFullStateRequest)
	require.Len(t, requests, 1)
	ref, err := messages.ParseFullStateRequest(requests[0])
	require.NoError(t, err)
	assert.Equal(t, executed.StateHash, ref)

	// turns are skipped until the state arrives
	next := h.serverCommit(t)
	h.deliver(t, messages.NewTurnBroadcast(next))
	assert.Equal(t, 1, h.engine.State().Round())

	h.deliver(t, messages.NewFullStateReply(h.server, "alice"))
	assert.Equal(t, 2, h.engine.State().Round())
	assert.Equal(t, h.server.Hash(), h.engine.State().Hash())
	assert.Equal(t, StatusPlaying, h.engine.Status())
}

func TestTurnAheadRequestsState(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.serverCommit(t)
	executed := h.serverCommit(t)
	h.deliver(t, messages.NewTurnBroadcast(executed))

	assert.Equal(t, 0, h.engine.State().Round())
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 1)

	h.deliver(t, messages.NewFullStateReply(nil, "alice"))
	assert.Equal(t, 0, h.engine.State().Round(), "a null reply keeps the local state")
}

func TestSynchronizerHashMismatch(t *testing.T) {
	h := newHarness(t)
	local := h.server.Clone()
	executed := h.serverCommit(t)
	executed.StateHash[1] ^= 0x01

	b, err := messages.ParseTurnBroadcast(messages.NewTurnBroadcast(executed))
	require.NoError(t, err)
	_, err = NewSynchronizer(local).Replay(b)
	var mismatch *HashMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 0, mismatch.Round)
	assert.Equal(t, 1, local.Round(), "the replay completes before verification")
}

func TestAddActionRejections(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.AddAction(gametypes.NewMoveShip("alice", 1, geometry.Point{})), ErrNotPlaying)
	h.start(t)

	bobShip := h.server.EntitiesOf("bob", gametypes.EntityShip)[0]
	err := h.engine.AddAction(gametypes.NewMoveShip("bob", bobShip.ID, bobShip.Location.Origin))
	assert.ErrorContains(t, err, "belongs to")

	err = h.engine.AddAction(gametypes.NewMoveShip("alice", bobShip.ID, bobShip.Location.Origin))
	assert.ErrorContains(t, err, "invalid action")
	assert.Empty(t, h.engine.PendingActions())

	require.NoError(t, h.engine.AddAction(h.scoutMove(t)))
	require.NoError(t, h.engine.RemoveAction(0))
	assert.Empty(t, h.engine.PendingActions())
	assert.Error(t, h.engine.RemoveAction(0))
}

func TestOutcomeMessages(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.deliver(t,
		messages.NewChatBroadcast(messages.ChatBroadcast{Player: "bob", Color: "blue", Text: "hi"}),
		messages.NewPlayerDefeated("alice"),
	)
	assert.Equal(t, StatusDefeated, h.engine.Status())
	assert.Equal(t, []string{"alice"}, h.engine.Defeated())
	assert.ErrorIs(t, h.engine.CommitTurn(), ErrNotPlaying)
	require.Len(t, h.engine.ChatLog(), 1)
	assert.Equal(t, "hi", h.engine.ChatLog()[0].Text)

	h.deliver(t, messages.NewPlayerVictorious("bob"))
	assert.Equal(t, StatusFinished, h.engine.Status())
	assert.Equal(t, "bob", h.engine.Winner())
	assert.False(t, h.engine.Drawn())
}

func TestGameDrawnMessage(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.deliver(t, messages.NewGameDrawn())
	assert.Equal(t, StatusFinished, h.engine.Status())
	assert.True(t, h.engine.Drawn())
	assert.Empty(t, h.engine.Winner())
	assert.ErrorIs(t, h.engine.CommitTurn(), ErrNotPlaying)
}

func TestReturnToMainMenu(t *testing.T) {
	tests := []struct {
		name   string
		msg    *messages.Message
		reason string
	}{
		{"shutdown", messages.NewServerShutdown(), "server shut down"},
		{"join error", messages.NewJoinError("nickname \"alice\" is taken"), "nickname \"alice\" is taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.start(t)
			h.deliver(t, tt.msg)

			assert.Equal(t, StatusDisconnected, h.engine.Status())
			assert.Equal(t, tt.reason, h.engine.Reason())
			assert.Nil(t, h.engine.State())
			assert.Empty(t, h.engine.Player())
		})
	}
}

func TestSendChat(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.SendChat("glhf"))
	sent := h.sender.sent(messages.MessageTypeChat)
	require.Len(t, sent, 1)
	text, err := messages.ParseChat(sent[0])
	require.NoError(t, err)
	assert.Equal(t, "glhf", text)
}

func TestMalformedMessageIsDropped(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	require.NoError(t, h.queue.Enqueue(messages.New(messages.MessageTypeTurnBroadcast, nil)))
	require.NoError(t, h.queue.Enqueue(messages.New("bogus", nil)))
	h.engine.Update()
	assert.Equal(t, StatusPlaying, h.engine.Status())
	assert.Equal(t, 0, h.engine.State().Round())
}

func TestStateRequestRetriedAfterSkippedTurns(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.serverCommit(t)
	h.deliver(t, messages.NewTurnBroadcast(h.serverCommit(t)))
	require.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 1)

	// the reply never arrives
	h.deliver(t, messages.NewTurnBroadcast(h.serverCommit(t)))
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 1)
	h.deliver(t, messages.NewTurnBroadcast(h.serverCommit(t)))
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 2)

	h.deliver(t, messages.NewFullStateReply(h.server, "alice"))
	assert.Equal(t, 4, h.engine.State().Round())
	assert.Equal(t, h.server.Hash(), h.engine.State().Hash())

	h.deliver(t, messages.NewTurnBroadcast(h.serverCommit(t)))
	assert.Equal(t, 5, h.engine.State().Round())
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 2)
}

func TestStateRequestRetriedAfterInterval(t *testing.T) {
	h := newHarness(t)
	clock := time.Unix(1000, 0)
	h.engine.now = func() time.Time { return clock }
	h.start(t)

	require.NoError(t, h.engine.RequestFullState())
	require.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 1)

	clock = clock.Add(DefaultStateRetryInterval - time.Millisecond)
	h.engine.Update()
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 1)

	clock = clock.Add(time.Millisecond)
	h.engine.Update()
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 2)

	h.deliver(t, messages.NewFullStateReply(nil, "alice"))
	clock = clock.Add(time.Hour)
	h.engine.Update()
	assert.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 2)
}

func TestJoiningClientRequestsMissedState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Join())

	h.deliver(t, messages.NewTurnBroadcast(h.serverCommit(t)))
	require.Len(t, h.sender.sent(messages.MessageTypeFullStateRequest), 1)
	assert.Equal(t, StatusJoining, h.engine.Status())

	h.deliver(t, messages.NewFullStateReply(h.server, "alice"))
	assert.Equal(t, StatusPlaying, h.engine.Status())
	assert.Equal(t, 1, h.engine.State().Round())
}

func TestStateReadsDuringReplay(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if s := h.engine.State(); s != nil {
				s.Hash()
			}
			h.engine.View(func(s *gametypes.GameState) {
				for _, e := range s.Entities() {
					e.ToValue()
				}
			})
		}
	}()

	for i := 0; i < 5; i++ {
		h.deliver(t, messages.NewTurnBroadcast(h.serverCommit(t)))
	}
	close(done)
	wg.Wait()

	assert.Equal(t, 5, h.engine.State().Round())
	assert.Equal(t, h.server.Hash(), h.engine.State().Hash())
}

func TestStateIsACopy(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.engine.View(func(*gametypes.GameState) { t.Fatal("no state outside a match") }))
	h.start(t)

	s := h.engine.State()
	ship := s.EntitiesOf("alice", gametypes.EntityShip)[0]
	ship.Ship.Health = 0
	assert.Equal(t, h.server.Hash(), h.engine.State().Hash())
}
