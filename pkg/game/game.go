package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cbodonnell/evervoid/pkg/config"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/network"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/cbodonnell/evervoid/pkg/state"
	"github.com/google/uuid"
)

// Sink receives the messages the simulation loop sends to clients.
type Sink interface {
	Send(clientID string, m *messages.Message)
	Broadcast(m *messages.Message)
}

// GameManager runs the authoritative simulation. It owns the game state
// exclusively: every other goroutine talks to it through its queues.
type GameManager struct {
	name                 string
	data                 *config.GameData
	seed                 int64
	matchSize            int
	clientMessageQueue   queue.Queue[*messages.Message]
	connectionEventQueue queue.Queue[network.ConnectionEvent]
	sink                 Sink
	snapshots            state.SnapshotStore
	gameLoopInterval     time.Duration
	turnTimeout          time.Duration
	now                  func() time.Time
	logger               *log.Logger
	dispatcher           *messages.Dispatcher

	gameID     string
	lobby      []*lobbyEntry
	sessions   map[string]string
	gameState  *gametypes.GameState
	pending    map[string]*gametypes.Turn
	order      []string
	roundStart time.Time
}

type lobbyEntry struct {
	clientID string
	nickname string
	race     string
	color    string
}

// NewGameManagerOptions contains options for creating a new GameManager.
type NewGameManagerOptions struct {
	Name                 string
	GameData             *config.GameData
	Seed                 int64
	MatchSize            int
	ClientMessageQueue   queue.Queue[*messages.Message]
	ConnectionEventQueue queue.Queue[network.ConnectionEvent]
	Sink                 Sink
	SnapshotStore        state.SnapshotStore
	GameLoopInterval     time.Duration
	// InitialState resumes a saved match. Players rejoin by nickname.
	InitialState *gametypes.GameState
	InitialID    string
}

func NewGameManager(opts NewGameManagerOptions) *GameManager {
	gm := &GameManager{
		name:                 opts.Name,
		data:                 opts.GameData,
		seed:                 opts.Seed,
		matchSize:            opts.MatchSize,
		clientMessageQueue:   opts.ClientMessageQueue,
		connectionEventQueue: opts.ConnectionEventQueue,
		sink:                 opts.Sink,
		snapshots:            opts.SnapshotStore,
		gameLoopInterval:     opts.GameLoopInterval,
		turnTimeout:          time.Duration(opts.GameData.Turn.Timeout) * time.Second,
		now:                  time.Now,
		logger:               log.With("simulation"),
		sessions:             make(map[string]string),
		pending:              make(map[string]*gametypes.Turn),
		gameState:            opts.InitialState,
		gameID:               opts.InitialID,
	}
	if gm.matchSize < 2 {
		gm.matchSize = 2
	}
	if gm.seed == 0 {
		gm.seed = rand.Int63()
	}
	if gm.gameState != nil && gm.gameID == "" {
		gm.gameID = uuid.NewString()
	}
	gm.roundStart = gm.now()

	gm.dispatcher = messages.NewDispatcher()
	gm.dispatcher.Handle(messages.MessageTypeHandshake, gm.handleHandshake)
	gm.dispatcher.Handle(messages.MessageTypeTurnSubmit, gm.handleTurnSubmit)
	gm.dispatcher.Handle(messages.MessageTypeFullStateRequest, gm.handleFullStateRequest)
	gm.dispatcher.Handle(messages.MessageTypeChat, gm.handleChat)
	return gm
}

// Start runs the game loop until ctx is done.
func (gm *GameManager) Start(ctx context.Context) error {
	if gm.gameLoopInterval <= 0 {
		return fmt.Errorf("invalid game loop interval %v", gm.gameLoopInterval)
	}
	gm.publish(ctx)

	ticker := time.NewTicker(gm.gameLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			if err := gm.gameTick(ctx, t); err != nil {
				gm.logger.Error("Failed to run game tick: %v", err)
			}
		}
	}
}

// Stop tells every client the server is going away.
func (gm *GameManager) Stop() {
	gm.sink.Broadcast(messages.NewServerShutdown())
}

// gameTick runs one iteration of the game loop.
func (gm *GameManager) gameTick(ctx context.Context, t time.Time) error {
	gm.processConnectionEvents()
	gm.processClientMessages()

	if gm.inGame() && gm.turnTimeout > 0 && t.Sub(gm.roundStart) >= gm.turnTimeout {
		gm.logger.Info("Turn timer expired for round %d with %d of %d turns", gm.gameState.Round(), len(gm.order), len(gm.livePlayers()))
		if err := gm.commitTurn(ctx); err != nil {
			return fmt.Errorf("failed to commit turn: %v", err)
		}
	}
	return nil
}

func (gm *GameManager) inGame() bool {
	return gm.gameState != nil && !gm.gameState.Finished()
}

// processConnectionEvents processes all pending connection events.
func (gm *GameManager) processConnectionEvents() {
	events, err := gm.connectionEventQueue.ReadAllMessages()
	if err != nil {
		gm.logger.Error("Failed to read connection events: %v", err)
		return
	}
	for _, event := range events {
		switch event.Type {
		case network.ConnectionEventTypeConnect:
			gm.logger.Debug("Client %s connected", event.ClientID)
		case network.ConnectionEventTypeDisconnect:
			gm.handleDisconnect(event.ClientID)
		default:
			gm.logger.Error("Unhandled connection event type: %v", event.Type)
		}
	}
}

// processClientMessages dispatches all pending client messages. A message
// that cannot be decoded or applied is logged and dropped.
func (gm *GameManager) processClientMessages() {
	pending, err := gm.clientMessageQueue.ReadAllMessages()
	if err != nil {
		gm.logger.Error("Failed to read client messages: %v", err)
		return
	}
	for _, m := range pending {
		if err := gm.dispatcher.Dispatch(m); err != nil {
			gm.logger.Warn("Dropped %s: %v", messages.Describe(m), err)
		}
	}
}

func (gm *GameManager) handleDisconnect(clientID string) {
	if player, ok := gm.sessions[clientID]; ok {
		delete(gm.sessions, clientID)
		gm.logger.Info("Player %s disconnected", player)
	}
	for i, entry := range gm.lobby {
		if entry.clientID == clientID && gm.gameState == nil {
			gm.lobby = append(gm.lobby[:i], gm.lobby[i+1:]...)
			gm.broadcastServerInfo()
			gm.publish(context.Background())
			break
		}
	}
}

func (gm *GameManager) handleHandshake(m *messages.Message) error {
	h, err := messages.ParseHandshake(m)
	if err != nil {
		return err
	}
	if _, ok := gm.sessions[m.ClientID]; ok {
		return fmt.Errorf("client %s already joined", m.ClientID)
	}

	if gm.gameState != nil {
		return gm.rejoin(m.ClientID, h.Nickname)
	}

	for _, entry := range gm.lobby {
		if entry.nickname == h.Nickname {
			gm.sink.Send(m.ClientID, messages.NewJoinError(fmt.Sprintf("nickname %q is taken", h.Nickname)))
			return nil
		}
	}
	if h.Nickname == gametypes.NeutralPlayer {
		gm.sink.Send(m.ClientID, messages.NewJoinError(fmt.Sprintf("nickname %q is reserved", h.Nickname)))
		return nil
	}

	entry := gm.newLobbyEntry(m.ClientID, h.Nickname)
	gm.lobby = append(gm.lobby, entry)
	gm.sessions[m.ClientID] = h.Nickname
	gm.logger.Info("Player %s joined the lobby as %s/%s (%d/%d)", entry.nickname, entry.race, entry.color, len(gm.lobby), gm.matchSize)
	gm.broadcastServerInfo()

	if len(gm.lobby) >= gm.matchSize {
		if err := gm.startMatch(); err != nil {
			return fmt.Errorf("failed to start match: %v", err)
		}
	}
	gm.publish(context.Background())
	return nil
}

// rejoin binds a new session to a player of the running match.
func (gm *GameManager) rejoin(clientID, nickname string) error {
	p, ok := gm.gameState.Player(nickname)
	if !ok || p.IsNeutral() {
		gm.sink.Send(clientID, messages.NewJoinError("match already in progress"))
		return nil
	}
	for _, player := range gm.sessions {
		if player == nickname {
			gm.sink.Send(clientID, messages.NewJoinError(fmt.Sprintf("player %q is already connected", nickname)))
			return nil
		}
	}
	gm.sessions[clientID] = nickname
	gm.logger.Info("Player %s rejoined at round %d", nickname, gm.gameState.Round())
	gm.sink.Send(clientID, messages.NewFullStateReply(gm.gameState, nickname))
	return nil
}

func (gm *GameManager) newLobbyEntry(clientID, nickname string) *lobbyEntry {
	races := gm.data.RaceNames()
	taken := make(map[string]bool)
	for _, entry := range gm.lobby {
		taken[entry.color] = true
	}
	color := ""
	for _, c := range gm.data.ColorNames() {
		if c != "grey" && !taken[c] {
			color = c
			break
		}
	}
	return &lobbyEntry{
		clientID: clientID,
		nickname: nickname,
		race:     races[len(gm.lobby)%len(races)],
		color:    color,
	}
}

func (gm *GameManager) startMatch() error {
	specs := make([]gametypes.PlayerSpec, len(gm.lobby))
	for i, entry := range gm.lobby {
		specs[i] = gametypes.PlayerSpec{Name: entry.nickname, Race: entry.race, Color: entry.color}
	}
	s, err := gametypes.NewGame(specs, gm.data, gm.seed)
	if err != nil {
		return err
	}
	gm.gameState = s
	gm.gameID = uuid.NewString()
	gm.roundStart = gm.now()
	gm.logger.Info("Match %s started with %d players, seed %d", gm.gameID, len(specs), gm.seed)

	for clientID, player := range gm.sessions {
		gm.sink.Send(clientID, messages.NewFullStateReply(gm.gameState, player))
	}
	gm.broadcastServerInfo()
	return nil
}

// handleTurnSubmit gathers a player's turn for the current round. Actions
// issued for other players are dropped and carried damage rolls discarded.
// The merged turn is validated again when it is applied.
func (gm *GameManager) handleTurnSubmit(m *messages.Message) error {
	player, ok := gm.sessions[m.ClientID]
	if !ok {
		return fmt.Errorf("client %s has not joined", m.ClientID)
	}
	if !gm.inGame() {
		return errors.New("no match in progress")
	}
	p, _ := gm.gameState.Player(player)
	if p == nil || p.Defeated {
		return fmt.Errorf("player %s cannot submit turns", player)
	}

	turn, err := messages.ParseTurnSubmit(m, gm.gameState)
	if err != nil {
		return err
	}
	if turn.Round != gm.gameState.Round() {
		return fmt.Errorf("turn for round %d submitted during round %d", turn.Round, gm.gameState.Round())
	}

	accepted := gametypes.NewTurn(turn.Round)
	for _, a := range turn.Actions() {
		if a.Player != player {
			gm.logger.Warn("Player %s submitted an action for %s", player, a.Player)
			continue
		}
		if err := accepted.Add(a.WithoutRoll()); err != nil {
			return err
		}
	}
	accepted.Seal()

	if _, resubmitted := gm.pending[player]; !resubmitted {
		gm.order = append(gm.order, player)
	}
	gm.pending[player] = accepted
	gm.logger.Debug("Player %s submitted %d actions for round %d", player, accepted.Len(), accepted.Round)

	if len(gm.pending) >= len(gm.livePlayers()) {
		return gm.commitTurn(context.Background())
	}
	return nil
}

func (gm *GameManager) livePlayers() []string {
	var live []string
	for _, p := range gm.gameState.Players() {
		if !p.Defeated {
			live = append(live, p.Name)
		}
	}
	return live
}

// commitTurn applies the gathered turns and broadcasts the executed turn.
func (gm *GameManager) commitTurn(ctx context.Context) error {
	turns := make([]*gametypes.Turn, 0, len(gm.order))
	for _, player := range gm.order {
		turns = append(turns, gm.pending[player])
	}
	merged := gametypes.MergeTurns(gm.gameState.Round(), turns...)

	executed, err := gm.gameState.ApplyTurn(merged)
	if err != nil {
		return err
	}
	for _, r := range executed.Rejected {
		gm.logger.Debug("Rejected %s: %s", r.Action, r.Reason)
	}
	gm.logger.Info("Round %d committed: %d actions, %d rejected", executed.Round, len(executed.Actions), len(executed.Rejected))

	gm.sink.Broadcast(messages.NewTurnBroadcast(executed))
	for _, event := range executed.Events {
		switch e := event.(type) {
		case gametypes.PlayerDefeated:
			gm.sink.Broadcast(messages.NewPlayerDefeated(e.Player))
		case gametypes.PlayerVictorious:
			gm.sink.Broadcast(messages.NewPlayerVictorious(e.Player))
		case gametypes.GameDrawn:
			gm.logger.Info("Round %d ended the match in a draw", e.Round)
			gm.sink.Broadcast(messages.NewGameDrawn())
		}
	}

	gm.pending = make(map[string]*gametypes.Turn)
	gm.order = nil
	gm.roundStart = gm.now()
	gm.publish(ctx)
	return nil
}

func (gm *GameManager) handleFullStateRequest(m *messages.Message) error {
	player, ok := gm.sessions[m.ClientID]
	if !ok {
		return fmt.Errorf("client %s has not joined", m.ClientID)
	}
	if gm.gameState == nil {
		return errors.New("no match in progress")
	}
	ref, err := messages.ParseFullStateRequest(m)
	if err != nil {
		return err
	}
	if ref == gm.gameState.Hash() {
		gm.sink.Send(m.ClientID, messages.NewFullStateReply(nil, player))
		return nil
	}
	gm.sink.Send(m.ClientID, messages.NewFullStateReply(gm.gameState, player))
	return nil
}

func (gm *GameManager) handleChat(m *messages.Message) error {
	player, ok := gm.sessions[m.ClientID]
	if !ok {
		return fmt.Errorf("client %s has not joined", m.ClientID)
	}
	text, err := messages.ParseChat(m)
	if err != nil {
		return err
	}
	gm.sink.Broadcast(messages.NewChatBroadcast(messages.ChatBroadcast{
		Player: player,
		Color:  gm.colorOf(player),
		Text:   text,
	}))
	return nil
}

func (gm *GameManager) colorOf(player string) string {
	if gm.gameState != nil {
		if p, ok := gm.gameState.Player(player); ok {
			return p.ColorName
		}
	}
	for _, entry := range gm.lobby {
		if entry.nickname == player {
			return entry.color
		}
	}
	return ""
}

// ServerInfo describes the server for the discovery message and the API.
func (gm *GameManager) serverInfo() messages.ServerInfo {
	info := messages.ServerInfo{Name: gm.name, Players: len(gm.lobby)}
	if gm.gameState != nil {
		info.Players = len(gm.gameState.Players())
		info.InGame = true
		info.Round = gm.gameState.Round()
	}
	return info
}

func (gm *GameManager) broadcastServerInfo() {
	gm.sink.Broadcast(messages.NewServerInfo(gm.serverInfo()))
}

// publish stores a snapshot for readers outside the simulation loop.
func (gm *GameManager) publish(ctx context.Context) {
	if gm.snapshots == nil {
		return
	}
	lobby := make([]string, len(gm.lobby))
	for i, entry := range gm.lobby {
		lobby[i] = entry.nickname
	}
	snapshot := state.NewSnapshot(gm.name, gm.gameState, lobby)
	snapshot.ID = gm.gameID
	if err := gm.snapshots.Set(ctx, snapshot); err != nil {
		gm.logger.Error("Failed to publish snapshot: %v", err)
	}
}
