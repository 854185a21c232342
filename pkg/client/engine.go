package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/evervoid/pkg/config"
	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/messages"
	"github.com/cbodonnell/evervoid/pkg/queue"
	"github.com/cbodonnell/evervoid/pkg/value"
)

const (
	DefaultUpdateInterval = 50 * time.Millisecond
	// DefaultStateRetryInterval is how long a full state request may go
	// unanswered before it is sent again.
	DefaultStateRetryInterval = 5 * time.Second
	// stateRetrySkippedTurns is the number of turns skipped while waiting
	// for state after which the request is sent again.
	stateRetrySkippedTurns = 2
	chatHistorySize        = 100
)

var (
	ErrNotPlaying       = errors.New("not in a running match")
	ErrAlreadyCommitted = errors.New("turn already committed for this round")
)

// Status is the engine's position in the session lifecycle.
type Status int

const (
	// StatusDisconnected is the main menu: no session and no state.
	StatusDisconnected Status = iota
	// StatusJoining waits in the lobby for the match to start.
	StatusJoining
	StatusPlaying
	// StatusDefeated keeps replaying turns as a spectator.
	StatusDefeated
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusJoining:
		return "joining"
	case StatusPlaying:
		return "playing"
	case StatusDefeated:
		return "defeated"
	case StatusFinished:
		return "finished"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Sender delivers messages to the server.
type Sender interface {
	SendMessage(msg *messages.Message) error
}

// Engine is the client simulation context. Server messages are consumed
// from the inbound queue by Update; the local state only changes there.
type Engine struct {
	data           *config.GameData
	nickname       string
	token          string
	sender         Sender
	inbound        queue.Queue[*messages.Message]
	updateInterval time.Duration
	stateRetry     time.Duration
	now            func() time.Time
	logger         *log.Logger
	dispatcher     *messages.Dispatcher

	lock           sync.Mutex
	status         Status
	reason         string
	synchronizer   *Synchronizer
	observers      []Observer
	player         string
	pending        *gametypes.Turn
	committedRound int
	awaitingState  bool
	stateAsked     time.Time
	skippedTurns   int
	winner         string
	drawn          bool
	defeated       []string
	chat           []messages.ChatBroadcast
	info           messages.ServerInfo
}

type NewEngineOptions struct {
	GameData       *config.GameData
	Nickname       string
	Token          string
	Sender         Sender
	Inbound        queue.Queue[*messages.Message]
	UpdateInterval time.Duration
	// StateRetryInterval defaults to DefaultStateRetryInterval.
	StateRetryInterval time.Duration
}

func NewEngine(opts NewEngineOptions) *Engine {
	interval := opts.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	stateRetry := opts.StateRetryInterval
	if stateRetry <= 0 {
		stateRetry = DefaultStateRetryInterval
	}
	e := &Engine{
		data:           opts.GameData,
		nickname:       opts.Nickname,
		token:          opts.Token,
		sender:         opts.Sender,
		inbound:        opts.Inbound,
		updateInterval: interval,
		stateRetry:     stateRetry,
		now:            time.Now,
		logger:         log.With("engine"),
		committedRound: -1,
	}

	e.dispatcher = messages.NewDispatcher()
	e.dispatcher.Handle(messages.MessageTypeTurnBroadcast, e.handleTurnBroadcast)
	e.dispatcher.Handle(messages.MessageTypeFullStateReply, e.handleFullStateReply)
	e.dispatcher.Handle(messages.MessageTypeChatBroadcast, e.handleChatBroadcast)
	e.dispatcher.Handle(messages.MessageTypePlayerDefeated, e.handlePlayerDefeated)
	e.dispatcher.Handle(messages.MessageTypePlayerVictorious, e.handlePlayerVictorious)
	e.dispatcher.Handle(messages.MessageTypeGameDrawn, e.handleGameDrawn)
	e.dispatcher.Handle(messages.MessageTypeServerShutdown, e.handleServerShutdown)
	e.dispatcher.Handle(messages.MessageTypeServerInfo, e.handleServerInfo)
	e.dispatcher.Handle(messages.MessageTypeJoinError, e.handleJoinError)
	return e
}

// Subscribe registers an observer for turn replay progress. Observers run
// inside Update and must not call back into the engine.
func (e *Engine) Subscribe(o Observer) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.observers = append(e.observers, o)
	if e.synchronizer != nil {
		e.synchronizer.Subscribe(o)
	}
}

// Join sends the handshake and waits in the lobby.
func (e *Engine) Join() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.sender.SendMessage(messages.NewHandshake(messages.Handshake{Nickname: e.nickname, Token: e.token})); err != nil {
		return fmt.Errorf("failed to send handshake: %v", err)
	}
	e.status = StatusJoining
	e.reason = ""
	return nil
}

// Start runs Update on a ticker until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Update()
		}
	}
}

// Update handles every queued server message in arrival order.
func (e *Engine) Update() {
	pending, err := e.inbound.ReadAllMessages()
	if err != nil {
		e.logger.Error("Failed to read server messages: %v", err)
		return
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, m := range pending {
		if err := e.dispatcher.Dispatch(m); err != nil {
			e.logger.Warn("Dropped %s: %v", messages.Describe(m), err)
		}
	}
	if e.awaitingState && e.now().Sub(e.stateAsked) >= e.stateRetry {
		e.logger.Warn("No full state after %v, asking again", e.stateRetry)
		if err := e.requestFullState(); err != nil {
			e.logger.Error("%v", err)
		}
	}
}

// Disconnect returns the engine to the main menu.
func (e *Engine) Disconnect(reason string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.disconnect(reason)
}

func (e *Engine) disconnect(reason string) {
	e.logger.Info("Returned to main menu: %s", reason)
	e.status = StatusDisconnected
	e.reason = reason
	e.synchronizer = nil
	e.pending = nil
	e.player = ""
	e.awaitingState = false
	e.skippedTurns = 0
	e.committedRound = -1
}

func (e *Engine) handleTurnBroadcast(m *messages.Message) error {
	b, err := messages.ParseTurnBroadcast(m)
	if err != nil {
		return err
	}
	if e.awaitingState {
		e.skippedTurns++
		e.logger.Debug("Skipped turn while waiting for state")
		if e.skippedTurns >= stateRetrySkippedTurns {
			return e.requestFullState()
		}
		return nil
	}
	if e.synchronizer == nil {
		if e.status != StatusJoining {
			return nil
		}
		// the match started without this client receiving its state
		return e.requestFullState()
	}

	executed, err := e.synchronizer.Replay(b)
	if errors.Is(err, ErrStaleTurn) {
		return nil
	}
	if err != nil {
		e.logger.Warn("Out of sync: %v", err)
		return e.requestFullState()
	}
	e.logger.Debug("Replayed round %d: %d actions, %d rejected", executed.Round, len(executed.Actions), len(executed.Rejected))
	e.pending = gametypes.NewTurn(e.synchronizer.State().Round())
	return nil
}

func (e *Engine) requestFullState() error {
	ref := value.Digest{}
	if e.synchronizer != nil {
		ref = e.synchronizer.State().Hash()
	}
	if err := e.sender.SendMessage(messages.NewFullStateRequest(ref)); err != nil {
		return fmt.Errorf("failed to request full state: %v", err)
	}
	e.awaitingState = true
	e.stateAsked = e.now()
	e.skippedTurns = 0
	return nil
}

// RequestFullState asks the server for the authoritative state.
func (e *Engine) RequestFullState() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.requestFullState()
}

func (e *Engine) handleFullStateReply(m *messages.Message) error {
	s, player, err := messages.ParseFullStateReply(m, e.data)
	if err != nil {
		return err
	}
	e.awaitingState = false
	e.skippedTurns = 0
	if s == nil {
		if e.synchronizer == nil {
			return fmt.Errorf("server confirmed a state this client does not hold")
		}
		return nil
	}

	if e.synchronizer == nil {
		e.synchronizer = NewSynchronizer(s)
		for _, o := range e.observers {
			e.synchronizer.Subscribe(o)
		}
	} else {
		e.synchronizer.Reset(s)
	}
	e.player = player
	e.pending = gametypes.NewTurn(s.Round())
	if e.committedRound >= s.Round() {
		e.committedRound = -1
	}
	e.status = StatusPlaying
	if p, ok := s.Player(player); ok && p.Defeated {
		e.status = StatusDefeated
	}
	if s.Finished() {
		e.winner = s.Winner()
		e.drawn = s.Drawn()
		e.status = StatusFinished
	}
	e.logger.Info("Loaded state for round %d as %s", s.Round(), player)
	return nil
}

func (e *Engine) handleChatBroadcast(m *messages.Message) error {
	c, err := messages.ParseChatBroadcast(m)
	if err != nil {
		return err
	}
	e.chat = append(e.chat, c)
	if len(e.chat) > chatHistorySize {
		e.chat = e.chat[len(e.chat)-chatHistorySize:]
	}
	return nil
}

func (e *Engine) handlePlayerDefeated(m *messages.Message) error {
	name, err := messages.ParsePlayerName(m)
	if err != nil {
		return err
	}
	e.defeated = append(e.defeated, name)
	if name == e.player && e.status == StatusPlaying {
		e.status = StatusDefeated
		e.pending = nil
	}
	return nil
}

func (e *Engine) handlePlayerVictorious(m *messages.Message) error {
	name, err := messages.ParsePlayerName(m)
	if err != nil {
		return err
	}
	e.winner = name
	e.status = StatusFinished
	e.pending = nil
	return nil
}

func (e *Engine) handleGameDrawn(m *messages.Message) error {
	e.drawn = true
	e.status = StatusFinished
	e.pending = nil
	return nil
}

func (e *Engine) handleServerShutdown(m *messages.Message) error {
	e.disconnect("server shut down")
	return nil
}

func (e *Engine) handleServerInfo(m *messages.Message) error {
	info, err := messages.ParseServerInfo(m)
	if err != nil {
		return err
	}
	e.info = info
	return nil
}

func (e *Engine) handleJoinError(m *messages.Message) error {
	reason, err := messages.ParseJoinError(m)
	if err != nil {
		return err
	}
	e.disconnect(reason)
	return nil
}

// AddAction appends an action to this round's turn. Actions that would be
// rejected against the local state are refused.
func (e *Engine) AddAction(a gametypes.Action) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.canEdit(); err != nil {
		return err
	}
	if a.Player != e.player {
		return fmt.Errorf("action belongs to %q, not %q", a.Player, e.player)
	}
	if ok, reason := gametypes.Validate(e.synchronizer.State(), a); !ok {
		return fmt.Errorf("invalid action: %s", reason)
	}
	return e.pending.Add(a)
}

// RemoveAction drops the pending action at index i.
func (e *Engine) RemoveAction(i int) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.canEdit(); err != nil {
		return err
	}
	return e.pending.Remove(i)
}

// CommitTurn sends this round's turn. It may be called once per round.
func (e *Engine) CommitTurn() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.canEdit(); err != nil {
		return err
	}
	e.pending.Seal()
	if err := e.sender.SendMessage(messages.NewTurnSubmit(e.pending)); err != nil {
		return fmt.Errorf("failed to submit turn: %v", err)
	}
	e.committedRound = e.pending.Round
	e.logger.Debug("Committed %d actions for round %d", e.pending.Len(), e.pending.Round)
	return nil
}

func (e *Engine) canEdit() error {
	if e.status != StatusPlaying || e.synchronizer == nil || e.pending == nil {
		return ErrNotPlaying
	}
	if e.committedRound == e.pending.Round {
		return ErrAlreadyCommitted
	}
	return nil
}

func (e *Engine) SendChat(text string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.sender.SendMessage(messages.NewChat(text)); err != nil {
		return fmt.Errorf("failed to send chat: %v", err)
	}
	return nil
}

func (e *Engine) Status() Status {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.status
}

// Reason returns why the engine last returned to the main menu.
func (e *Engine) Reason() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.reason
}

// State returns a copy of the local state, or nil outside a match.
func (e *Engine) State() *gametypes.GameState {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.synchronizer == nil {
		return nil
	}
	return e.synchronizer.State().Clone()
}

// View runs fn with the local state while no turn is being replayed. fn
// must not keep the state or call back into the engine. It reports false
// outside a match.
func (e *Engine) View(fn func(s *gametypes.GameState)) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.synchronizer == nil {
		return false
	}
	fn(e.synchronizer.State())
	return true
}

func (e *Engine) Player() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.player
}

// PendingActions returns the actions queued for this round.
func (e *Engine) PendingActions() []gametypes.Action {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.pending == nil {
		return nil
	}
	return e.pending.Actions()
}

func (e *Engine) Winner() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.winner
}

// Drawn reports whether the match ended with every player defeated.
func (e *Engine) Drawn() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.drawn
}

func (e *Engine) Defeated() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]string(nil), e.defeated...)
}

func (e *Engine) ChatLog() []messages.ChatBroadcast {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]messages.ChatBroadcast(nil), e.chat...)
}

func (e *Engine) ServerInfo() messages.ServerInfo {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.info
}
