package client

import (
	"errors"
	"fmt"

	gametypes "github.com/cbodonnell/evervoid/pkg/game/types"
	"github.com/cbodonnell/evervoid/pkg/messages"
)

var (
	// ErrOutOfSync is returned when a broadcast turn is for a later round
	// than the local state.
	ErrOutOfSync = errors.New("turn is ahead of local state")
	// ErrStaleTurn is returned for a turn the local state already applied.
	ErrStaleTurn = errors.New("turn already applied")
)

// HashMismatchError reports a replay that produced a different state than
// the server's.
type HashMismatchError struct {
	Round    int
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("state hash mismatch after round %d: server %s, local %s", e.Round, e.Expected, e.Actual)
}

// Step is one unit of replay progress. Index counts from 0 to Total-1.
type Step struct {
	Round int
	Index int
	Total int
	Event gametypes.Event
}

// Observer receives replay progress. It runs on the replaying goroutine and
// the next turn is not replayed until it returns.
type Observer func(Step)

// Synchronizer replays server-confirmed turns against the local state.
type Synchronizer struct {
	state     *gametypes.GameState
	observers []Observer
}

func NewSynchronizer(state *gametypes.GameState) *Synchronizer {
	return &Synchronizer{state: state}
}

func (s *Synchronizer) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Synchronizer) State() *gametypes.GameState {
	return s.state
}

// Reset replaces the local state, typically with a full-state reply.
func (s *Synchronizer) Reset(state *gametypes.GameState) {
	s.state = state
}

// Replay applies a broadcast turn to the local state and reports each
// resulting event to observers. A replay always runs to completion; the
// state hash is checked afterwards when the server supplied one.
func (s *Synchronizer) Replay(b messages.TurnBroadcast) (*gametypes.ExecutedTurn, error) {
	round, err := b.Turn.IntAttr("round")
	if err != nil {
		return nil, fmt.Errorf("failed to decode turn: %w", err)
	}
	switch {
	case round < s.state.Round():
		return nil, ErrStaleTurn
	case round > s.state.Round():
		return nil, ErrOutOfSync
	}
	turn, err := b.DecodeTurn(s.state)
	if err != nil {
		return nil, fmt.Errorf("failed to decode turn: %w", err)
	}

	executed, err := s.state.ApplyTurn(turn)
	if err != nil {
		return nil, fmt.Errorf("failed to apply turn: %v", err)
	}

	total := len(executed.Events)
	for i, event := range executed.Events {
		step := Step{Round: executed.Round, Index: i, Total: total, Event: event}
		for _, o := range s.observers {
			o(step)
		}
	}

	if b.HasHash() && executed.StateHash != b.StateHash {
		return executed, &HashMismatchError{
			Round:    executed.Round,
			Expected: b.StateHash.String(),
			Actual:   executed.StateHash.String(),
		}
	}
	return executed, nil
}
