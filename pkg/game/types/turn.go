package types

import (
	"fmt"

	"github.com/cbodonnell/evervoid/pkg/value"
)

// Turn is an ordered bundle of actions for one round. A sealed turn can no
// longer be modified.
type Turn struct {
	Round   int
	actions []Action
	sealed  bool
}

func NewTurn(round int) *Turn {
	return &Turn{Round: round}
}

// Actions returns a copy of the actions in insertion order.
func (t *Turn) Actions() []Action {
	actions := make([]Action, len(t.actions))
	copy(actions, t.actions)
	return actions
}

func (t *Turn) Len() int {
	return len(t.actions)
}

func (t *Turn) Add(actions ...Action) error {
	if t.sealed {
		return fmt.Errorf("turn for round %d is sealed", t.Round)
	}
	t.actions = append(t.actions, actions...)
	return nil
}

// Remove drops the action at index i.
func (t *Turn) Remove(i int) error {
	if t.sealed {
		return fmt.Errorf("turn for round %d is sealed", t.Round)
	}
	if i < 0 || i >= len(t.actions) {
		return fmt.Errorf("no action at index %d", i)
	}
	t.actions = append(t.actions[:i], t.actions[i+1:]...)
	return nil
}

func (t *Turn) Seal() {
	t.sealed = true
}

func (t *Turn) Sealed() bool {
	return t.sealed
}

func (t *Turn) ToValue() *value.Value {
	actions := value.NewList()
	for _, a := range t.actions {
		actions.Append(a.ToValue())
	}
	return value.NewObject().
		Set("round", value.Int(t.Round)).
		Set("actions", actions)
}

// TurnFromValue decodes a turn against the state it will be applied to. The
// returned turn is sealed.
func TurnFromValue(v *value.Value, s *GameState) (*Turn, error) {
	round, err := v.IntAttr("round")
	if err != nil {
		return nil, constructionErr("turn", err)
	}
	actionValues, err := v.ListAttr("actions")
	if err != nil {
		return nil, constructionErr("turn", err)
	}
	t := NewTurn(round)
	for _, av := range actionValues {
		a, err := ActionFromValue(av, s)
		if err != nil {
			return nil, err
		}
		t.actions = append(t.actions, a)
	}
	t.Seal()
	return t, nil
}

// MergeTurns concatenates turns of the same round, in the given order, into
// one sealed turn.
func MergeTurns(round int, turns ...*Turn) *Turn {
	merged := NewTurn(round)
	for _, t := range turns {
		merged.actions = append(merged.actions, t.actions...)
	}
	merged.Seal()
	return merged
}

// Rejection records an action excluded from an executed turn.
type Rejection struct {
	Action Action
	Reason string
}

// ExecutedTurn is the outcome of ApplyTurn: the effective actions in the
// order they ran, with corrections and damage rolls applied.
type ExecutedTurn struct {
	Round     int
	Actions   []Action
	Rejected  []Rejection
	Events    []Event
	StateHash value.Digest
}

// Turn returns the effective actions as a sealed turn. Replaying it on an
// identical state produces the same result.
func (e *ExecutedTurn) Turn() *Turn {
	t := NewTurn(e.Round)
	t.actions = append(t.actions, e.Actions...)
	t.Seal()
	return t
}
