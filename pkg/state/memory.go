package state

import (
	"context"
	"fmt"
	"sync"
)

type InMemorySnapshotStore struct {
	lock     sync.RWMutex
	snapshot *Snapshot
}

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{}
}

func (m *InMemorySnapshotStore) Get(ctx context.Context) (*Snapshot, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return copySnapshot(m.snapshot), nil
}

func (m *InMemorySnapshotStore) Set(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}
	c := copySnapshot(snapshot)
	m.lock.Lock()
	defer m.lock.Unlock()
	m.snapshot = c
	return nil
}

func copySnapshot(s *Snapshot) *Snapshot {
	c := *s
	c.Players = append([]string(nil), s.Players...)
	if s.State != nil {
		c.State = s.State.Clone()
	}
	return &c
}
