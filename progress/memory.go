package progress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MemoryStore keeps the snapshot in memory. Saved snapshots are copied so
// later changes by the caller are not visible until the next Save.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := NewSnapshot()
	if m.raw == nil {
		return snap, nil
	}
	if err := json.Unmarshal(m.raw, snap); err != nil {
		return nil, err
	}
	snap.normalize()
	return snap, nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil {
		return errors.New("nil snapshot")
	}
	snap.normalize()

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.raw = raw
	m.mu.Unlock()
	return nil
}

// Reset implements Store.
func (m *MemoryStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.raw = nil
	m.mu.Unlock()
	return nil
}
