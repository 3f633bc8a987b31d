package statesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrSnapshotNotFound is returned by StateStore.Load when nothing was saved for a state
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is the persisted attributes of one state at a version
type Snapshot struct {
	StateID   string          `json:"state_id"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// StateStore persists state snapshots
type StateStore interface {
	// Save stores snapshot, replacing any previous one for the same state
	Save(ctx context.Context, snapshot *Snapshot) error
	// Load returns the latest snapshot or ErrSnapshotNotFound
	Load(ctx context.Context, stateID string) (*Snapshot, error)
	// Delete removes the snapshot for a state
	Delete(ctx context.Context, stateID string) error
}

// SnapshotPolicy determines when to save snapshots
type SnapshotPolicy interface {
	// ShouldSnapshot returns true if a snapshot should be saved
	ShouldSnapshot(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool
}

// PolicyFunc is a function that implements SnapshotPolicy
type PolicyFunc func(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool

func (f PolicyFunc) ShouldSnapshot(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool {
	return f(version, lastSnapshotVersion, lastSnapshotTime)
}

// EveryNChanges creates a policy that snapshots after N changes
func EveryNChanges(n int64) SnapshotPolicy {
	if n <= 0 {
		n = 1
	}
	return PolicyFunc(func(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool {
		return version-lastSnapshotVersion >= n
	})
}

// TimeInterval creates a policy that snapshots after a time interval
func TimeInterval(interval time.Duration) SnapshotPolicy {
	return PolicyFunc(func(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool {
		return time.Since(lastSnapshotTime) >= interval
	})
}

// Never creates a policy that never takes snapshots
func Never() SnapshotPolicy {
	return PolicyFunc(func(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool {
		return false
	})
}

// Combined creates a policy that triggers when ANY condition is met
func Combined(policies ...SnapshotPolicy) SnapshotPolicy {
	return PolicyFunc(func(version int64, lastSnapshotVersion int64, lastSnapshotTime time.Time) bool {
		for _, policy := range policies {
			if policy.ShouldSnapshot(version, lastSnapshotVersion, lastSnapshotTime) {
				return true
			}
		}
		return false
	})
}

// MemoryStore is an in-memory StateStore
type MemoryStore struct {
	snapshots map[string]*Snapshot
	mu        sync.RWMutex
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

// Save implements StateStore
func (m *MemoryStore) Save(ctx context.Context, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *snapshot
	stored.Data = append(json.RawMessage(nil), snapshot.Data...)
	m.snapshots[snapshot.StateID] = &stored
	return nil
}

// Load implements StateStore
func (m *MemoryStore) Load(ctx context.Context, stateID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot, ok := m.snapshots[stateID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	loaded := *snapshot
	return &loaded, nil
}

// Delete implements StateStore
func (m *MemoryStore) Delete(ctx context.Context, stateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, stateID)
	return nil
}
