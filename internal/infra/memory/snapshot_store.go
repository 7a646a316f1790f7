package memory

import (
	"context"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// SnapshotStore keeps attempt snapshots in process memory. Snapshots survive a dropped
// connection but not a restart.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]domain.Snapshot)}
}

func (s *SnapshotStore) Load(_ context.Context, identityID string) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[identityID]
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	return cloneSnapshot(snap), true, nil
}

func (s *SnapshotStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Identity.ID] = cloneSnapshot(snap)
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, identityID)
	return nil
}

// cloneSnapshot copies the mutable slices so callers never share backing arrays with the store.
func cloneSnapshot(snap domain.Snapshot) domain.Snapshot {
	snap.Answers = append([]string(nil), snap.Answers...)
	snap.Questions = append([]domain.Question(nil), snap.Questions...)
	return snap
}
