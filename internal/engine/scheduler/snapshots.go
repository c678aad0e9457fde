package scheduler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/models"
)

// SnapshotStore keeps the latest telemetry snapshot per zone. The rabbit
// consumer writes, zone workers read; a snapshot is superseded by the next
// one for the same zone and never retained beyond that.
type SnapshotStore struct {
	mu     sync.RWMutex
	latest map[uuid.UUID]models.ZoneMetricsSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{latest: make(map[uuid.UUID]models.ZoneMetricsSnapshot)}
}

// Put stores snap as the latest observation for its zone, ignoring
// out-of-order deliveries older than what is already held.
func (s *SnapshotStore) Put(snap models.ZoneMetricsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.latest[snap.ZoneID]; ok && held.CapturedAt.After(snap.CapturedAt) {
		return
	}
	s.latest[snap.ZoneID] = snap
}

// Latest returns the last-received snapshot for the zone. The read never
// blocks on an in-progress tick.
func (s *SnapshotStore) Latest(zoneID uuid.UUID) (models.ZoneMetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.latest[zoneID]
	return snap, ok
}

// Drop removes a zone's snapshot, used when the zone is deleted.
func (s *SnapshotStore) Drop(zoneID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, zoneID)
}
