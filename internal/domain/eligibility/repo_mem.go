package eligibility

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
)

type MemorySnapshotRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]Snapshot
}

func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{rows: make(map[uuid.UUID]Snapshot)}
}

func (m *MemorySnapshotRepo) Save(_ context.Context, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if s.Result.Gaps != nil {
		cp.Result.Gaps = make([]string, len(s.Result.Gaps))
		copy(cp.Result.Gaps, s.Result.Gaps)
	}
	m.rows[s.PhysioID] = cp
	return nil
}

func (m *MemorySnapshotRepo) Get(_ context.Context, physioID uuid.UUID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[physioID]
	if !ok {
		return nil, apperr.NotFound("eligibility snapshot", physioID)
	}
	return &s, nil
}
