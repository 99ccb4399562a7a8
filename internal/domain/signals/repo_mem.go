package signals

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]map[string]Signal
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[uuid.UUID]map[string]Signal)}
}

func (m *MemoryRepo) ReplaceForPhysio(_ context.Context, physioID uuid.UUID, signals []Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.rows[physioID]
	if !ok {
		byType = make(map[string]Signal)
		m.rows[physioID] = byType
	}
	for _, s := range signals {
		details := make(map[string]float64, len(s.Details))
		for k, v := range s.Details {
			details[k] = v
		}
		s.Details = details
		byType[s.SignalType] = s
	}
	return nil
}

func (m *MemoryRepo) ListByPhysio(_ context.Context, physioID uuid.UUID) ([]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(physioID), nil
}

func (m *MemoryRepo) ListByPhysios(_ context.Context, physioIDs []uuid.UUID) (map[uuid.UUID][]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uuid.UUID][]Signal, len(physioIDs))
	for _, id := range physioIDs {
		if rows := m.list(id); len(rows) > 0 {
			out[id] = rows
		}
	}
	return out, nil
}

func (m *MemoryRepo) list(physioID uuid.UUID) []Signal {
	var out []Signal
	for _, s := range m.rows[physioID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignalType < out[j].SignalType })
	return out
}

func (m *MemoryRepo) LockPhysio(context.Context, uuid.UUID) error { return nil }
