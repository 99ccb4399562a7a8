package episode

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
)

// MemoryRepo is a Repository held in process memory. Tests across the
// domain packages share it.
type MemoryRepo struct {
	mu       sync.RWMutex
	episodes map[uuid.UUID]Episode
	visits   map[uuid.UUID][]Visit
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		episodes: make(map[uuid.UUID]Episode),
		visits:   make(map[uuid.UUID][]Visit),
	}
}

func (m *MemoryRepo) Create(_ context.Context, e *Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.episodes[e.ID] = *e
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.episodes[id]
	if !ok {
		return nil, apperr.NotFound("episode", id)
	}
	return &e, nil
}

func (m *MemoryRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Episode
	for _, id := range ids {
		if e, ok := m.episodes[id]; ok {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, dischargedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.episodes[id]
	if !ok {
		return apperr.NotFound("episode", id)
	}
	e.Status = status
	if dischargedAt != nil {
		e.DischargedAt = dischargedAt
	}
	m.episodes[id] = e
	return nil
}

func (m *MemoryRepo) ListByPhysio(_ context.Context, physioID uuid.UUID, limit, offset int) ([]*Episode, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*Episode
	for _, e := range m.episodes {
		if e.PhysioID == physioID {
			e := e
			all = append(all, &e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *MemoryRepo) AddVisit(_ context.Context, v *Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.episodes[v.EpisodeID]; !ok {
		return apperr.NotFound("episode", v.EpisodeID)
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.VisitNumber = len(m.visits[v.EpisodeID]) + 1
	m.visits[v.EpisodeID] = append(m.visits[v.EpisodeID], *v)
	return nil
}

func (m *MemoryRepo) ListVisits(_ context.Context, episodeID uuid.UUID) ([]Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Visit(nil), m.visits[episodeID]...)
	SortVisits(out)
	return out, nil
}

func (m *MemoryRepo) ListVisitsForEpisodes(ctx context.Context, episodeIDs []uuid.UUID) (map[uuid.UUID][]Visit, error) {
	out := make(map[uuid.UUID][]Visit, len(episodeIDs))
	for _, id := range episodeIDs {
		vs, _ := m.ListVisits(ctx, id)
		if len(vs) > 0 {
			out[id] = vs
		}
	}
	return out, nil
}

// ListAll returns every stored episode; consent fakes join against it.
func (m *MemoryRepo) ListAll() []Episode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Episode, 0, len(m.episodes))
	for _, e := range m.episodes {
		out = append(out, e)
	}
	return out
}
