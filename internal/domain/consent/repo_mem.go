package consent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/domain/episode"
	"github.com/kinetic/kinetic/internal/platform/apperr"
)

// MemoryRepo keeps consents in memory and joins against an episode
// MemoryRepo for the physio lookup.
type MemoryRepo struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]Consent
	episodes *episode.MemoryRepo
}

func NewMemoryRepo(episodes *episode.MemoryRepo) *MemoryRepo {
	return &MemoryRepo{byID: make(map[uuid.UUID]Consent), episodes: episodes}
}

func (m *MemoryRepo) Upsert(_ context.Context, c *Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cur := range m.byID {
		if cur.EpisodeID == c.EpisodeID {
			cur.Status = c.Status
			cur.GrantedAt = c.GrantedAt
			cur.RevokedAt = nil
			m.byID[id] = cur
			*c = cur
			return nil
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	m.byID[c.ID] = *c
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Consent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("consent", id)
	}
	return &c, nil
}

func (m *MemoryRepo) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("consent", id)
	}
	c.Status = StatusRevoked
	c.RevokedAt = &at
	m.byID[id] = c
	return nil
}

func (m *MemoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Consent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Consent
	for _, c := range m.byID {
		if c.PatientID == patientID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) ListGrantedEpisodeIDs(_ context.Context, physioID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	granted := make(map[uuid.UUID]bool)
	for _, c := range m.byID {
		if c.Status == StatusGranted {
			granted[c.EpisodeID] = true
		}
	}
	m.mu.RUnlock()

	var ids []uuid.UUID
	for _, e := range m.episodes.ListAll() {
		if e.PhysioID == physioID && granted[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}
