package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
)

// MemoryRepo implements all three directory repositories in memory.
type MemoryRepo struct {
	mu       sync.RWMutex
	physios  map[uuid.UUID]Physiotherapist
	gps      map[uuid.UUID]GP
	patients map[uuid.UUID]Patient
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		physios:  make(map[uuid.UUID]Physiotherapist),
		gps:      make(map[uuid.UUID]GP),
		patients: make(map[uuid.UUID]Patient),
	}
}

// Physios, GPs and Patients expose the repository views of m.
func (m *MemoryRepo) Physios() PhysioRepository   { return memPhysios{m} }
func (m *MemoryRepo) GPs() GPRepository           { return memGPs{m} }
func (m *MemoryRepo) Patients() PatientRepository { return memPatients{m} }

type memPhysios struct{ m *MemoryRepo }

func (r memPhysios) Create(_ context.Context, p *Physiotherapist) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	r.m.physios[p.ID] = *p
	return nil
}

func (r memPhysios) GetByID(_ context.Context, id uuid.UUID) (*Physiotherapist, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	p, ok := r.m.physios[id]
	if !ok {
		return nil, apperr.NotFound("physiotherapist", id)
	}
	return &p, nil
}

func (r memPhysios) UpdateOptIn(_ context.Context, p *Physiotherapist) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.physios[p.ID]
	if !ok {
		return apperr.NotFound("physiotherapist", p.ID)
	}
	cur.OptedIn, cur.OptedInAt, cur.OptedOutAt, cur.PreviewMode = p.OptedIn, p.OptedInAt, p.OptedOutAt, p.PreviewMode
	r.m.physios[p.ID] = cur
	return nil
}

func (r memPhysios) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.m.physios))
	for id := range r.m.physios {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r memPhysios) ListDiscoverable(_ context.Context) ([]*Physiotherapist, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []*Physiotherapist
	for _, p := range r.m.physios {
		if p.OptedIn && !p.PreviewMode {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memGPs struct{ m *MemoryRepo }

func (r memGPs) Create(_ context.Context, g *GP) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = time.Now().UTC()
	r.m.gps[g.ID] = *g
	return nil
}

func (r memGPs) GetByID(_ context.Context, id uuid.UUID) (*GP, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	g, ok := r.m.gps[id]
	if !ok {
		return nil, apperr.NotFound("gp", id)
	}
	return &g, nil
}

func (r memGPs) List(_ context.Context) ([]*GP, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*GP, 0, len(r.m.gps))
	for _, g := range r.m.gps {
		g := g
		out = append(out, &g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PracticeName < out[j].PracticeName })
	return out, nil
}

type memPatients struct{ m *MemoryRepo }

func (r memPatients) Create(_ context.Context, p *Patient) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	r.m.patients[p.ID] = *p
	return nil
}

func (r memPatients) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	p, ok := r.m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	return &p, nil
}
