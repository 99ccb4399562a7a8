package continuity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
)

// MemoryRepo backs all three continuity repositories with maps so the
// handoff listing can join them.
type MemoryRepo struct {
	mu          sync.RWMutex
	transitions map[uuid.UUID]TransitionEvent
	consents    map[uuid.UUID]ContinuityConsent
	summaries   map[uuid.UUID]Summary
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		transitions: make(map[uuid.UUID]TransitionEvent),
		consents:    make(map[uuid.UUID]ContinuityConsent),
		summaries:   make(map[uuid.UUID]Summary),
	}
}

func (m *MemoryRepo) Transitions() TransitionRepository { return memTransitions{m} }
func (m *MemoryRepo) Consents() ConsentRepository       { return memConsents{m} }
func (m *MemoryRepo) Summaries() SummaryRepository      { return memSummaries{m} }

type memTransitions struct{ m *MemoryRepo }

func (r memTransitions) Create(_ context.Context, t *TransitionEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.m.transitions[t.ID] = *t
	return nil
}

func (r memTransitions) GetByID(_ context.Context, id uuid.UUID) (*TransitionEvent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	t, ok := r.m.transitions[id]
	if !ok {
		return nil, apperr.NotFound("transition", id)
	}
	return &t, nil
}

func (r memTransitions) UpdateStatus(_ context.Context, id uuid.UUID, status string, completedAt *time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.transitions[id]
	if !ok {
		return apperr.NotFound("transition", id)
	}
	t.Status = status
	if completedAt != nil {
		t.CompletedAt = completedAt
	}
	r.m.transitions[id] = t
	return nil
}

func (r memTransitions) FindOpenForEpisode(_ context.Context, episodeID uuid.UUID) (*TransitionEvent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, t := range r.m.transitions {
		if t.OriginEpisodeID == episodeID && IsOpenTransition(t.Status) {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("open transition for episode", episodeID)
}

func (r memTransitions) ListForPhysio(_ context.Context, physioID uuid.UUID) ([]Handoff, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []Handoff
	for _, t := range r.m.transitions {
		outgoing := t.OriginPhysioID == physioID
		incoming := t.DestinationPhysioID != nil && *t.DestinationPhysioID == physioID
		if !outgoing && !incoming {
			continue
		}
		h := Handoff{TransitionEvent: t, Outgoing: outgoing}
		for _, s := range r.m.summaries {
			if s.TransitionEventID == t.ID {
				id, status := s.ID, s.Status
				h.SummaryID, h.SummaryStatus = &id, &status
				break
			}
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.After(out[j].InitiatedAt) })
	return out, nil
}

func (r memTransitions) ListByStatusBefore(_ context.Context, status string, before time.Time) ([]*TransitionEvent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []*TransitionEvent
	for _, t := range r.m.transitions {
		if t.Status == status && t.InitiatedAt.Before(before) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.Before(out[j].InitiatedAt) })
	return out, nil
}

type memConsents struct{ m *MemoryRepo }

func (r memConsents) Create(_ context.Context, c *ContinuityConsent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.Status == ConsentGranted {
		for _, cur := range r.m.consents {
			if cur.TransitionEventID == c.TransitionEventID && cur.Status == ConsentGranted {
				return apperr.ErrConflict
			}
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.m.consents[c.ID] = *c
	return nil
}

func (r memConsents) GetByID(_ context.Context, id uuid.UUID) (*ContinuityConsent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.consents[id]
	if !ok {
		return nil, apperr.NotFound("continuity consent", id)
	}
	return &c, nil
}

func (r memConsents) FindActiveForTransition(_ context.Context, transitionID uuid.UUID) (*ContinuityConsent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, c := range r.m.consents {
		if c.TransitionEventID == transitionID && c.Status == ConsentGranted {
			return &c, nil
		}
	}
	return nil, apperr.NotFound("active consent for transition", transitionID)
}

func (r memConsents) UpdateStatus(_ context.Context, id uuid.UUID, status string, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.consents[id]
	if !ok {
		return apperr.NotFound("continuity consent", id)
	}
	c.Status = status
	c.RevokedAt = &at
	r.m.consents[id] = c
	return nil
}

type memSummaries struct{ m *MemoryRepo }

func (r memSummaries) Create(_ context.Context, s *Summary) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, cur := range r.m.summaries {
		if cur.TransitionEventID == s.TransitionEventID {
			return apperr.ErrConflict
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.m.summaries[s.ID] = *s
	return nil
}

func (r memSummaries) GetByID(_ context.Context, id uuid.UUID) (*Summary, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.summaries[id]
	if !ok {
		return nil, apperr.NotFound("summary", id)
	}
	return &s, nil
}

func (r memSummaries) FindByTransition(_ context.Context, transitionID uuid.UUID) (*Summary, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, s := range r.m.summaries {
		if s.TransitionEventID == transitionID {
			return &s, nil
		}
	}
	return nil, apperr.NotFound("summary for transition", transitionID)
}

func (r memSummaries) UpdateReview(_ context.Context, s *Summary, from string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.summaries[s.ID]
	if !ok {
		return apperr.NotFound("summary", s.ID)
	}
	if cur.Status != from {
		return apperr.InvalidTransition("summary", cur.Status, s.Status)
	}
	cur.Status = s.Status
	cur.PhysioAnnotations = s.PhysioAnnotations
	cur.ReviewedAt = s.ReviewedAt
	cur.ReleasedAt = s.ReleasedAt
	cur.RevokedAt = s.RevokedAt
	r.m.summaries[s.ID] = cur
	return nil
}
