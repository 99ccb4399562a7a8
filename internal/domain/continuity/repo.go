package continuity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TransitionRepository interface {
	Create(ctx context.Context, t *TransitionEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*TransitionEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time) error

	// FindOpenForEpisode returns the non-terminal transition leaving
	// episodeID, or ErrNotFound.
	FindOpenForEpisode(ctx context.Context, episodeID uuid.UUID) (*TransitionEvent, error)
	ListForPhysio(ctx context.Context, physioID uuid.UUID) ([]Handoff, error)
	ListByStatusBefore(ctx context.Context, status string, before time.Time) ([]*TransitionEvent, error)
}

type ConsentRepository interface {
	Create(ctx context.Context, c *ContinuityConsent) error
	GetByID(ctx context.Context, id uuid.UUID) (*ContinuityConsent, error)

	// FindActiveForTransition returns the granted consent for a
	// transition, or ErrNotFound.
	FindActiveForTransition(ctx context.Context, transitionID uuid.UUID) (*ContinuityConsent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error
}

type SummaryRepository interface {
	Create(ctx context.Context, s *Summary) error
	GetByID(ctx context.Context, id uuid.UUID) (*Summary, error)
	FindByTransition(ctx context.Context, transitionID uuid.UUID) (*Summary, error)

	// UpdateReview writes the mutable part of s: status, annotations and
	// the review timestamps. Content is never rewritten. The write only
	// applies while the stored status is still from; otherwise it returns
	// ErrInvalidTransition.
	UpdateReview(ctx context.Context, s *Summary, from string) error
}
