package episode

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Episode) error
	GetByID(ctx context.Context, id uuid.UUID) (*Episode, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Episode, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, dischargedAt *time.Time) error
	ListByPhysio(ctx context.Context, physioID uuid.UUID, limit, offset int) ([]*Episode, int, error)

	// AddVisit stores v with the next visit number for its episode and
	// writes that number back to v.
	AddVisit(ctx context.Context, v *Visit) error
	ListVisits(ctx context.Context, episodeID uuid.UUID) ([]Visit, error)
	ListVisitsForEpisodes(ctx context.Context, episodeIDs []uuid.UUID) (map[uuid.UUID][]Visit, error)
}
