package consent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert grants consent for c.EpisodeID, re-granting a revoked row if
	// one exists, and fills c from the stored row.
	Upsert(ctx context.Context, c *Consent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consent, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consent, error)
	// ListGrantedEpisodeIDs returns the physio's episodes with consent in
	// granted status.
	ListGrantedEpisodeIDs(ctx context.Context, physioID uuid.UUID) ([]uuid.UUID, error)
}
