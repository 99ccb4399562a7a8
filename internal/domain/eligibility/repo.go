package eligibility

import (
	"context"

	"github.com/google/uuid"
)

type SnapshotRepository interface {
	// Save replaces the physio's stored snapshot.
	Save(ctx context.Context, s *Snapshot) error
	Get(ctx context.Context, physioID uuid.UUID) (*Snapshot, error)
}
