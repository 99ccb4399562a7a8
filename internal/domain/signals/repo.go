package signals

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// ReplaceForPhysio deletes the stored row of each given signal type and
	// inserts the new one. Callers run it inside a transaction.
	ReplaceForPhysio(ctx context.Context, physioID uuid.UUID, signals []Signal) error
	ListByPhysio(ctx context.Context, physioID uuid.UUID) ([]Signal, error)
	ListByPhysios(ctx context.Context, physioIDs []uuid.UUID) (map[uuid.UUID][]Signal, error)

	// LockPhysio blocks other recomputes of physioID until the current
	// transaction ends.
	LockPhysio(ctx context.Context, physioID uuid.UUID) error
}
