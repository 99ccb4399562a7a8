package directory

import (
	"context"

	"github.com/google/uuid"
)

type PhysioRepository interface {
	Create(ctx context.Context, p *Physiotherapist) error
	GetByID(ctx context.Context, id uuid.UUID) (*Physiotherapist, error)
	UpdateOptIn(ctx context.Context, p *Physiotherapist) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	// ListDiscoverable returns opted-in physios that have left preview mode.
	ListDiscoverable(ctx context.Context) ([]*Physiotherapist, error)
}

type GPRepository interface {
	Create(ctx context.Context, g *GP) error
	GetByID(ctx context.Context, id uuid.UUID) (*GP, error)
	List(ctx context.Context) ([]*GP, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}
