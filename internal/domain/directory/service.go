package directory

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
)

type Service struct {
	physios  PhysioRepository
	gps      GPRepository
	patients PatientRepository
	now      func() time.Time
}

func NewService(physios PhysioRepository, gps GPRepository, patients PatientRepository) *Service {
	return &Service{physios: physios, gps: gps, patients: patients, now: time.Now}
}

func (s *Service) CreatePhysio(ctx context.Context, p *Physiotherapist) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Region = strings.TrimSpace(p.Region)
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return apperr.Validation("invalid email %q", p.Email)
	}
	if p.Region == "" {
		return apperr.Validation("region is required")
	}
	if p.Capacity == "" {
		p.Capacity = CapacityAvailable
	}
	if _, ok := CapacityRank[p.Capacity]; !ok {
		return apperr.Validation("invalid capacity: %s", p.Capacity)
	}
	if p.Specialties == nil {
		p.Specialties = []string{}
	}
	// New physios start outside the network.
	p.OptedIn = false
	p.OptedInAt = nil
	p.OptedOutAt = nil
	p.PreviewMode = true
	return s.physios.Create(ctx, p)
}

func (s *Service) GetPhysio(ctx context.Context, id uuid.UUID) (*Physiotherapist, error) {
	return s.physios.GetByID(ctx, id)
}

func (s *Service) ListPhysioIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.physios.ListIDs(ctx)
}

func (s *Service) ListDiscoverablePhysios(ctx context.Context) ([]*Physiotherapist, error) {
	return s.physios.ListDiscoverable(ctx)
}

// SetOptIn joins or leaves the referral network. Joining always starts in
// preview mode so the physio can inspect their standing before GPs see
// them.
func (s *Service) SetOptIn(ctx context.Context, physioID uuid.UUID, optedIn bool) (*Physiotherapist, error) {
	p, err := s.physios.GetByID(ctx, physioID)
	if err != nil {
		return nil, err
	}
	if p.OptedIn == optedIn {
		return p, nil
	}
	now := s.now().UTC()
	p.OptedIn = optedIn
	if optedIn {
		p.OptedInAt = &now
		p.PreviewMode = true
	} else {
		p.OptedOutAt = &now
	}
	if err := s.physios.UpdateOptIn(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DisablePreviewMode makes an opted-in physio discoverable by GPs.
func (s *Service) DisablePreviewMode(ctx context.Context, physioID uuid.UUID) (*Physiotherapist, error) {
	p, err := s.physios.GetByID(ctx, physioID)
	if err != nil {
		return nil, err
	}
	if !p.OptedIn {
		return nil, apperr.Validation("physio must opt in before leaving preview mode")
	}
	if !p.PreviewMode {
		return p, nil
	}
	p.PreviewMode = false
	if err := s.physios.UpdateOptIn(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) CreateGP(ctx context.Context, g *GP) error {
	g.PracticeName = strings.TrimSpace(g.PracticeName)
	g.Region = strings.TrimSpace(g.Region)
	if strings.TrimSpace(g.Name) == "" {
		return apperr.Validation("name is required")
	}
	if g.PracticeName == "" {
		return apperr.Validation("practice_name is required")
	}
	if g.Region == "" {
		return apperr.Validation("region is required")
	}
	return s.gps.Create(ctx, g)
}

func (s *Service) GetGP(ctx context.Context, id uuid.UUID) (*GP, error) {
	return s.gps.GetByID(ctx, id)
}

func (s *Service) ListGPs(ctx context.Context) ([]*GP, error) {
	return s.gps.List(ctx)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if strings.TrimSpace(p.Region) == "" {
		return apperr.Validation("region is required")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(s.now()) {
		return apperr.Validation("date_of_birth is in the future")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}
