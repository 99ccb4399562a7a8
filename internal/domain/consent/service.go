package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kinetic/kinetic/internal/domain/episode"
	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/metrics"
)

// ChangeHook runs inside the consent transaction after a grant or
// revocation for physioID.
type ChangeHook func(ctx context.Context, physioID uuid.UUID) error

type Service struct {
	consents Repository
	episodes episode.Repository
	gate     *Gate
	tx       db.TxRunner
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	onChange ChangeHook
	now      func() time.Time
}

func NewService(consents Repository, episodes episode.Repository, tx db.TxRunner, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		consents: consents,
		episodes: episodes,
		gate:     NewGate(consents, episodes),
		tx:       tx,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// OnChange registers the recompute hook. A failing hook rolls the consent
// change back, so stored signals never reflect a stale consent set.
func (s *Service) OnChange(h ChangeHook) {
	s.onChange = h
}

func (s *Service) Gate() *Gate { return s.gate }

// Grant records consent for episodeID, re-granting if it was revoked.
func (s *Service) Grant(ctx context.Context, patientID, episodeID uuid.UUID) (*Consent, error) {
	if patientID == uuid.Nil || episodeID == uuid.Nil {
		return nil, apperr.Validation("patient_id and episode_id are required")
	}
	var out *Consent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.episodes.GetByID(ctx, episodeID)
		if err != nil {
			return err
		}
		if e.PatientID != patientID {
			return fmt.Errorf("episode belongs to another patient: %w", apperr.ErrForbidden)
		}
		now := s.now().UTC()
		c := &Consent{
			PatientID: patientID,
			EpisodeID: episodeID,
			PhysioID:  e.PhysioID,
			Status:    StatusGranted,
			Scope:     ScopeSignalComputation,
			GrantedAt: &now,
		}
		if err := s.consents.Upsert(ctx, c); err != nil {
			return err
		}
		if err := s.notify(ctx, c.PhysioID); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ConsentChanged(ScopeSignalComputation, StatusGranted)
	s.logger.Info().Str("consent_id", out.ID.String()).Str("physio_id", out.PhysioID.String()).Msg("signal consent granted")
	return out, nil
}

// Revoke withdraws consent. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, consentID uuid.UUID) (*Consent, error) {
	var out *Consent
	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.consents.GetByID(ctx, consentID)
		if err != nil {
			return err
		}
		out = c
		if c.Status == StatusRevoked {
			return nil
		}
		now := s.now().UTC()
		if err := s.consents.Revoke(ctx, consentID, now); err != nil {
			return err
		}
		c.Status = StatusRevoked
		c.RevokedAt = &now
		changed = true
		return s.notify(ctx, c.PhysioID)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.ConsentChanged(ScopeSignalComputation, StatusRevoked)
		s.logger.Info().Str("consent_id", out.ID.String()).Str("physio_id", out.PhysioID.String()).Msg("signal consent revoked")
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, physioID uuid.UUID) error {
	if s.onChange == nil {
		return nil
	}
	if err := s.onChange(ctx, physioID); err != nil {
		return fmt.Errorf("recompute signals after consent change: %w", err)
	}
	return nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Consent, error) {
	return s.consents.ListByPatient(ctx, patientID)
}

// AnonymizedEpisodes lists the physio's consented GP-referred episodes
// with patients replaced by a stable ordinal.
func (s *Service) AnonymizedEpisodes(ctx context.Context, physioID uuid.UUID) ([]AnonymizedEpisode, error) {
	eps, err := s.gate.ConsentedEpisodes(ctx, physioID)
	if err != nil {
		return nil, err
	}
	index := make(map[uuid.UUID]int)
	out := make([]AnonymizedEpisode, 0, len(eps))
	for _, e := range eps {
		if !e.IsGPReferred {
			continue
		}
		idx, ok := index[e.PatientID]
		if !ok {
			idx = len(index) + 1
			index[e.PatientID] = idx
		}
		out = append(out, AnonymizedEpisode{
			PatientIndex: idx,
			EpisodeID:    e.ID,
			Condition:    e.Condition,
			Status:       e.Status,
			StartedAt:    e.StartedAt,
			DischargedAt: e.DischargedAt,
			VisitCount:   len(e.Visits),
		})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Consent, error) {
	return s.consents.GetByID(ctx, id)
}
