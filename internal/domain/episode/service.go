package episode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/db"
)

type Service struct {
	episodes Repository
	tx       db.TxRunner
	now      func() time.Time
}

func NewService(episodes Repository, tx db.TxRunner) *Service {
	return &Service{episodes: episodes, tx: tx, now: time.Now}
}

var validStatuses = map[string]bool{
	StatusActive: true, StatusDischarged: true, StatusSelfDischarged: true, StatusTransferred: true,
}

// CreateEpisode validates e and stores it. A prior episode must already
// exist, belong to the same patient and have started earlier.
func (s *Service) CreateEpisode(ctx context.Context, e *Episode) error {
	if e.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if e.PhysioID == uuid.Nil {
		return apperr.Validation("physio_id is required")
	}
	e.Condition = strings.TrimSpace(e.Condition)
	if e.Condition == "" {
		return apperr.Validation("condition is required")
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if e.Status != StatusActive {
		return apperr.Validation("new episodes must be active, got %q", e.Status)
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = s.now().UTC()
	}
	if e.ReferringGPID != nil {
		e.IsGPReferred = true
	}

	if e.PriorPhysioEpisodeID != nil {
		prior, err := s.episodes.GetByID(ctx, *e.PriorPhysioEpisodeID)
		if err != nil {
			return fmt.Errorf("prior episode: %w", err)
		}
		if prior.PatientID != e.PatientID {
			return apperr.Validation("prior episode belongs to a different patient")
		}
		if !prior.StartedAt.Before(e.StartedAt) {
			return apperr.Validation("prior episode must start before this episode")
		}
	}
	return s.episodes.Create(ctx, e)
}

func (s *Service) GetEpisode(ctx context.Context, id uuid.UUID) (*WithVisits, error) {
	e, err := s.episodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	visits, err := s.episodes.ListVisits(ctx, id)
	if err != nil {
		return nil, err
	}
	SortVisits(visits)
	return &WithVisits{Episode: *e, Visits: visits}, nil
}

func (s *Service) ListEpisodes(ctx context.Context, physioID uuid.UUID, limit, offset int) ([]*Episode, int, error) {
	return s.episodes.ListByPhysio(ctx, physioID, limit, offset)
}

// RecordVisit appends a visit to an active episode. The visit number is
// assigned by the repository.
func (s *Service) RecordVisit(ctx context.Context, v *Visit) error {
	if v.PainScore != nil && (*v.PainScore < 0 || *v.PainScore > 10) {
		return apperr.Validation("pain_score must be between 0 and 10, got %d", *v.PainScore)
	}
	if v.FunctionScore != nil && (*v.FunctionScore < 0 || *v.FunctionScore > 100) {
		return apperr.Validation("function_score must be between 0 and 100, got %d", *v.FunctionScore)
	}
	if v.NotesSummary != nil {
		trimmed := strings.TrimSpace(*v.NotesSummary)
		if trimmed == "" {
			v.NotesSummary = nil
		} else {
			v.NotesSummary = &trimmed
		}
	}
	if v.VisitDate.IsZero() {
		v.VisitDate = s.now().UTC()
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.episodes.GetByID(ctx, v.EpisodeID)
		if err != nil {
			return err
		}
		if e.IsTerminal() {
			return fmt.Errorf("episode is %s: %w", e.Status, apperr.ErrConflict)
		}
		if v.VisitDate.Before(e.StartedAt) {
			return apperr.Validation("visit_date precedes the episode start")
		}
		return s.episodes.AddVisit(ctx, v)
	})
}

// ChangeStatus moves an active episode to a terminal status. Terminal
// statuses never change again.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string) (*Episode, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	var out *Episode
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.episodes.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if e.Status == status {
			out = e
			return nil
		}
		if e.IsTerminal() {
			return apperr.InvalidTransition("episode", e.Status, status)
		}
		var dischargedAt *time.Time
		if status == StatusDischarged || status == StatusSelfDischarged {
			now := s.now().UTC()
			dischargedAt = &now
		}
		if err := s.episodes.UpdateStatus(ctx, id, status, dischargedAt); err != nil {
			return err
		}
		e.Status = status
		if dischargedAt != nil {
			e.DischargedAt = dischargedAt
		}
		out = e
		return nil
	})
	return out, err
}
