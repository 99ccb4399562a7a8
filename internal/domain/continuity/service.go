package continuity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/domain/episode"
	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/metrics"
)

// Directory resolves the people a transition refers to.
type Directory interface {
	GetPhysio(ctx context.Context, id uuid.UUID) (*directory.Physiotherapist, error)
	GetGP(ctx context.Context, id uuid.UUID) (*directory.GP, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error)
}

// EpisodeCreator opens the destination episode of a GP referral.
type EpisodeCreator interface {
	CreateEpisode(ctx context.Context, e *episode.Episode) error
}

// Notifier is told about handoff changes once they have committed.
type Notifier interface {
	NotifyPhysios(ctx context.Context, physioIDs []uuid.UUID, kind string, payload interface{})
}

// HandoffEvent is the payload pushed to the physios on a transition. It
// carries ids and statuses only, never summary content.
type HandoffEvent struct {
	TransitionID  uuid.UUID  `json:"transition_id"`
	Type          string     `json:"transition_type"`
	Status        string     `json:"status"`
	SummaryID     *uuid.UUID `json:"summary_id,omitempty"`
	SummaryStatus string     `json:"summary_status,omitempty"`
}

type Service struct {
	transitions TransitionRepository
	consents    ConsentRepository
	summaries   SummaryRepository
	episodes    episode.Repository
	creator     EpisodeCreator
	dir         Directory
	notifier    Notifier
	tx          db.TxRunner
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	consentTTL  time.Duration
	now         func() time.Time
}

type Deps struct {
	Transitions TransitionRepository
	Consents    ConsentRepository
	Summaries   SummaryRepository
	Episodes    episode.Repository
	Creator     EpisodeCreator
	Directory   Directory
	Notifier    Notifier
	Tx          db.TxRunner
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger

	// ConsentTTL is how long a transition may wait for patient consent
	// before ExpireStaleTransitions closes it.
	ConsentTTL time.Duration
}

func NewService(d Deps) *Service {
	ttl := d.ConsentTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Service{
		transitions: d.Transitions,
		consents:    d.Consents,
		summaries:   d.Summaries,
		episodes:    d.Episodes,
		creator:     d.Creator,
		dir:         d.Directory,
		notifier:    d.Notifier,
		tx:          d.Tx,
		metrics:     d.Metrics,
		logger:      d.Logger,
		consentTTL:  ttl,
		now:         time.Now,
	}
}

// advanceTransition moves t to next, refusing edges the state machine
// does not allow before anything is written.
func (s *Service) advanceTransition(ctx context.Context, t *TransitionEvent, next string, completedAt *time.Time) error {
	if !IsValidTransition(t.Status, next) {
		return apperr.InvalidTransition("transition", t.Status, next)
	}
	if err := s.transitions.UpdateStatus(ctx, t.ID, next, completedAt); err != nil {
		return err
	}
	t.Status = next
	if completedAt != nil {
		t.CompletedAt = completedAt
	}
	s.metrics.TransitionChanged(next)
	return nil
}

// advanceSummary moves sum to next. mutate stamps the review fields and
// runs only once the edge is known to be valid.
func (s *Service) advanceSummary(ctx context.Context, sum *Summary, next string, mutate func(*Summary)) error {
	if !IsValidSummaryTransition(sum.Status, next) {
		return apperr.InvalidTransition("summary", sum.Status, next)
	}
	updated := *sum
	updated.Status = next
	if mutate != nil {
		mutate(&updated)
	}
	if err := s.summaries.UpdateReview(ctx, &updated, sum.Status); err != nil {
		return err
	}
	*sum = updated
	s.metrics.SummaryChanged(next)
	return nil
}

func (s *Service) notify(ctx context.Context, t *TransitionEvent, sum *Summary) {
	if s.notifier == nil || t == nil {
		return
	}
	ev := HandoffEvent{TransitionID: t.ID, Type: t.TransitionType, Status: t.Status}
	if sum != nil {
		id := sum.ID
		ev.SummaryID = &id
		ev.SummaryStatus = sum.Status
	}
	ids := []uuid.UUID{t.OriginPhysioID}
	if t.DestinationPhysioID != nil {
		ids = append(ids, *t.DestinationPhysioID)
	}
	s.notifier.NotifyPhysios(ctx, ids, "handoff."+t.Status, ev)
}

type InitiateRequest struct {
	OriginEpisodeID     uuid.UUID  `json:"origin_episode_id"`
	TransitionType      string     `json:"transition_type"`
	DestinationPhysioID *uuid.UUID `json:"destination_physio_id,omitempty"`
	ReferringGPID       *uuid.UUID `json:"referring_gp_id,omitempty"`

	// RequestedBy, when set, must be the origin episode's physio.
	RequestedBy uuid.UUID `json:"-"`
}

// InitiateTransition opens a handoff from an episode and leaves it waiting
// for patient consent. An active origin episode is marked transferred.
func (s *Service) InitiateTransition(ctx context.Context, req InitiateRequest) (*TransitionEvent, error) {
	if req.OriginEpisodeID == uuid.Nil {
		return nil, apperr.Validation("origin_episode_id is required")
	}
	if !validTransitionType(req.TransitionType) {
		return nil, apperr.Validation("invalid transition_type %q", req.TransitionType)
	}
	if req.TransitionType == TypePhysioHandoff && req.DestinationPhysioID == nil {
		return nil, apperr.Validation("destination_physio_id is required for a physio handoff")
	}

	var out *TransitionEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		origin, err := s.episodes.GetByID(ctx, req.OriginEpisodeID)
		if err != nil {
			return err
		}
		if req.RequestedBy != uuid.Nil && origin.PhysioID != req.RequestedBy {
			return fmt.Errorf("episode belongs to another physio: %w", apperr.ErrForbidden)
		}
		if req.DestinationPhysioID != nil {
			if *req.DestinationPhysioID == origin.PhysioID {
				return apperr.Validation("destination physio must differ from the origin physio")
			}
			if _, err := s.dir.GetPhysio(ctx, *req.DestinationPhysioID); err != nil {
				return fmt.Errorf("destination physio: %w", err)
			}
		}
		t, err := s.open(ctx, origin, req, nil)
		if err != nil {
			return err
		}
		if origin.Status == episode.StatusActive {
			now := s.now().UTC()
			if err := s.episodes.UpdateStatus(ctx, origin.ID, episode.StatusTransferred, &now); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("transition_id", out.ID.String()).
		Str("type", out.TransitionType).
		Str("origin_physio_id", out.OriginPhysioID.String()).
		Msg("transition initiated")
	s.notify(ctx, out, nil)
	return out, nil
}

// open inserts an initiated transition and moves it to consent-pending.
func (s *Service) open(ctx context.Context, origin *episode.Episode, req InitiateRequest, destEpisode *uuid.UUID) (*TransitionEvent, error) {
	existing, err := s.transitions.FindOpenForEpisode(ctx, origin.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("episode already has open transition %s: %w", existing.ID, apperr.ErrConflict)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	t := &TransitionEvent{
		ID:                   uuid.New(),
		PatientID:            origin.PatientID,
		OriginEpisodeID:      origin.ID,
		OriginPhysioID:       origin.PhysioID,
		DestinationEpisodeID: destEpisode,
		DestinationPhysioID:  req.DestinationPhysioID,
		ReferringGPID:        req.ReferringGPID,
		TransitionType:       req.TransitionType,
		Status:               TransitionInitiated,
		InitiatedAt:          s.now().UTC(),
	}
	if err := s.transitions.Create(ctx, t); err != nil {
		return nil, err
	}
	s.metrics.TransitionChanged(TransitionInitiated)
	if err := s.advanceTransition(ctx, t, TransitionConsentPending, nil); err != nil {
		return nil, err
	}
	return t, nil
}

// GrantContinuityConsent records the patient's consent to share a summary
// of the origin episode and generates that summary for review.
func (s *Service) GrantContinuityConsent(ctx context.Context, patientID, transitionID, originEpisodeID uuid.UUID) (*Summary, error) {
	var (
		out *Summary
		tr  *TransitionEvent
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.transitions.GetByID(ctx, transitionID)
		if err != nil {
			return err
		}
		if t.PatientID != patientID {
			return fmt.Errorf("transition belongs to another patient: %w", apperr.ErrForbidden)
		}
		if originEpisodeID != uuid.Nil && originEpisodeID != t.OriginEpisodeID {
			return apperr.Validation("origin episode does not match the transition")
		}
		if !IsValidTransition(t.Status, TransitionSummaryPending) {
			return apperr.InvalidTransition("transition", t.Status, TransitionSummaryPending)
		}

		now := s.now().UTC()
		c := &ContinuityConsent{
			ID:                uuid.New(),
			PatientID:         patientID,
			TransitionEventID: t.ID,
			OriginEpisodeID:   t.OriginEpisodeID,
			Status:            ConsentGranted,
			Scope:             ConsentScope,
			GrantedAt:         &now,
		}
		if err := s.consents.Create(ctx, c); err != nil {
			return err
		}
		if err := s.advanceTransition(ctx, t, TransitionSummaryPending, nil); err != nil {
			return err
		}

		sum, err := s.generate(ctx, t, now)
		if err != nil {
			return err
		}
		if err := s.advanceTransition(ctx, t, TransitionReviewPending, nil); err != nil {
			return err
		}
		out, tr = sum, t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ConsentChanged(ConsentScope, ConsentGranted)
	s.logger.Info().
		Str("transition_id", transitionID.String()).
		Str("summary_id", out.ID.String()).
		Msg("continuity consent granted, summary generated")
	s.notify(ctx, tr, out)
	return out, nil
}

// generate builds the summary for t's origin episode, stores it as a draft
// and submits it for review.
func (s *Service) generate(ctx context.Context, t *TransitionEvent, at time.Time) (*Summary, error) {
	origin, err := s.episodes.GetByID(ctx, t.OriginEpisodeID)
	if err != nil {
		return nil, err
	}
	visits, err := s.episodes.ListVisits(ctx, origin.ID)
	if err != nil {
		return nil, err
	}
	patient, err := s.dir.GetPatient(ctx, t.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient: %w", err)
	}

	sum := &Summary{
		ID:                uuid.New(),
		TransitionEventID: t.ID,
		OriginEpisodeID:   origin.ID,
		OriginPhysioID:    origin.PhysioID,
		PatientID:         t.PatientID,
		Content:           Generate(Input{Episode: *origin, Visits: visits, PatientName: patient.Name}),
		Status:            SummaryDraft,
		GeneratedAt:       at,
	}
	if err := s.summaries.Create(ctx, sum); err != nil {
		return nil, err
	}
	s.metrics.SummaryChanged(SummaryDraft)
	if err := s.advanceSummary(ctx, sum, SummaryPendingReview, nil); err != nil {
		return nil, err
	}
	return sum, nil
}

// RevokeContinuityConsent withdraws consent and cascades: the summary is
// revoked and an open transition is declined. A released transition stays
// released; its summary is still revoked so the destination loses access.
func (s *Service) RevokeContinuityConsent(ctx context.Context, consentID uuid.UUID) (*ContinuityConsent, error) {
	var (
		out *ContinuityConsent
		tr  *TransitionEvent
	)
	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.consents.GetByID(ctx, consentID)
		if err != nil {
			return err
		}
		out = c
		switch c.Status {
		case ConsentRevoked:
			return nil
		case ConsentExpired:
			return fmt.Errorf("consent has expired: %w", apperr.ErrConflict)
		}

		t, err := s.transitions.GetByID(ctx, c.TransitionEventID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.consents.UpdateStatus(ctx, c.ID, ConsentRevoked, now); err != nil {
			return err
		}
		c.Status = ConsentRevoked
		c.RevokedAt = &now

		if err := s.revokeSummary(ctx, t.ID, now); err != nil {
			return err
		}
		if IsValidTransition(t.Status, TransitionDeclined) {
			if err := s.advanceTransition(ctx, t, TransitionDeclined, &now); err != nil {
				return err
			}
		}
		tr = t
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.ConsentChanged(ConsentScope, ConsentRevoked)
		s.logger.Info().Str("consent_id", consentID.String()).Msg("continuity consent revoked")
		s.notify(ctx, tr, nil)
	}
	return out, nil
}

// revokeSummary revokes the transition's summary if it has one that can
// still be revoked.
func (s *Service) revokeSummary(ctx context.Context, transitionID uuid.UUID, at time.Time) error {
	sum, err := s.summaries.FindByTransition(ctx, transitionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !IsValidSummaryTransition(sum.Status, SummaryRevoked) {
		return nil
	}
	return s.advanceSummary(ctx, sum, SummaryRevoked, func(u *Summary) { u.RevokedAt = &at })
}

// ApproveSummary records the origin physio's review. Empty annotations
// are stored as none.
func (s *Service) ApproveSummary(ctx context.Context, summaryID uuid.UUID, annotations *string) (*Summary, error) {
	var out *Summary
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sum, err := s.summaries.GetByID(ctx, summaryID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		note := normalizeAnnotations(annotations)
		if err := s.advanceSummary(ctx, sum, SummaryApproved, func(u *Summary) {
			u.ReviewedAt = &now
			u.PhysioAnnotations = note
		}); err != nil {
			return err
		}
		out = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeAnnotations(a *string) *string {
	if a == nil {
		return nil
	}
	v := strings.TrimSpace(*a)
	if v == "" {
		return nil
	}
	return &v
}

// ReleaseSummary makes the summary visible to the destination physio and
// completes the transition. A summary still pending review is approved on
// the way through autoApproveForRelease.
func (s *Service) ReleaseSummary(ctx context.Context, summaryID uuid.UUID) (*Summary, error) {
	var (
		out *Summary
		tr  *TransitionEvent
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sum, err := s.summaries.GetByID(ctx, summaryID)
		if err != nil {
			return err
		}
		if sum.Status != SummaryApproved && sum.Status != SummaryPendingReview {
			return apperr.InvalidTransition("summary", sum.Status, SummaryReleased)
		}
		t, err := s.transitions.GetByID(ctx, sum.TransitionEventID)
		if err != nil {
			return err
		}
		if !IsValidTransition(t.Status, TransitionReleased) {
			return apperr.InvalidTransition("transition", t.Status, TransitionReleased)
		}

		now := s.now().UTC()
		if sum.Status == SummaryPendingReview {
			if err := s.autoApproveForRelease(ctx, sum, now); err != nil {
				return err
			}
		}
		if err := s.advanceSummary(ctx, sum, SummaryReleased, func(u *Summary) { u.ReleasedAt = &now }); err != nil {
			return err
		}
		if err := s.advanceTransition(ctx, t, TransitionReleased, &now); err != nil {
			return err
		}
		out, tr = sum, t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("summary_id", summaryID.String()).Msg("summary released")
	s.notify(ctx, tr, out)
	return out, nil
}

// autoApproveForRelease approves a pending summary as part of releasing
// it, keeping any earlier review timestamp.
func (s *Service) autoApproveForRelease(ctx context.Context, sum *Summary, at time.Time) error {
	return s.advanceSummary(ctx, sum, SummaryApproved, func(u *Summary) {
		if u.ReviewedAt == nil {
			u.ReviewedAt = &at
		}
	})
}

// DeclineTransition closes an open transition on the origin physio's
// behalf, revoking any consent and summary attached to it.
func (s *Service) DeclineTransition(ctx context.Context, transitionID uuid.UUID) (*TransitionEvent, error) {
	var out *TransitionEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.transitions.GetByID(ctx, transitionID)
		if err != nil {
			return err
		}
		if !IsValidTransition(t.Status, TransitionDeclined) {
			return apperr.InvalidTransition("transition", t.Status, TransitionDeclined)
		}
		now := s.now().UTC()
		if err := s.closeConsent(ctx, t.ID, ConsentRevoked, now); err != nil {
			return err
		}
		if err := s.revokeSummary(ctx, t.ID, now); err != nil {
			return err
		}
		if err := s.advanceTransition(ctx, t, TransitionDeclined, &now); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, out, nil)
	return out, nil
}

func (s *Service) closeConsent(ctx context.Context, transitionID uuid.UUID, status string, at time.Time) error {
	c, err := s.consents.FindActiveForTransition(ctx, transitionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.consents.UpdateStatus(ctx, c.ID, status, at); err != nil {
		return err
	}
	s.metrics.ConsentChanged(ConsentScope, status)
	return nil
}

// ExpireStaleTransitions expires transitions that have waited for consent
// longer than the configured TTL. It returns how many were expired.
func (s *Service) ExpireStaleTransitions(ctx context.Context) (int, error) {
	now := s.now().UTC()
	stale, err := s.transitions.ListByStatusBefore(ctx, TransitionConsentPending, now.Add(-s.consentTTL))
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, t := range stale {
		t := t
		var done *TransitionEvent
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			cur, err := s.transitions.GetByID(ctx, t.ID)
			if err != nil {
				return err
			}
			if cur.Status != TransitionConsentPending {
				return nil
			}
			if err := s.closeConsent(ctx, cur.ID, ConsentExpired, now); err != nil {
				return err
			}
			if err := s.advanceTransition(ctx, cur, TransitionExpired, &now); err != nil {
				return err
			}
			done = cur
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).Str("transition_id", t.ID.String()).Msg("expire transition failed")
			continue
		}
		if done != nil {
			expired++
			s.notify(ctx, done, nil)
		}
	}
	if expired > 0 {
		s.logger.Info().Int("count", expired).Msg("stale transitions expired")
	}
	return expired, nil
}

type GPReferralRequest struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	DestinationPhysioID uuid.UUID  `json:"destination_physio_id"`
	Condition           string     `json:"condition"`
	OriginEpisodeID     *uuid.UUID `json:"origin_episode_id,omitempty"`
}

type GPReferral struct {
	Episode    *episode.Episode `json:"episode"`
	Transition *TransitionEvent `json:"transition,omitempty"`
}

// CreateGPReferral opens a GP-referred episode with the destination
// physio. When the patient is coming from an earlier episode, a gp-referral
// transition links the two. The origin episode keeps its status.
func (s *Service) CreateGPReferral(ctx context.Context, gpID uuid.UUID, req GPReferralRequest) (*GPReferral, error) {
	if req.PatientID == uuid.Nil || req.DestinationPhysioID == uuid.Nil {
		return nil, apperr.Validation("patient_id and destination_physio_id are required")
	}
	if strings.TrimSpace(req.Condition) == "" {
		return nil, apperr.Validation("condition is required")
	}

	out := &GPReferral{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.dir.GetGP(ctx, gpID); err != nil {
			return fmt.Errorf("gp: %w", err)
		}
		if _, err := s.dir.GetPatient(ctx, req.PatientID); err != nil {
			return fmt.Errorf("patient: %w", err)
		}
		if _, err := s.dir.GetPhysio(ctx, req.DestinationPhysioID); err != nil {
			return fmt.Errorf("destination physio: %w", err)
		}

		gp := gpID
		e := &episode.Episode{
			PatientID:            req.PatientID,
			PhysioID:             req.DestinationPhysioID,
			ReferringGPID:        &gp,
			Condition:            req.Condition,
			Status:               episode.StatusActive,
			StartedAt:            s.now().UTC(),
			IsGPReferred:         true,
			PriorPhysioEpisodeID: req.OriginEpisodeID,
		}
		if err := s.creator.CreateEpisode(ctx, e); err != nil {
			return err
		}
		out.Episode = e

		if req.OriginEpisodeID == nil {
			return nil
		}
		origin, err := s.episodes.GetByID(ctx, *req.OriginEpisodeID)
		if err != nil {
			return err
		}
		dest := req.DestinationPhysioID
		t, err := s.open(ctx, origin, InitiateRequest{
			OriginEpisodeID:     origin.ID,
			TransitionType:      TypeGPReferral,
			DestinationPhysioID: &dest,
			ReferringGPID:       &gp,
		}, &e.ID)
		if err != nil {
			return err
		}
		out.Transition = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("gp_id", gpID.String()).
		Str("episode_id", out.Episode.ID.String()).
		Msg("gp referral created")
	s.notify(ctx, out.Transition, nil)
	return out, nil
}

// GetSummaryForPhysio returns a summary if physioID may see it: the origin
// physio always, the destination physio once released.
func (s *Service) GetSummaryForPhysio(ctx context.Context, physioID, summaryID uuid.UUID) (*SummaryView, error) {
	sum, err := s.summaries.GetByID(ctx, summaryID)
	if err != nil {
		return nil, err
	}
	if sum.OriginPhysioID == physioID {
		return &SummaryView{Summary: sum, AccessLevel: AccessFull}, nil
	}
	t, err := s.transitions.GetByID(ctx, sum.TransitionEventID)
	if err != nil {
		return nil, err
	}
	if t.DestinationPhysioID == nil || *t.DestinationPhysioID != physioID {
		return nil, fmt.Errorf("summary %s: %w", summaryID, apperr.ErrForbidden)
	}
	if sum.Status != SummaryReleased {
		return nil, fmt.Errorf("summary not yet released: %w", apperr.ErrForbidden)
	}
	return &SummaryView{Summary: sum, AccessLevel: AccessReadOnly}, nil
}

func (s *Service) ListTransitionsForPhysio(ctx context.Context, physioID uuid.UUID) ([]Handoff, error) {
	out, err := s.transitions.ListForPhysio(ctx, physioID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Handoff{}
	}
	return out, nil
}

func (s *Service) GetTransition(ctx context.Context, id uuid.UUID) (*TransitionEvent, error) {
	return s.transitions.GetByID(ctx, id)
}

func (s *Service) GetContinuityConsent(ctx context.Context, id uuid.UUID) (*ContinuityConsent, error) {
	return s.consents.GetByID(ctx, id)
}

func (s *Service) GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	return s.summaries.GetByID(ctx, id)
}
