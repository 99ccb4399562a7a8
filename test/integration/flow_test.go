//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic/kinetic/internal/domain/consent"
	"github.com/kinetic/kinetic/internal/domain/continuity"
	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/domain/eligibility"
	"github.com/kinetic/kinetic/internal/domain/episode"
	"github.com/kinetic/kinetic/internal/domain/signals"
	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/lock"
)

type world struct {
	dir        *directory.Service
	episodes   *episode.Service
	epRepo     episode.Repository
	consents   *consent.Service
	signals    *signals.Service
	elig       *eligibility.Service
	continuity *continuity.Service

	origin  *directory.Physiotherapist
	dest    *directory.Physiotherapist
	patient *directory.Patient
	gp      *directory.GP
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	tx := db.NewTransactor(pool)
	log := testLogger()

	w := &world{epRepo: episode.NewRepoPG(pool)}
	w.dir = directory.NewService(directory.NewPhysioRepoPG(pool), directory.NewGPRepoPG(pool), directory.NewPatientRepoPG(pool))
	w.episodes = episode.NewService(w.epRepo, tx)
	w.consents = consent.NewService(consent.NewRepoPG(pool), w.epRepo, tx, nil, log)
	w.signals = signals.NewService(signals.NewRepoPG(pool), w.consents.Gate(), w.dir, tx, lock.NewLocalLocker(), nil, log)
	w.consents.OnChange(w.signals.RecomputeHook())
	w.elig = eligibility.NewService(w.dir, w.signals, eligibility.NewSnapshotRepoPG(pool), nil, log)
	w.continuity = continuity.NewService(continuity.Deps{
		Transitions: continuity.NewTransitionRepoPG(pool),
		Consents:    continuity.NewConsentRepoPG(pool),
		Summaries:   continuity.NewSummaryRepoPG(pool),
		Episodes:    w.epRepo,
		Creator:     w.episodes,
		Directory:   w.dir,
		Tx:          tx,
		Logger:      log,
	})

	tag := uuid.NewString()[:8]
	w.origin = &directory.Physiotherapist{Name: "Ana Costa", Email: "ana-" + tag + "@north.example", Region: "north"}
	w.dest = &directory.Physiotherapist{Name: "Sam Okafor", Email: "sam-" + tag + "@north.example", Region: "north"}
	require.NoError(t, w.dir.CreatePhysio(ctx, w.origin))
	require.NoError(t, w.dir.CreatePhysio(ctx, w.dest))
	w.patient = &directory.Patient{Name: "Jordan Reyes", Region: "north"}
	require.NoError(t, w.dir.CreatePatient(ctx, w.patient))
	w.gp = &directory.GP{Name: "Dr Lee", PracticeName: "Harbour " + tag, Region: "north"}
	require.NoError(t, w.dir.CreateGP(ctx, w.gp))
	return w
}

// episodeWithVisits stores a GP-referred episode with one visit per pain
// score, a week apart.
func (w *world) episodeWithVisits(t *testing.T, pains ...int) *episode.Episode {
	t.Helper()
	ctx := context.Background()
	gp := w.gp.ID
	e := &episode.Episode{
		PatientID:     w.patient.ID,
		PhysioID:      w.origin.ID,
		ReferringGPID: &gp,
		Condition:     "Lumbar radiculopathy",
		StartedAt:     time.Now().UTC().AddDate(0, -3, 0),
	}
	require.NoError(t, w.episodes.CreateEpisode(ctx, e))
	for i, p := range pains {
		p := p
		fn := 30 + 10*i
		require.NoError(t, w.episodes.RecordVisit(ctx, &episode.Visit{
			EpisodeID:     e.ID,
			VisitDate:     e.StartedAt.AddDate(0, 0, 7*i),
			PainScore:     &p,
			FunctionScore: &fn,
		}))
	}
	return e
}

func TestSignals_ConsentGatesStoredSignals(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.episodeWithVisits(t, 8, 6, 4, 2)

	before, err := w.signals.ComputeForPhysio(ctx, w.origin.ID)
	require.NoError(t, err)
	for _, s := range before {
		assert.Zero(t, s.EpisodeCount, "unconsented episode must not count")
	}

	c, err := w.consents.Grant(ctx, w.patient.ID, e.ID)
	require.NoError(t, err)

	stored, err := w.signals.GetSignals(ctx, w.origin.ID)
	require.NoError(t, err)
	require.Len(t, stored, len(signals.Types))
	for _, s := range stored {
		if s.SignalType == signals.TypeOutcomeTrajectory {
			assert.Equal(t, 1, s.EpisodeCount)
		}
	}

	byType := map[string]signals.Signal{}
	for _, s := range stored {
		byType[s.SignalType] = s
	}
	again, err := w.signals.ComputeForPhysio(ctx, w.origin.ID)
	require.NoError(t, err)
	for _, s := range again {
		assert.True(t, s.SameContent(byType[s.SignalType]), "recompute must be idempotent for %s", s.SignalType)
	}

	_, err = w.consents.Revoke(ctx, c.ID)
	require.NoError(t, err)
	stored, err = w.signals.GetSignals(ctx, w.origin.ID)
	require.NoError(t, err)
	for _, s := range stored {
		assert.Zero(t, s.EpisodeCount, "revoked episode must not count")
	}
}

func TestEligibility_SnapshotPersisted(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	res, err := w.elig.SimulateEligibility(ctx, w.origin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.EligibleReferralSets)
	assert.Equal(t, []string{eligibility.GapNotOptedIn}, res.Gaps)

	snap, err := w.elig.LastSnapshot(ctx, w.origin.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Gaps, snap.Result.Gaps)
}

func TestContinuity_RevokedMidFlow(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.episodeWithVisits(t, 7, 6, 6, 5)
	dest := w.dest.ID

	tr, err := w.continuity.InitiateTransition(ctx, continuity.InitiateRequest{
		OriginEpisodeID:     e.ID,
		TransitionType:      continuity.TypePhysioHandoff,
		DestinationPhysioID: &dest,
	})
	require.NoError(t, err)

	origin, err := w.epRepo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, episode.StatusTransferred, origin.Status)

	sum, err := w.continuity.GrantContinuityConsent(ctx, w.patient.ID, tr.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.SummaryPendingReview, sum.Status)
	assert.NotEmpty(t, sum.InterventionsAttempted)

	// One open transition per episode.
	_, err = w.continuity.InitiateTransition(ctx, continuity.InitiateRequest{
		OriginEpisodeID: e.ID,
		TransitionType:  continuity.TypePatientBooking,
	})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	handoffs, err := w.continuity.ListTransitionsForPhysio(ctx, w.origin.ID)
	require.NoError(t, err)
	require.Len(t, handoffs, 1)
	require.NotNil(t, handoffs[0].SummaryID)
	assert.Equal(t, sum.ID, *handoffs[0].SummaryID)

	var consentID uuid.UUID
	err = pool.QueryRow(ctx, `SELECT id FROM continuity_consents WHERE transition_event_id = $1`, tr.ID).Scan(&consentID)
	require.NoError(t, err)

	_, err = w.continuity.RevokeContinuityConsent(ctx, consentID)
	require.NoError(t, err)

	gotSum, err := w.continuity.GetSummary(ctx, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.SummaryRevoked, gotSum.Status)

	gotTr, err := w.continuity.GetTransition(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.TransitionDeclined, gotTr.Status)

	_, err = w.continuity.ReleaseSummary(ctx, sum.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "got %v", err)
}

func TestContinuity_ReleaseGivesDestinationReadOnly(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.episodeWithVisits(t, 6, 4)
	dest := w.dest.ID

	tr, err := w.continuity.InitiateTransition(ctx, continuity.InitiateRequest{
		OriginEpisodeID:     e.ID,
		TransitionType:      continuity.TypePhysioHandoff,
		DestinationPhysioID: &dest,
	})
	require.NoError(t, err)
	sum, err := w.continuity.GrantContinuityConsent(ctx, w.patient.ID, tr.ID, e.ID)
	require.NoError(t, err)

	released, err := w.continuity.ReleaseSummary(ctx, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.SummaryReleased, released.Status)

	view, err := w.continuity.GetSummaryForPhysio(ctx, w.dest.ID, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.AccessReadOnly, view.AccessLevel)
	assert.Equal(t, sum.ConditionFraming, view.ConditionFraming)
}

// interleavedSummaries runs before once, ahead of the first status write.
type interleavedSummaries struct {
	continuity.SummaryRepository
	before func()
	fired  bool
}

func (s *interleavedSummaries) UpdateReview(ctx context.Context, sum *continuity.Summary, from string) error {
	if !s.fired {
		s.fired = true
		s.before()
	}
	return s.SummaryRepository.UpdateReview(ctx, sum, from)
}

func TestContinuity_ApproveLosesToConcurrentRevoke(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	e := w.episodeWithVisits(t, 8, 6, 5)
	dest := w.dest.ID

	tr, err := w.continuity.InitiateTransition(ctx, continuity.InitiateRequest{
		OriginEpisodeID:     e.ID,
		TransitionType:      continuity.TypePhysioHandoff,
		DestinationPhysioID: &dest,
	})
	require.NoError(t, err)
	sum, err := w.continuity.GrantContinuityConsent(ctx, w.patient.ID, tr.ID, e.ID)
	require.NoError(t, err)

	var consentID uuid.UUID
	err = pool.QueryRow(ctx, `SELECT id FROM continuity_consents WHERE transition_event_id = $1`, tr.ID).Scan(&consentID)
	require.NoError(t, err)

	// The revoke commits on its own connection after approve has read the
	// summary as pending-review but before approve writes.
	summaries := &interleavedSummaries{
		SummaryRepository: continuity.NewSummaryRepoPG(pool),
		before: func() {
			_, err := w.continuity.RevokeContinuityConsent(context.Background(), consentID)
			require.NoError(t, err)
		},
	}
	approver := continuity.NewService(continuity.Deps{
		Transitions: continuity.NewTransitionRepoPG(pool),
		Consents:    continuity.NewConsentRepoPG(pool),
		Summaries:   summaries,
		Episodes:    w.epRepo,
		Creator:     w.episodes,
		Directory:   w.dir,
		Tx:          db.NewTransactor(pool),
		Logger:      testLogger(),
	})

	_, err = approver.ApproveSummary(ctx, sum.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "got %v", err)
	assert.True(t, summaries.fired)

	gotSum, err := w.continuity.GetSummary(ctx, sum.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.SummaryRevoked, gotSum.Status)
	assert.Nil(t, gotSum.ReviewedAt)

	gotTr, err := w.continuity.GetTransition(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, continuity.TransitionDeclined, gotTr.Status)
}
