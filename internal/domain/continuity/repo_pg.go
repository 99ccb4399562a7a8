package continuity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kinetic/kinetic/internal/platform/apperr"
	"github.com/kinetic/kinetic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- transitions --

type transitionRepoPG struct{ pool *pgxpool.Pool }

func NewTransitionRepoPG(pool *pgxpool.Pool) TransitionRepository {
	return &transitionRepoPG{pool: pool}
}

const transitionCols = `id, patient_id, origin_episode_id, origin_physio_id, destination_episode_id,
	destination_physio_id, referring_gp_id, transition_type, status, initiated_at, completed_at`

func scanTransition(row pgx.Row, extra ...interface{}) (*TransitionEvent, error) {
	var t TransitionEvent
	dest := []interface{}{&t.ID, &t.PatientID, &t.OriginEpisodeID, &t.OriginPhysioID, &t.DestinationEpisodeID,
		&t.DestinationPhysioID, &t.ReferringGPID, &t.TransitionType, &t.Status, &t.InitiatedAt, &t.CompletedAt}
	err := row.Scan(append(dest, extra...)...)
	return &t, err
}

func (r *transitionRepoPG) Create(ctx context.Context, t *TransitionEvent) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO transition_events (`+transitionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.PatientID, t.OriginEpisodeID, t.OriginPhysioID, t.DestinationEpisodeID,
		t.DestinationPhysioID, t.ReferringGPID, t.TransitionType, t.Status, t.InitiatedAt, t.CompletedAt)
	return apperr.FromDB(err, "insert transition")
}

func (r *transitionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TransitionEvent, error) {
	t, err := scanTransition(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+transitionCols+` FROM transition_events WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, apperr.FromDB(err, "transition "+id.String())
	}
	return t, nil
}

func (r *transitionRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, completedAt *time.Time) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx,
		`UPDATE transition_events SET status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1`,
		id, status, completedAt)
	if err != nil {
		return apperr.FromDB(err, "update transition status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("transition", id)
	}
	return nil
}

func (r *transitionRepoPG) FindOpenForEpisode(ctx context.Context, episodeID uuid.UUID) (*TransitionEvent, error) {
	t, err := scanTransition(connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT `+transitionCols+` FROM transition_events
		WHERE origin_episode_id = $1 AND status NOT IN ('released', 'declined', 'expired')
		ORDER BY initiated_at DESC LIMIT 1`, episodeID))
	if err != nil {
		return nil, apperr.FromDB(err, "open transition for episode "+episodeID.String())
	}
	return t, nil
}

func (r *transitionRepoPG) ListForPhysio(ctx context.Context, physioID uuid.UUID) ([]Handoff, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT t.id, t.patient_id, t.origin_episode_id, t.origin_physio_id, t.destination_episode_id,
			t.destination_physio_id, t.referring_gp_id, t.transition_type, t.status, t.initiated_at,
			t.completed_at, s.id, s.status
		FROM transition_events t
		LEFT JOIN continuity_summaries s ON s.transition_event_id = t.id
		WHERE t.origin_physio_id = $1 OR t.destination_physio_id = $1
		ORDER BY t.initiated_at DESC`, physioID)
	if err != nil {
		return nil, apperr.FromDB(err, "list transitions")
	}
	defer rows.Close()
	var out []Handoff
	for rows.Next() {
		var h Handoff
		t, err := scanTransition(rows, &h.SummaryID, &h.SummaryStatus)
		if err != nil {
			return nil, apperr.FromDB(err, "scan transition")
		}
		h.TransitionEvent = *t
		h.Outgoing = t.OriginPhysioID == physioID
		out = append(out, h)
	}
	return out, apperr.FromDB(rows.Err(), "list transitions")
}

func (r *transitionRepoPG) ListByStatusBefore(ctx context.Context, status string, before time.Time) ([]*TransitionEvent, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+transitionCols+` FROM transition_events
		WHERE status = $1 AND initiated_at < $2 ORDER BY initiated_at`, status, before)
	if err != nil {
		return nil, apperr.FromDB(err, "list stale transitions")
	}
	defer rows.Close()
	var out []*TransitionEvent
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan transition")
		}
		out = append(out, t)
	}
	return out, apperr.FromDB(rows.Err(), "list stale transitions")
}

// -- continuity consents --

type consentRepoPG struct{ pool *pgxpool.Pool }

func NewConsentRepoPG(pool *pgxpool.Pool) ConsentRepository {
	return &consentRepoPG{pool: pool}
}

const consentCols = `id, patient_id, transition_event_id, origin_episode_id, status, scope, granted_at, revoked_at`

func scanConsent(row pgx.Row) (*ContinuityConsent, error) {
	var c ContinuityConsent
	err := row.Scan(&c.ID, &c.PatientID, &c.TransitionEventID, &c.OriginEpisodeID, &c.Status, &c.Scope,
		&c.GrantedAt, &c.RevokedAt)
	return &c, err
}

func (r *consentRepoPG) Create(ctx context.Context, c *ContinuityConsent) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO continuity_consents (`+consentCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.PatientID, c.TransitionEventID, c.OriginEpisodeID, c.Status, c.Scope, c.GrantedAt, c.RevokedAt)
	return apperr.FromDB(err, "insert continuity consent")
}

func (r *consentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ContinuityConsent, error) {
	c, err := scanConsent(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+consentCols+` FROM continuity_consents WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB(err, "continuity consent "+id.String())
	}
	return c, nil
}

func (r *consentRepoPG) FindActiveForTransition(ctx context.Context, transitionID uuid.UUID) (*ContinuityConsent, error) {
	c, err := scanConsent(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+consentCols+` FROM continuity_consents
		WHERE transition_event_id = $1 AND status = 'granted'`, transitionID))
	if err != nil {
		return nil, apperr.FromDB(err, "active consent for transition "+transitionID.String())
	}
	return c, nil
}

// UpdateStatus stamps revoked_at for revocations and expiries alike.
func (r *consentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx,
		`UPDATE continuity_consents SET status = $2, revoked_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return apperr.FromDB(err, "update continuity consent")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("continuity consent", id)
	}
	return nil
}

// -- summaries --

type summaryRepoPG struct{ pool *pgxpool.Pool }

func NewSummaryRepoPG(pool *pgxpool.Pool) SummaryRepository {
	return &summaryRepoPG{pool: pool}
}

const summaryCols = `id, transition_event_id, origin_episode_id, origin_physio_id, patient_id,
	condition_framing, diagnosis_hypothesis, interventions_attempted, responded, did_not_respond,
	current_status, open_considerations, physio_annotations, status, generated_at, reviewed_at,
	released_at, revoked_at`

func scanSummary(row pgx.Row) (*Summary, error) {
	var s Summary
	err := row.Scan(&s.ID, &s.TransitionEventID, &s.OriginEpisodeID, &s.OriginPhysioID, &s.PatientID,
		&s.ConditionFraming, &s.DiagnosisHypothesis, &s.InterventionsAttempted,
		&s.ResponseProfile.Responded, &s.ResponseProfile.DidNotRespond,
		&s.CurrentStatus, &s.OpenConsiderations, &s.PhysioAnnotations, &s.Status, &s.GeneratedAt,
		&s.ReviewedAt, &s.ReleasedAt, &s.RevokedAt)
	return &s, err
}

func (r *summaryRepoPG) Create(ctx context.Context, s *Summary) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := connFor(ctx, r.pool).Exec(ctx, `
		INSERT INTO continuity_summaries (`+summaryCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		s.ID, s.TransitionEventID, s.OriginEpisodeID, s.OriginPhysioID, s.PatientID,
		s.ConditionFraming, s.DiagnosisHypothesis, s.InterventionsAttempted,
		s.ResponseProfile.Responded, s.ResponseProfile.DidNotRespond,
		s.CurrentStatus, s.OpenConsiderations, s.PhysioAnnotations, s.Status, s.GeneratedAt,
		s.ReviewedAt, s.ReleasedAt, s.RevokedAt)
	return apperr.FromDB(err, "insert summary")
}

func (r *summaryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Summary, error) {
	s, err := scanSummary(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+summaryCols+` FROM continuity_summaries WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB(err, "summary "+id.String())
	}
	return s, nil
}

func (r *summaryRepoPG) FindByTransition(ctx context.Context, transitionID uuid.UUID) (*Summary, error) {
	s, err := scanSummary(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+summaryCols+` FROM continuity_summaries WHERE transition_event_id = $1`, transitionID))
	if err != nil {
		return nil, apperr.FromDB(err, "summary for transition "+transitionID.String())
	}
	return s, nil
}

func (r *summaryRepoPG) UpdateReview(ctx context.Context, s *Summary, from string) error {
	q := connFor(ctx, r.pool)
	tag, err := q.Exec(ctx, `
		UPDATE continuity_summaries SET status = $2, physio_annotations = $3,
			reviewed_at = $4, released_at = $5, revoked_at = $6
		WHERE id = $1 AND status = $7`,
		s.ID, s.Status, s.PhysioAnnotations, s.ReviewedAt, s.ReleasedAt, s.RevokedAt, from)
	if err != nil {
		return apperr.FromDB(err, "update summary")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// Lost a race with another writer, or the row is gone.
	var cur string
	if err := q.QueryRow(ctx, `SELECT status FROM continuity_summaries WHERE id = $1`, s.ID).Scan(&cur); err != nil {
		return apperr.FromDB(err, "summary "+s.ID.String())
	}
	return apperr.InvalidTransition("summary", cur, s.Status)
}
