package episode

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const episodeCols = `id, patient_id, physio_id, referring_gp_id, condition, status,
	started_at, discharged_at, is_gp_referred, prior_physio_episode_id, created_at`

func scanEpisode(row pgx.Row) (*Episode, error) {
	var e Episode
	err := row.Scan(&e.ID, &e.PatientID, &e.PhysioID, &e.ReferringGPID, &e.Condition, &e.Status,
		&e.StartedAt, &e.DischargedAt, &e.IsGPReferred, &e.PriorPhysioEpisodeID, &e.CreatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Episode) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO episodes (id, patient_id, physio_id, referring_gp_id, condition, status,
			started_at, discharged_at, is_gp_referred, prior_physio_episode_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		e.ID, e.PatientID, e.PhysioID, e.ReferringGPID, e.Condition, e.Status,
		e.StartedAt, e.DischargedAt, e.IsGPReferred, e.PriorPhysioEpisodeID).Scan(&e.CreatedAt)
	return apperr.FromDB(err, "insert episode")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Episode, error) {
	e, err := scanEpisode(r.conn(ctx).QueryRow(ctx, `SELECT `+episodeCols+` FROM episodes WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB(err, "episode "+id.String())
	}
	return e, nil
}

func (r *repoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+episodeCols+` FROM episodes
		WHERE id = ANY($1) ORDER BY started_at, id`, ids)
	if err != nil {
		return nil, apperr.FromDB(err, "list episodes")
	}
	defer rows.Close()
	var out []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan episode")
		}
		out = append(out, e)
	}
	return out, apperr.FromDB(rows.Err(), "list episodes")
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, dischargedAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE episodes SET status = $2, discharged_at = COALESCE($3, discharged_at) WHERE id = $1`,
		id, status, dischargedAt)
	if err != nil {
		return apperr.FromDB(err, "update episode status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("episode", id)
	}
	return nil
}

func (r *repoPG) ListByPhysio(ctx context.Context, physioID uuid.UUID, limit, offset int) ([]*Episode, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM episodes WHERE physio_id = $1`, physioID).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, "count episodes")
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+episodeCols+` FROM episodes
		WHERE physio_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`, physioID, limit, offset)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "list episodes")
	}
	defer rows.Close()
	var items []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, 0, apperr.FromDB(err, "scan episode")
		}
		items = append(items, e)
	}
	return items, total, apperr.FromDB(rows.Err(), "list episodes")
}

const visitCols = `id, episode_id, visit_number, visit_date, pain_score, function_score,
	escalated, treatment_adjusted, notes_summary`

func scanVisit(row pgx.Row) (Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.EpisodeID, &v.VisitNumber, &v.VisitDate, &v.PainScore, &v.FunctionScore,
		&v.Escalated, &v.TreatmentAdjusted, &v.NotesSummary)
	return v, err
}

// AddVisit locks the episode row so concurrent inserts cannot claim the
// same visit number.
func (r *repoPG) AddVisit(ctx context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `SELECT 1 FROM episodes WHERE id = $1 FOR UPDATE`, v.EpisodeID); err != nil {
		return apperr.FromDB(err, "lock episode")
	}
	err := q.QueryRow(ctx, `
		INSERT INTO visits (id, episode_id, visit_number, visit_date, pain_score, function_score,
			escalated, treatment_adjusted, notes_summary)
		SELECT $1, $2, COALESCE(MAX(visit_number), 0) + 1, $3, $4, $5, $6, $7, $8
		FROM visits WHERE episode_id = $2
		RETURNING visit_number`,
		v.ID, v.EpisodeID, v.VisitDate, v.PainScore, v.FunctionScore,
		v.Escalated, v.TreatmentAdjusted, v.NotesSummary).Scan(&v.VisitNumber)
	return apperr.FromDB(err, "insert visit")
}

func (r *repoPG) ListVisits(ctx context.Context, episodeID uuid.UUID) ([]Visit, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM visits
		WHERE episode_id = $1 ORDER BY visit_number`, episodeID)
	if err != nil {
		return nil, apperr.FromDB(err, "list visits")
	}
	defer rows.Close()
	var out []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan visit")
		}
		out = append(out, v)
	}
	return out, apperr.FromDB(rows.Err(), "list visits")
}

func (r *repoPG) ListVisitsForEpisodes(ctx context.Context, episodeIDs []uuid.UUID) (map[uuid.UUID][]Visit, error) {
	out := make(map[uuid.UUID][]Visit, len(episodeIDs))
	if len(episodeIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+visitCols+` FROM visits
		WHERE episode_id = ANY($1) ORDER BY episode_id, visit_number`, episodeIDs)
	if err != nil {
		return nil, apperr.FromDB(err, "list visits")
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan visit")
		}
		out[v.EpisodeID] = append(out[v.EpisodeID], v)
	}
	return out, apperr.FromDB(rows.Err(), "list visits")
}
