package consent

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

const consentCols = `id, patient_id, episode_id, physio_id, status, scope, granted_at, revoked_at, created_at`

func scanConsent(row pgx.Row) (*Consent, error) {
	var c Consent
	err := row.Scan(&c.ID, &c.PatientID, &c.EpisodeID, &c.PhysioID, &c.Status, &c.Scope,
		&c.GrantedAt, &c.RevokedAt, &c.CreatedAt)
	return &c, err
}

func (r *repoPG) Upsert(ctx context.Context, c *Consent) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	got, err := scanConsent(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consents (id, patient_id, episode_id, physio_id, status, scope, granted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (episode_id) DO UPDATE
			SET status = EXCLUDED.status, granted_at = EXCLUDED.granted_at, revoked_at = NULL
		RETURNING `+consentCols,
		c.ID, c.PatientID, c.EpisodeID, c.PhysioID, c.Status, c.Scope, c.GrantedAt))
	if err != nil {
		return apperr.FromDB(err, "upsert consent")
	}
	*c = *got
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consent, error) {
	c, err := scanConsent(r.conn(ctx).QueryRow(ctx, `SELECT `+consentCols+` FROM consents WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB(err, "consent "+id.String())
	}
	return c, nil
}

func (r *repoPG) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE consents SET status = 'revoked', revoked_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return apperr.FromDB(err, "revoke consent")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("consent", id)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consent, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+consentCols+` FROM consents
		WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, apperr.FromDB(err, "list consents")
	}
	defer rows.Close()
	var out []*Consent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan consent")
		}
		out = append(out, c)
	}
	return out, apperr.FromDB(rows.Err(), "list consents")
}

func (r *repoPG) ListGrantedEpisodeIDs(ctx context.Context, physioID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.episode_id FROM consents c
		JOIN episodes e ON e.id = c.episode_id
		WHERE e.physio_id = $1 AND c.status = 'granted'
		ORDER BY e.started_at, e.id`, physioID)
	if err != nil {
		return nil, apperr.FromDB(err, "list consented episodes")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	return ids, apperr.FromDB(err, "list consented episodes")
}
