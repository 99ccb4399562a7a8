package signals

import (
	"context"

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

const signalCols = `physio_id, signal_type, value, confidence, episode_count, computed_at, details`

func scanSignal(row pgx.Row) (Signal, error) {
	var s Signal
	err := row.Scan(&s.PhysioID, &s.SignalType, &s.Value, &s.Confidence, &s.EpisodeCount, &s.ComputedAt, &s.Details)
	if s.Details == nil {
		s.Details = map[string]float64{}
	}
	return s, err
}

func (r *repoPG) ReplaceForPhysio(ctx context.Context, physioID uuid.UUID, signals []Signal) error {
	q := r.conn(ctx)
	for _, s := range signals {
		if _, err := q.Exec(ctx,
			`DELETE FROM computed_signals WHERE physio_id = $1 AND signal_type = $2`,
			physioID, s.SignalType); err != nil {
			return apperr.FromDB(err, "delete signal")
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO computed_signals (`+signalCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			physioID, s.SignalType, s.Value, s.Confidence, s.EpisodeCount, s.ComputedAt, s.Details); err != nil {
			return apperr.FromDB(err, "insert signal")
		}
	}
	return nil
}

func (r *repoPG) ListByPhysio(ctx context.Context, physioID uuid.UUID) ([]Signal, error) {
	byPhysio, err := r.ListByPhysios(ctx, []uuid.UUID{physioID})
	if err != nil {
		return nil, err
	}
	return byPhysio[physioID], nil
}

func (r *repoPG) ListByPhysios(ctx context.Context, physioIDs []uuid.UUID) (map[uuid.UUID][]Signal, error) {
	out := make(map[uuid.UUID][]Signal, len(physioIDs))
	if len(physioIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+signalCols+` FROM computed_signals
		WHERE physio_id = ANY($1) ORDER BY physio_id, signal_type`, physioIDs)
	if err != nil {
		return nil, apperr.FromDB(err, "list signals")
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan signal")
		}
		out[s.PhysioID] = append(out[s.PhysioID], s)
	}
	return out, apperr.FromDB(rows.Err(), "list signals")
}

func (r *repoPG) LockPhysio(ctx context.Context, physioID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('signals:' || $1::text, 0))`, physioID)
	return apperr.FromDB(err, "lock physio signals")
}
