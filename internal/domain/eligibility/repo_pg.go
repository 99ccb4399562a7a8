package eligibility

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
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type snapshotRepoPG struct{ pool *pgxpool.Pool }

func NewSnapshotRepoPG(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepoPG{pool: pool}
}

func (r *snapshotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *snapshotRepoPG) Save(ctx context.Context, s *Snapshot) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO eligibility_snapshots (physio_id, region, eligible_referral_sets,
			total_referral_sets, confidence_factors, gaps, simulated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (physio_id) DO UPDATE SET
			region = EXCLUDED.region,
			eligible_referral_sets = EXCLUDED.eligible_referral_sets,
			total_referral_sets = EXCLUDED.total_referral_sets,
			confidence_factors = EXCLUDED.confidence_factors,
			gaps = EXCLUDED.gaps,
			simulated_at = EXCLUDED.simulated_at`,
		s.PhysioID, s.Region, s.Result.EligibleReferralSets, s.Result.TotalReferralSets,
		s.Result.ConfidenceFactors, s.Result.Gaps, s.SimulatedAt)
	return apperr.FromDB(err, "save eligibility snapshot")
}

func (r *snapshotRepoPG) Get(ctx context.Context, physioID uuid.UUID) (*Snapshot, error) {
	var s Snapshot
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT physio_id, region, eligible_referral_sets, total_referral_sets,
			confidence_factors, gaps, simulated_at
		FROM eligibility_snapshots WHERE physio_id = $1`, physioID).Scan(
		&s.PhysioID, &s.Region, &s.Result.EligibleReferralSets, &s.Result.TotalReferralSets,
		&s.Result.ConfidenceFactors, &s.Result.Gaps, &s.SimulatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "eligibility snapshot "+physioID.String())
	}
	return &s, nil
}
