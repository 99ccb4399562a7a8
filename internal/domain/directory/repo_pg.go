package directory

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Physiotherapists --

type physioRepoPG struct{ pool *pgxpool.Pool }

func NewPhysioRepoPG(pool *pgxpool.Pool) PhysioRepository {
	return &physioRepoPG{pool: pool}
}

const physioCols = `id, name, email, clinic_name, region, specialties, capacity,
	opted_in, opted_in_at, opted_out_at, preview_mode, created_at`

func scanPhysio(row pgx.Row) (*Physiotherapist, error) {
	var p Physiotherapist
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.ClinicName, &p.Region, &p.Specialties, &p.Capacity,
		&p.OptedIn, &p.OptedInAt, &p.OptedOutAt, &p.PreviewMode, &p.CreatedAt)
	return &p, err
}

func (r *physioRepoPG) Create(ctx context.Context, p *Physiotherapist) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO physiotherapists (id, name, email, clinic_name, region, specialties, capacity,
			opted_in, opted_in_at, opted_out_at, preview_mode)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		p.ID, p.Name, p.Email, p.ClinicName, p.Region, p.Specialties, p.Capacity,
		p.OptedIn, p.OptedInAt, p.OptedOutAt, p.PreviewMode).Scan(&p.CreatedAt)
	return apperr.FromDB(err, "insert physiotherapist")
}

func (r *physioRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Physiotherapist, error) {
	p, err := scanPhysio(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+physioCols+` FROM physiotherapists WHERE id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB(err, "physiotherapist "+id.String())
	}
	return p, nil
}

func (r *physioRepoPG) UpdateOptIn(ctx context.Context, p *Physiotherapist) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE physiotherapists SET opted_in = $2, opted_in_at = $3, opted_out_at = $4, preview_mode = $5
		WHERE id = $1`,
		p.ID, p.OptedIn, p.OptedInAt, p.OptedOutAt, p.PreviewMode)
	if err != nil {
		return apperr.FromDB(err, "update opt-in")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("physiotherapist", p.ID)
	}
	return nil
}

func (r *physioRepoPG) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT id FROM physiotherapists ORDER BY id`)
	if err != nil {
		return nil, apperr.FromDB(err, "list physio ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	return ids, apperr.FromDB(err, "list physio ids")
}

func (r *physioRepoPG) ListDiscoverable(ctx context.Context) ([]*Physiotherapist, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+physioCols+` FROM physiotherapists
		WHERE opted_in AND NOT preview_mode ORDER BY name`)
	if err != nil {
		return nil, apperr.FromDB(err, "list physiotherapists")
	}
	defer rows.Close()
	var out []*Physiotherapist
	for rows.Next() {
		p, err := scanPhysio(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "scan physiotherapist")
		}
		out = append(out, p)
	}
	return out, apperr.FromDB(rows.Err(), "list physiotherapists")
}

// -- GPs --

type gpRepoPG struct{ pool *pgxpool.Pool }

func NewGPRepoPG(pool *pgxpool.Pool) GPRepository {
	return &gpRepoPG{pool: pool}
}

func (r *gpRepoPG) Create(ctx context.Context, g *GP) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO gps (id, name, practice_name, region) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		g.ID, g.Name, g.PracticeName, g.Region).Scan(&g.CreatedAt)
	return apperr.FromDB(err, "insert gp")
}

func (r *gpRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*GP, error) {
	var g GP
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, practice_name, region, created_at FROM gps WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.PracticeName, &g.Region, &g.CreatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "gp "+id.String())
	}
	return &g, nil
}

func (r *gpRepoPG) List(ctx context.Context) ([]*GP, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT id, name, practice_name, region, created_at FROM gps ORDER BY practice_name, id`)
	if err != nil {
		return nil, apperr.FromDB(err, "list gps")
	}
	defer rows.Close()
	var out []*GP
	for rows.Next() {
		var g GP
		if err := rows.Scan(&g.ID, &g.Name, &g.PracticeName, &g.Region, &g.CreatedAt); err != nil {
			return nil, apperr.FromDB(err, "scan gp")
		}
		out = append(out, &g)
	}
	return out, apperr.FromDB(rows.Err(), "list gps")
}

// -- Patients --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO patients (id, name, date_of_birth, region) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		p.ID, p.Name, p.DateOfBirth, p.Region).Scan(&p.CreatedAt)
	return apperr.FromDB(err, "insert patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, date_of_birth, region, created_at FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Region, &p.CreatedAt)
	if err != nil {
		return nil, apperr.FromDB(err, "patient "+id.String())
	}
	return &p, nil
}
