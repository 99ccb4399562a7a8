package main

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kinetic/kinetic/internal/config"
	"github.com/kinetic/kinetic/internal/domain/consent"
	"github.com/kinetic/kinetic/internal/domain/continuity"
	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/domain/eligibility"
	"github.com/kinetic/kinetic/internal/domain/episode"
	"github.com/kinetic/kinetic/internal/domain/signals"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/lock"
	"github.com/kinetic/kinetic/internal/platform/metrics"
	"github.com/kinetic/kinetic/internal/platform/websocket"
)

// app holds the wired services behind the HTTP surface and the CLI.
type app struct {
	directory   *directory.Service
	episodes    *episode.Service
	consents    *consent.Service
	signals     *signals.Service
	eligibility *eligibility.Service
	continuity  *continuity.Service
	metrics     *metrics.Metrics
	hub         *websocket.Hub
	pinger      db.Pinger
}

// repos is the storage each service sits on, either Postgres or memory.
type repos struct {
	physios     directory.PhysioRepository
	gps         directory.GPRepository
	patients    directory.PatientRepository
	episodes    episode.Repository
	consents    consent.Repository
	signals     signals.Repository
	snapshots   eligibility.SnapshotRepository
	transitions continuity.TransitionRepository
	ccConsents  continuity.ConsentRepository
	summaries   continuity.SummaryRepository
}

func pgRepos(pool *pgxpool.Pool) repos {
	return repos{
		physios:     directory.NewPhysioRepoPG(pool),
		gps:         directory.NewGPRepoPG(pool),
		patients:    directory.NewPatientRepoPG(pool),
		episodes:    episode.NewRepoPG(pool),
		consents:    consent.NewRepoPG(pool),
		signals:     signals.NewRepoPG(pool),
		snapshots:   eligibility.NewSnapshotRepoPG(pool),
		transitions: continuity.NewTransitionRepoPG(pool),
		ccConsents:  continuity.NewConsentRepoPG(pool),
		summaries:   continuity.NewSummaryRepoPG(pool),
	}
}

// memoryRepos backs a STORAGE=memory development server. Nothing survives a
// restart and there are no transactions to roll back.
func memoryRepos() repos {
	dir := directory.NewMemoryRepo()
	eps := episode.NewMemoryRepo()
	cc := continuity.NewMemoryRepo()
	return repos{
		physios:     dir.Physios(),
		gps:         dir.GPs(),
		patients:    dir.Patients(),
		episodes:    eps,
		consents:    consent.NewMemoryRepo(eps),
		signals:     signals.NewMemoryRepo(),
		snapshots:   eligibility.NewMemorySnapshotRepo(),
		transitions: cc.Transitions(),
		ccConsents:  cc.Consents(),
		summaries:   cc.Summaries(),
	}
}

// store is the storage a server runs on. pinger is nil for memory.
type store struct {
	repos  repos
	tx     db.TxRunner
	pinger db.Pinger
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	if cfg.UsesMemory() {
		logger.Warn().Msg("STORAGE=memory, data is lost on restart")
		return &store{repos: memoryRepos(), tx: db.NopTransactor{}, close: func() {}}, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")
	return &store{repos: pgRepos(pool), tx: db.NewTransactor(pool), pinger: pool, close: pool.Close}, nil
}

// newLocker returns a Redis-backed locker when REDIS_URL is set so
// replicas share recompute locks, and an in-process one otherwise.
func newLocker(cfg *config.Config, logger zerolog.Logger) (lock.Locker, *redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-process recompute locks")
		return lock.NewLocalLocker(), nil, nil
	}
	client, err := lock.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedisLocker(client, "kinetic:lock:", cfg.RecomputeLockTTL), client, nil
}

func newApp(cfg *config.Config, r repos, tx db.TxRunner, locker lock.Locker, m *metrics.Metrics, logger zerolog.Logger) *app {
	dirSvc := directory.NewService(r.physios, r.gps, r.patients)
	epSvc := episode.NewService(r.episodes, tx)

	consentSvc := consent.NewService(r.consents, r.episodes, tx, m, logger.With().Str("component", "consent").Logger())
	signalSvc := signals.NewService(r.signals, consentSvc.Gate(), dirSvc, tx, locker, m,
		logger.With().Str("component", "signals").Logger(),
		signals.WithConcurrency(cfg.RecomputeConcurrency))
	consentSvc.OnChange(signalSvc.RecomputeHook())

	eligSvc := eligibility.NewService(dirSvc, signalSvc, r.snapshots, m,
		logger.With().Str("component", "eligibility").Logger())

	hub := websocket.NewHub(logger.With().Str("component", "websocket").Logger())
	ccSvc := continuity.NewService(continuity.Deps{
		Transitions: r.transitions,
		Consents:    r.ccConsents,
		Summaries:   r.summaries,
		Episodes:    r.episodes,
		Creator:     epSvc,
		Directory:   dirSvc,
		Notifier:    hub,
		Tx:          tx,
		Metrics:     m,
		Logger:      logger.With().Str("component", "continuity").Logger(),
		ConsentTTL:  cfg.ConsentPendingTTL,
	})

	return &app{
		directory:   dirSvc,
		episodes:    epSvc,
		consents:    consentSvc,
		signals:     signalSvc,
		eligibility: eligSvc,
		continuity:  ccSvc,
		metrics:     m,
		hub:         hub,
	}
}
