package signals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kinetic/kinetic/internal/domain/consent"
	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/platform/db"
	"github.com/kinetic/kinetic/internal/platform/lock"
	"github.com/kinetic/kinetic/internal/platform/metrics"
)

// Physios resolves the physio a recompute is for and enumerates the ones
// a batch recompute covers.
type Physios interface {
	GetPhysio(ctx context.Context, id uuid.UUID) (*directory.Physiotherapist, error)
	ListPhysioIDs(ctx context.Context) ([]uuid.UUID, error)
}

type Service struct {
	repo        Repository
	gate        *consent.Gate
	physios     Physios
	tx          db.TxRunner
	locker      lock.Locker
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	concurrency int
	now         func() time.Time
}

type Option func(*Service)

// WithConcurrency bounds how many physios RecomputeAll processes at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, gate *consent.Gate, physios Physios, tx db.TxRunner,
	locker lock.Locker, m *metrics.Metrics, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		gate:        gate,
		physios:     physios,
		tx:          tx,
		locker:      locker,
		metrics:     m,
		logger:      logger,
		concurrency: 4,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func lockKey(physioID uuid.UUID) string {
	return "signals:" + physioID.String()
}

// ComputeForPhysio recomputes and stores all three signals for physioID
// from its consented episodes. The read and the replace share one
// transaction, so a reader never sees a partially replaced set. An unknown
// physio is ErrNotFound.
func (s *Service) ComputeForPhysio(ctx context.Context, physioID uuid.UUID) ([]Signal, error) {
	if _, err := s.physios.GetPhysio(ctx, physioID); err != nil {
		return nil, err
	}
	start := time.Now()
	var out []Signal
	err := s.locker.WithLock(ctx, lockKey(physioID), func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.repo.LockPhysio(ctx, physioID); err != nil {
				return err
			}
			episodes, err := s.gate.ConsentedEpisodes(ctx, physioID)
			if err != nil {
				return fmt.Errorf("load consented episodes: %w", err)
			}
			out = Compute(physioID, episodes, s.now().UTC())
			return s.repo.ReplaceForPhysio(ctx, physioID, out)
		})
	})
	s.metrics.SignalRecompute(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	for _, sig := range out {
		s.metrics.SignalEpisodes(sig.SignalType, sig.Confidence, sig.EpisodeCount)
	}
	s.logger.Debug().Str("physio_id", physioID.String()).Msg("signals recomputed")
	return out, nil
}

// RecomputeHook adapts ComputeForPhysio to a consent change hook.
func (s *Service) RecomputeHook() consent.ChangeHook {
	return func(ctx context.Context, physioID uuid.UUID) error {
		_, err := s.ComputeForPhysio(ctx, physioID)
		return err
	}
}

// BatchResult reports a RecomputeAll run. Failed maps physio to the error
// that stopped its recompute.
type BatchResult struct {
	Recomputed int                  `json:"recomputed"`
	Failed     map[uuid.UUID]string `json:"failed,omitempty"`
}

// RecomputeAll recomputes every physio. A failing physio is logged and
// reported; the rest still run.
func (s *Service) RecomputeAll(ctx context.Context) (*BatchResult, error) {
	ids, err := s.physios.ListPhysioIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list physios: %w", err)
	}

	var mu sync.Mutex
	res := &BatchResult{Failed: map[uuid.UUID]string{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.ComputeForPhysio(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error().Err(err).Str("physio_id", id.String()).Msg("signal recompute failed")
				res.Failed[id] = err.Error()
				return nil
			}
			res.Recomputed++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) GetSignals(ctx context.Context, physioID uuid.UUID) ([]Signal, error) {
	return s.repo.ListByPhysio(ctx, physioID)
}

func (s *Service) SignalsFor(ctx context.Context, physioIDs []uuid.UUID) (map[uuid.UUID][]Signal, error) {
	return s.repo.ListByPhysios(ctx, physioIDs)
}
