package eligibility

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/domain/signals"
	"github.com/kinetic/kinetic/internal/platform/metrics"
)

// Directory is the slice of the directory service eligibility reads.
type Directory interface {
	GetPhysio(ctx context.Context, id uuid.UUID) (*directory.Physiotherapist, error)
	ListDiscoverablePhysios(ctx context.Context) ([]*directory.Physiotherapist, error)
	GetGP(ctx context.Context, id uuid.UUID) (*directory.GP, error)
	ListGPs(ctx context.Context) ([]*directory.GP, error)
}

type SignalReader interface {
	GetSignals(ctx context.Context, physioID uuid.UUID) ([]signals.Signal, error)
	SignalsFor(ctx context.Context, physioIDs []uuid.UUID) (map[uuid.UUID][]signals.Signal, error)
}

type Service struct {
	dir       Directory
	signals   SignalReader
	snapshots SnapshotRepository
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(dir Directory, sigs SignalReader, snapshots SnapshotRepository, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		dir:       dir,
		signals:   sigs,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SimulateEligibility runs Simulate against the physio's stored signals
// and every known GP, and records the outcome as the physio's snapshot.
func (s *Service) SimulateEligibility(ctx context.Context, physioID uuid.UUID) (*Result, error) {
	physio, err := s.dir.GetPhysio(ctx, physioID)
	if err != nil {
		return nil, err
	}
	gps, err := s.dir.ListGPs(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.signals.GetSignals(ctx, physioID)
	if err != nil {
		return nil, err
	}

	res := Simulate(physio, gps, stored)
	snap := &Snapshot{PhysioID: physioID, Region: physio.Region, Result: res, SimulatedAt: s.now().UTC()}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		// The simulation itself is still valid.
		s.logger.Warn().Err(err).Str("physio_id", physioID.String()).Msg("eligibility snapshot not saved")
	}
	s.metrics.EligibilitySimulated(res.EligibleReferralSets > 0)
	return &res, nil
}

func (s *Service) LastSnapshot(ctx context.Context, physioID uuid.UUID) (*Snapshot, error) {
	return s.snapshots.Get(ctx, physioID)
}

// ReferralSet lists up to ReferralSetSize discoverable physios for a GP,
// physios in region first, then by capacity. An empty region falls back
// to the GP's own.
func (s *Service) ReferralSet(ctx context.Context, gpID uuid.UUID, region string) ([]Candidate, error) {
	gp, err := s.dir.GetGP(ctx, gpID)
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(region)
	if target == "" {
		target = gp.Region
	}

	physios, err := s.dir.ListDiscoverablePhysios(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(physios))
	for i, p := range physios {
		ids[i] = p.ID
	}
	byPhysio, err := s.signals.SignalsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(physios))
	for _, p := range physios {
		sigs := byPhysio[p.ID]
		if sigs == nil {
			sigs = []signals.Signal{}
		}
		out = append(out, Candidate{
			ID:          p.ID,
			Name:        p.Name,
			ClinicName:  p.ClinicName,
			Region:      p.Region,
			Capacity:    p.Capacity,
			Specialties: p.Specialties,
			SameRegion:  p.Region == target,
			Signals:     sigs,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SameRegion != out[j].SameRegion {
			return out[i].SameRegion
		}
		return directory.CapacityRank[out[i].Capacity] < directory.CapacityRank[out[j].Capacity]
	})
	if len(out) > ReferralSetSize {
		out = out[:ReferralSetSize]
	}
	return out, nil
}
