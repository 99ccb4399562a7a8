package signals

import (
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

// Compute runs every scoring function over the consented episodes and
// returns one Signal per type, in Types order.
func Compute(physioID uuid.UUID, episodes []episode.WithVisits, at time.Time) []Signal {
	results := map[string]Result{
		TypeOutcomeTrajectory: OutcomeTrajectory(episodes),
		TypeClinicalDecision:  ClinicalDecision(episodes),
		TypePatientPreference: PatientPreference(episodes),
	}
	out := make([]Signal, 0, len(Types))
	for _, t := range Types {
		r := results[t]
		out = append(out, Signal{
			PhysioID:     physioID,
			SignalType:   t,
			Value:        StoredValue(r.Value),
			Confidence:   r.Confidence,
			EpisodeCount: r.EpisodeCount,
			ComputedAt:   at,
			Details:      r.Details,
		})
	}
	return out
}
