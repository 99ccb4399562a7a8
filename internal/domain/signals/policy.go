package signals

import "math"

// Confidence tiers by number of contributing episodes.
const (
	HighConfidenceEpisodes   = 10
	MediumConfidenceEpisodes = 5
)

// Minimum visits for an episode to count toward a signal.
const (
	MinVisitsOutcome  = 3
	MinVisitsDecision = 2
	MinVisitsTapering = 4
)

// Strong-signal cutoffs on the stored 0-100 scale, shared with the
// eligibility simulator.
const (
	StrongOutcomeThreshold    = 60
	StrongDecisionThreshold   = 60
	StrongPreferenceThreshold = 50
)

// neutral is the score used when a component has nothing to measure.
const neutral = 0.5

func ConfidenceFor(episodes int) string {
	switch {
	case episodes >= HighConfidenceEpisodes:
		return ConfidenceHigh
	case episodes >= MediumConfidenceEpisodes:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// IsStrong reports whether a stored signal clears its strength cutoff.
// Patient preference has no confidence requirement.
func IsStrong(s Signal) bool {
	switch s.SignalType {
	case TypeOutcomeTrajectory:
		return s.Value >= StrongOutcomeThreshold && s.Confidence != ConfidenceLow
	case TypeClinicalDecision:
		return s.Value >= StrongDecisionThreshold && s.Confidence != ConfidenceLow
	case TypePatientPreference:
		return s.Value >= StrongPreferenceThreshold
	}
	return false
}

// StoredValue scales a [0,1] score to the stored integer.
func StoredValue(v float64) int {
	return int(math.Round(clamp01(v) * 100))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func empty() Result {
	return Result{Value: 0, Confidence: ConfidenceLow, EpisodeCount: 0, Details: map[string]float64{}}
}
