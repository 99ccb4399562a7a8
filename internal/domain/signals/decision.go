package signals

import (
	"math"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

// Escalation-rate band. Rates inside the band score by distance from the
// optimum.
const (
	escalationOptimum  = 0.075
	escalationTooHigh  = 0.15
	escalationTooLow   = 0.02
	earlyEscalationEnd = 4 // last visit number counted as early
)

// ClinicalDecision scores escalation and treatment-adjustment behaviour
// over episodes with at least MinVisitsDecision visits.
func ClinicalDecision(episodes []episode.WithVisits) Result {
	if len(episodes) == 0 {
		return empty()
	}

	var escalations, visits, valid int
	var timing float64
	escalating := 0
	var responsiveness float64
	adjusting := 0

	for _, e := range episodes {
		if len(e.Visits) < MinVisitsDecision {
			continue
		}
		valid++
		visits += len(e.Visits)

		first := -1
		for i, v := range e.Visits {
			if v.Escalated {
				escalations++
				if first < 0 {
					first = i
				}
			}
		}
		if first >= 0 {
			escalating++
			timing += escalationTiming(e.Visits, first)
		}

		if score, ok := adjustmentResponsiveness(e.Visits); ok {
			responsiveness += score
			adjusting++
		}
	}

	rate := 0.0
	if visits > 0 {
		rate = float64(escalations) / float64(visits)
	}
	avgTiming := neutral
	if escalating > 0 {
		avgTiming = timing / float64(escalating)
	}
	avgResponsiveness := neutral
	if adjusting > 0 {
		avgResponsiveness = responsiveness / float64(adjusting)
	}

	return Result{
		Value:        0.3*escalationRateScore(rate) + 0.4*avgTiming + 0.3*avgResponsiveness,
		Confidence:   ConfidenceFor(valid),
		EpisodeCount: valid,
		Details: map[string]float64{
			"escalationRate":                    rate,
			"appropriateEscalationTiming":       avgTiming,
			"treatmentAdjustmentResponsiveness": avgResponsiveness,
		},
	}
}

func escalationRateScore(rate float64) float64 {
	switch {
	case rate > escalationTooHigh:
		return 0.4
	case rate < escalationTooLow:
		return neutral
	default:
		return 1 - math.Abs(escalationOptimum-rate)/escalationOptimum
	}
}

// escalationTiming scores the first escalation at index i. An escalation
// on the first visit has no prior visit to judge and scores 0.
func escalationTiming(visits []episode.Visit, i int) float64 {
	switch {
	case i == 0:
		return 0
	case i < earlyEscalationEnd:
		prior := visits[i-1]
		if (prior.PainScore != nil && *prior.PainScore >= 7) ||
			(prior.FunctionScore != nil && *prior.FunctionScore <= 40) {
			return 1.0
		}
		return 0.7
	default:
		return 0.4
	}
}

// adjustmentResponsiveness averages, over adjustment visits that have a
// following visit, whether that next visit improved. ok is false when no
// adjustment could be judged.
func adjustmentResponsiveness(visits []episode.Visit) (score float64, ok bool) {
	judged := 0
	for i := 0; i < len(visits)-1; i++ {
		adj := visits[i]
		if !adj.TreatmentAdjusted {
			continue
		}
		next := visits[i+1]
		improved := false
		if adj.PainScore != nil && next.PainScore != nil && *next.PainScore < *adj.PainScore {
			improved = true
		}
		if adj.FunctionScore != nil && next.FunctionScore != nil && *next.FunctionScore > *adj.FunctionScore {
			improved = true
		}
		if improved {
			score += 1.0
		} else {
			score += 0.3
		}
		judged++
	}
	if judged == 0 {
		return 0, false
	}
	return score / float64(judged), true
}
