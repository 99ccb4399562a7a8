package signals

import (
	"time"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

// OutcomeTrajectory scores how patients' pain and function moved across
// episodes with at least MinVisitsOutcome visits.
func OutcomeTrajectory(episodes []episode.WithVisits) Result {
	if len(episodes) == 0 {
		return empty()
	}

	var pain, function, tapering, discharge float64
	valid := 0
	for _, e := range episodes {
		if len(e.Visits) < MinVisitsOutcome {
			continue
		}
		valid++
		first, last := e.Visits[0], e.Visits[len(e.Visits)-1]

		if first.PainScore != nil && last.PainScore != nil && *first.PainScore > 0 {
			fp, lp := float64(*first.PainScore), float64(*last.PainScore)
			pain += clamp01((fp - lp) / fp)
		}
		if first.FunctionScore != nil && last.FunctionScore != nil && *first.FunctionScore < 100 {
			ff, lf := float64(*first.FunctionScore), float64(*last.FunctionScore)
			function += clamp01((lf - ff) / (100 - ff))
		}
		tapering += taperingScore(e.Visits)
		discharge += dischargeScore(e.Status, last)
	}

	avgPain, avgFunction := 0.0, 0.0
	avgTapering, avgDischarge := neutral, neutral
	if valid > 0 {
		n := float64(valid)
		avgPain = pain / n
		avgFunction = function / n
		avgTapering = tapering / n
		avgDischarge = discharge / n
	}

	return Result{
		Value:        0.3*avgPain + 0.3*avgFunction + 0.2*avgTapering + 0.2*avgDischarge,
		Confidence:   ConfidenceFor(valid),
		EpisodeCount: valid,
		Details: map[string]float64{
			"avgPainReduction":       avgPain,
			"avgFunctionImprovement": avgFunction,
			"visitFrequencyTapering": avgTapering,
			"appropriateDischarge":   avgDischarge,
		},
	}
}

// taperingScore compares visit rates in the two halves of the visit
// sequence. Episodes too short or with a zero-length half score 0.
func taperingScore(visits []episode.Visit) float64 {
	n := len(visits)
	if n < MinVisitsTapering {
		return 0
	}
	h := n / 2
	days1 := days(visits[h].VisitDate.Sub(visits[0].VisitDate))
	days2 := days(visits[n-1].VisitDate.Sub(visits[h].VisitDate))
	if days1 <= 0 || days2 <= 0 {
		return 0
	}
	freq1 := float64(h) / days1
	freq2 := float64(n-h) / days2
	switch {
	case freq2 < freq1:
		return 0.8
	case freq2 == freq1:
		return 0.5
	default:
		return 0.2
	}
}

func dischargeScore(status string, last episode.Visit) float64 {
	switch status {
	case episode.StatusDischarged:
		if last.PainScore == nil || last.FunctionScore == nil {
			return neutral
		}
		return (1 - float64(*last.PainScore)/10 + float64(*last.FunctionScore)/100) / 2
	case episode.StatusSelfDischarged:
		return 0.2
	default:
		return neutral
	}
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}
