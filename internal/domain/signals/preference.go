package signals

import "github.com/kinetic/kinetic/internal/domain/episode"

// Handoff is counted successful when the last visit before transfer showed
// the patient in a manageable state.
const (
	handoffMaxPain        = 5
	handoffMinFunction    = 60
	selfDischargeRetained = 0.3
)

// PatientPreference scores inbound transfers, handoff outcomes and
// retention over every consented episode.
func PatientPreference(episodes []episode.WithVisits) Result {
	if len(episodes) == 0 {
		return empty()
	}

	var inbound, transferred, handedOff, completed, selfDischarged int
	for _, e := range episodes {
		if e.PriorPhysioEpisodeID != nil {
			inbound++
		}
		switch e.Status {
		case episode.StatusTransferred:
			completed++
			transferred++
			if n := len(e.Visits); n > 0 && handoffSucceeded(e.Visits[n-1]) {
				handedOff++
			}
		case episode.StatusDischarged:
			completed++
		case episode.StatusSelfDischarged:
			selfDischarged++
		}
	}

	total := float64(len(episodes))
	inboundRate := float64(inbound) / total
	handoffRate := neutral
	if transferred > 0 {
		handoffRate = float64(handedOff) / float64(transferred)
	}
	retention := (float64(completed) + selfDischargeRetained*float64(selfDischarged)) / total

	return Result{
		Value:        0.4*inboundRate + 0.3*handoffRate + 0.3*retention,
		Confidence:   ConfidenceFor(len(episodes)),
		EpisodeCount: len(episodes),
		Details: map[string]float64{
			"inboundTransferRate":   inboundRate,
			"successfulHandoffRate": handoffRate,
			"retentionIndicator":    retention,
		},
	}
}

func handoffSucceeded(last episode.Visit) bool {
	return (last.PainScore != nil && *last.PainScore <= handoffMaxPain) ||
		(last.FunctionScore != nil && *last.FunctionScore >= handoffMinFunction)
}
