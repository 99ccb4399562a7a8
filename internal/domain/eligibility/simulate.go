package eligibility

import (
	"github.com/kinetic/kinetic/internal/domain/directory"
	"github.com/kinetic/kinetic/internal/domain/signals"
)

// Simulate counts the GPs whose referral set would include physio given
// its stored signals. A physio outside the network is never eligible.
func Simulate(physio *directory.Physiotherapist, gps []*directory.GP, stored []signals.Signal) Result {
	res := Result{TotalReferralSets: len(gps)}
	if !physio.OptedIn {
		res.Gaps = []string{GapNotOptedIn}
		return res
	}

	strong := map[string]bool{}
	for _, s := range stored {
		if signals.IsStrong(s) {
			strong[s.SignalType] = true
		}
	}
	f := ConfidenceFactors{SignalsComputed: len(stored) > 0}

	for _, gp := range gps {
		regionMatch := gp.Region == physio.Region
		if regionMatch {
			f.RegionMatch = true
		}
		// Signal strength is per physio, so every GP sees the same flags.
		f.OutcomeTrajectoryStrong = f.OutcomeTrajectoryStrong || strong[signals.TypeOutcomeTrajectory]
		f.ClinicalDecisionStrong = f.ClinicalDecisionStrong || strong[signals.TypeClinicalDecision]
		f.PatientPreferenceStrong = f.PatientPreferenceStrong || strong[signals.TypePatientPreference]

		if regionMatch && len(strong) >= MinStrongSignals {
			res.EligibleReferralSets++
		}
	}
	res.ConfidenceFactors = f

	gaps := []string{}
	if !f.RegionMatch {
		gaps = append(gaps, GapNoRegionMatch)
	}
	if !f.SignalsComputed {
		gaps = append(gaps, GapNoSignals)
	}
	if !f.OutcomeTrajectoryStrong && !f.ClinicalDecisionStrong && !f.PatientPreferenceStrong {
		gaps = append(gaps, GapNoStrong)
	}
	res.Gaps = gaps
	return res
}
