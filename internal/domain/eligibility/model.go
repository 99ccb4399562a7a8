package eligibility

import (
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/domain/signals"
)

// Gap reasons reported by Simulate.
const (
	GapNotOptedIn    = "not opted in"
	GapNoRegionMatch = "no GPs in your region"
	GapNoSignals     = "no signals computed yet, need episodes with patient consent"
	GapNoStrong      = "signals need more data or stronger patterns"
)

// MinStrongSignals is how many of the three signals must be strong for a
// referral set to include the physio.
const MinStrongSignals = 2

// ReferralSetSize caps the referral-set search.
const ReferralSetSize = 5

// ConfidenceFactors records whether any referral set met each condition.
type ConfidenceFactors struct {
	RegionMatch             bool `json:"region_match"`
	SignalsComputed         bool `json:"signals_computed"`
	OutcomeTrajectoryStrong bool `json:"outcome_trajectory_strong"`
	ClinicalDecisionStrong  bool `json:"clinical_decision_strong"`
	PatientPreferenceStrong bool `json:"patient_preference_strong"`
}

type Result struct {
	EligibleReferralSets int               `json:"eligible_referral_sets"`
	TotalReferralSets    int               `json:"total_referral_sets"`
	ConfidenceFactors    ConfidenceFactors `json:"confidence_factors"`
	Gaps                 []string          `json:"gaps"`
}

// Snapshot is the last simulation stored for a physio.
type Snapshot struct {
	PhysioID    uuid.UUID `json:"physio_id"`
	Region      string    `json:"region"`
	Result      Result    `json:"result"`
	SimulatedAt time.Time `json:"simulated_at"`
}

// Candidate is one physio offered to a GP in a referral-set search.
type Candidate struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	ClinicName  string           `json:"clinic_name"`
	Region      string           `json:"region"`
	Capacity    string           `json:"capacity"`
	Specialties []string         `json:"specialties"`
	SameRegion  bool             `json:"same_region"`
	Signals     []signals.Signal `json:"signals"`
}
