package signals

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeOutcomeTrajectory = "outcome-trajectory"
	TypeClinicalDecision  = "clinical-decision"
	TypePatientPreference = "patient-preference"
)

// Types lists the signal types in the order they are computed and stored.
var Types = []string{TypeOutcomeTrajectory, TypeClinicalDecision, TypePatientPreference}

const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Result is the output of one scoring function. Value is in [0,1].
type Result struct {
	Value        float64            `json:"value"`
	Confidence   string             `json:"confidence"`
	EpisodeCount int                `json:"episode_count"`
	Details      map[string]float64 `json:"details"`
}

// Signal is the stored form of a Result: Value scaled to an integer 0-100.
type Signal struct {
	PhysioID     uuid.UUID          `json:"physio_id"`
	SignalType   string             `json:"signal_type"`
	Value        int                `json:"value"`
	Confidence   string             `json:"confidence"`
	EpisodeCount int                `json:"episode_count"`
	ComputedAt   time.Time          `json:"computed_at"`
	Details      map[string]float64 `json:"details"`
}

// SameContent reports whether s and o agree on everything except the
// computation timestamp.
func (s Signal) SameContent(o Signal) bool {
	if s.PhysioID != o.PhysioID || s.SignalType != o.SignalType || s.Value != o.Value ||
		s.Confidence != o.Confidence || s.EpisodeCount != o.EpisodeCount || len(s.Details) != len(o.Details) {
		return false
	}
	for k, v := range s.Details {
		if ov, ok := o.Details[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
