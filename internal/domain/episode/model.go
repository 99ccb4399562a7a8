package episode

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive         = "active"
	StatusDischarged     = "discharged"
	StatusSelfDischarged = "self-discharged"
	StatusTransferred    = "transferred"
)

// Episode is one course of treatment of a patient by a physio.
type Episode struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	PhysioID             uuid.UUID  `json:"physio_id"`
	ReferringGPID        *uuid.UUID `json:"referring_gp_id,omitempty"`
	Condition            string     `json:"condition"`
	Status               string     `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	DischargedAt         *time.Time `json:"discharged_at,omitempty"`
	IsGPReferred         bool       `json:"is_gp_referred"`
	PriorPhysioEpisodeID *uuid.UUID `json:"prior_physio_episode_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Visit holds the measurements taken at one appointment. Scores are
// optional; pain is 0-10 and function 0-100.
type Visit struct {
	ID                uuid.UUID `json:"id"`
	EpisodeID         uuid.UUID `json:"episode_id"`
	VisitNumber       int       `json:"visit_number"`
	VisitDate         time.Time `json:"visit_date"`
	PainScore         *int      `json:"pain_score,omitempty"`
	FunctionScore     *int      `json:"function_score,omitempty"`
	Escalated         bool      `json:"escalated"`
	TreatmentAdjusted bool      `json:"treatment_adjusted"`
	NotesSummary      *string   `json:"notes_summary,omitempty"`
}

// WithVisits is an episode together with its visits ordered by
// VisitNumber.
type WithVisits struct {
	Episode
	Visits []Visit `json:"visits"`
}

func (e *Episode) IsTerminal() bool {
	return e.Status != StatusActive
}

// SortVisits orders visits by VisitNumber in place.
func SortVisits(visits []Visit) {
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].VisitNumber < visits[j].VisitNumber
	})
}
