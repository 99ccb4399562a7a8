package consent

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusGranted = "granted"
	StatusRevoked = "revoked"

	// ScopeSignalComputation is the only purpose a signal consent covers.
	ScopeSignalComputation = "episode-data-for-signal-computation"
)

// Consent is a patient's permission for one episode's data to feed the
// physio's quality signals.
type Consent struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	EpisodeID uuid.UUID  `json:"episode_id"`
	PhysioID  uuid.UUID  `json:"physio_id"`
	Status    string     `json:"status"`
	Scope     string     `json:"scope"`
	GrantedAt *time.Time `json:"granted_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// AnonymizedEpisode is what a physio sees of a consented GP-referred
// episode: no patient identity, only an ordinal.
type AnonymizedEpisode struct {
	PatientIndex int        `json:"patient_index"`
	EpisodeID    uuid.UUID  `json:"episode_id"`
	Condition    string     `json:"condition"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	DischargedAt *time.Time `json:"discharged_at,omitempty"`
	VisitCount   int        `json:"visit_count"`
}
