package continuity

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeGPReferral     = "gp-referral"
	TypePatientBooking = "patient-booking"
	TypePhysioHandoff  = "physio-handoff"
)

const (
	TransitionInitiated      = "initiated"
	TransitionConsentPending = "consent-pending"
	TransitionSummaryPending = "summary-pending"
	TransitionReviewPending  = "review-pending"
	TransitionReleased       = "released"
	TransitionDeclined       = "declined"
	TransitionExpired        = "expired"
)

const (
	SummaryDraft         = "draft"
	SummaryPendingReview = "pending-review"
	SummaryApproved      = "approved"
	SummaryReleased      = "released"
	SummaryRevoked       = "revoked"
)

const (
	ConsentGranted = "granted"
	ConsentRevoked = "revoked"
	ConsentExpired = "expired"

	ConsentScope = "continuity-summary-for-transition"
)

const (
	AccessFull     = "full"
	AccessReadOnly = "read-only"
)

// TransitionEvent is one care handoff from an origin episode.
type TransitionEvent struct {
	ID                   uuid.UUID  `json:"id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	OriginEpisodeID      uuid.UUID  `json:"origin_episode_id"`
	OriginPhysioID       uuid.UUID  `json:"origin_physio_id"`
	DestinationEpisodeID *uuid.UUID `json:"destination_episode_id,omitempty"`
	DestinationPhysioID  *uuid.UUID `json:"destination_physio_id,omitempty"`
	ReferringGPID        *uuid.UUID `json:"referring_gp_id,omitempty"`
	TransitionType       string     `json:"transition_type"`
	Status               string     `json:"status"`
	InitiatedAt          time.Time  `json:"initiated_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// ContinuityConsent authorizes sharing one transition's summary.
type ContinuityConsent struct {
	ID                uuid.UUID  `json:"id"`
	PatientID         uuid.UUID  `json:"patient_id"`
	TransitionEventID uuid.UUID  `json:"transition_event_id"`
	OriginEpisodeID   uuid.UUID  `json:"origin_episode_id"`
	Status            string     `json:"status"`
	Scope             string     `json:"scope"`
	GrantedAt         *time.Time `json:"granted_at,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

type ResponseProfile struct {
	Responded     []string `json:"responded"`
	DidNotRespond []string `json:"did_not_respond"`
}

// Content is the generated body of a summary. It never changes after
// generation.
type Content struct {
	ConditionFraming       string          `json:"condition_framing"`
	DiagnosisHypothesis    string          `json:"diagnosis_hypothesis"`
	InterventionsAttempted []string        `json:"interventions_attempted"`
	ResponseProfile        ResponseProfile `json:"response_profile"`
	CurrentStatus          string          `json:"current_status"`
	OpenConsiderations     []string        `json:"open_considerations"`
}

type Summary struct {
	ID                uuid.UUID `json:"id"`
	TransitionEventID uuid.UUID `json:"transition_event_id"`
	OriginEpisodeID   uuid.UUID `json:"origin_episode_id"`
	OriginPhysioID    uuid.UUID `json:"origin_physio_id"`
	PatientID         uuid.UUID `json:"patient_id"`
	Content
	PhysioAnnotations *string    `json:"physio_annotations,omitempty"`
	Status            string     `json:"status"`
	GeneratedAt       time.Time  `json:"generated_at"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	ReleasedAt        *time.Time `json:"released_at,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

// SummaryView is a summary as shown to one physio.
type SummaryView struct {
	*Summary
	AccessLevel string `json:"access_level"`
}

// Handoff is a transition as listed for one of its physios.
type Handoff struct {
	TransitionEvent
	SummaryID     *uuid.UUID `json:"summary_id,omitempty"`
	SummaryStatus *string    `json:"summary_status,omitempty"`
	Outgoing      bool       `json:"outgoing"`
}
