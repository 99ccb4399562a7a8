package directory

import (
	"time"

	"github.com/google/uuid"
)

const (
	CapacityAvailable = "available"
	CapacityLimited   = "limited"
	CapacityWaitlist  = "waitlist"
)

// CapacityRank orders capacities from most to least open.
var CapacityRank = map[string]int{
	CapacityAvailable: 0,
	CapacityLimited:   1,
	CapacityWaitlist:  2,
}

type Physiotherapist struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	ClinicName  string     `json:"clinic_name"`
	Region      string     `json:"region"`
	Specialties []string   `json:"specialties"`
	Capacity    string     `json:"capacity"`
	OptedIn     bool       `json:"opted_in"`
	OptedInAt   *time.Time `json:"opted_in_at,omitempty"`
	OptedOutAt  *time.Time `json:"opted_out_at,omitempty"`
	PreviewMode bool       `json:"preview_mode"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GP is a referring practice. Each GP is one referral set for
// eligibility purposes.
type GP struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	PracticeName string    `json:"practice_name"`
	Region       string    `json:"region"`
	CreatedAt    time.Time `json:"created_at"`
}

type Patient struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Region      string     `json:"region"`
	CreatedAt   time.Time  `json:"created_at"`
}
