package signals

import (
	"time"

	"github.com/google/uuid"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

var day0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

type visitSpec struct {
	day       int
	pain      *int
	function  *int
	escalated bool
	adjusted  bool
}

func ep(status string, specs ...visitSpec) episode.WithVisits {
	e := episode.WithVisits{Episode: episode.Episode{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		PhysioID:  uuid.New(),
		Condition: "Lumbar strain",
		Status:    status,
		StartedAt: day0,
	}}
	for i, s := range specs {
		e.Visits = append(e.Visits, episode.Visit{
			ID:                uuid.New(),
			EpisodeID:         e.ID,
			VisitNumber:       i + 1,
			VisitDate:         day0.AddDate(0, 0, s.day),
			PainScore:         s.pain,
			FunctionScore:     s.function,
			Escalated:         s.escalated,
			TreatmentAdjusted: s.adjusted,
		})
	}
	return e
}

// scored builds visits from parallel pain/function slices, one week apart.
func scored(status string, pains, functions []int) episode.WithVisits {
	specs := make([]visitSpec, len(pains))
	for i := range pains {
		specs[i] = visitSpec{day: 7 * i, pain: intp(pains[i]), function: intp(functions[i])}
	}
	return ep(status, specs...)
}

func repeat(e func() episode.WithVisits, n int) []episode.WithVisits {
	out := make([]episode.WithVisits, n)
	for i := range out {
		out[i] = e()
	}
	return out
}
