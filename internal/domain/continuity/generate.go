package continuity

import (
	"github.com/kinetic/kinetic/internal/domain/episode"
)

// Input is everything summary generation reads. PatientName is carried
// for callers that render a header; the generated content never includes
// it.
type Input struct {
	Episode     episode.Episode
	Visits      []episode.Visit
	PatientName string
}

// Generate builds summary content from fixed templates over the episode's
// visits. Output depends only on the input; visit notes appear only as
// sanitized excerpts.
func Generate(in Input) Content {
	visits := make([]episode.Visit, len(in.Visits))
	copy(visits, in.Visits)
	episode.SortVisits(visits)
	e := &in.Episode

	return Content{
		ConditionFraming:       conditionFraming(e, visits),
		DiagnosisHypothesis:    diagnosisHypothesis(e, visits),
		InterventionsAttempted: interventions(visits),
		ResponseProfile:        responses(visits),
		CurrentStatus:          currentStatus(e, visits),
		OpenConsiderations:     openConsiderations(e, visits),
	}
}
