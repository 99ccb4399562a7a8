package continuity

import (
	"fmt"
	"math"
	"strings"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

const (
	maxNoteRunes = 200
	followUpSpan = 3 // visits inspected after an adjustment
	recentSpan   = 3
	plateauSpan  = 4
)

// Fallback sentences.
const (
	noInterventions   = "No treatment adjustments recorded during this episode."
	noResponseData    = "Insufficient adjustment data to characterize response patterns."
	noConsiderations  = "No specific clinical concerns identified at time of transition."
	considerTransfer  = "Episode ended via transfer, so continuity of care is the primary consideration."
	considerEscalated = "Recent escalation noted. Follow-up assessment recommended."
	considerPlateau   = "Pain scores plateaued in recent visits. Consider reassessing treatment approach."
	considerNoEffect  = "Most recent treatment adjustment did not yield pain improvement. Alternative approaches may be warranted."
)

// sanitizeNote keeps only a trimmed, bounded excerpt of a visit note.
func sanitizeNote(note string) string {
	r := []rune(strings.TrimSpace(note))
	if len(r) > maxNoteRunes {
		r = r[:maxNoteRunes]
	}
	return strings.TrimSpace(string(r))
}

func conditionFraming(e *episode.Episode, visits []episode.Visit) string {
	days := 0.0
	if len(visits) > 0 {
		days = math.Round(visits[len(visits)-1].VisitDate.Sub(visits[0].VisitDate).Hours() / 24)
	}
	weeks := int(math.Max(1, math.Round(days/7)))

	source := "self-referred"
	if e.IsGPReferred {
		source = "GP-referred"
	}
	return fmt.Sprintf("Patient presented with %s (%s). Treatment spanned %d visits over approximately %d weeks.",
		e.Condition, source, len(visits), weeks)
}

func diagnosisHypothesis(e *episode.Episode, visits []episode.Visit) string {
	if len(visits) == 0 {
		return fmt.Sprintf("Working hypothesis: %s. Insufficient visit data to characterize trajectory.", e.Condition)
	}
	first, last := visits[0], visits[len(visits)-1]
	initialPain := scoreOr(first.PainScore, 0)
	currentPain := scoreOr(last.PainScore, initialPain)
	initialFunction := scoreOr(first.FunctionScore, 50)
	currentFunction := scoreOr(last.FunctionScore, initialFunction)

	painTrend := "stable pain levels"
	switch {
	case currentPain < initialPain-2:
		painTrend = "improving pain trajectory"
	case currentPain > initialPain+1:
		painTrend = "worsening pain trajectory"
	}
	functionTrend := "stable functional capacity"
	switch {
	case currentFunction > initialFunction+10:
		functionTrend = "improving functional capacity"
	case currentFunction < initialFunction-5:
		functionTrend = "declining functional capacity"
	}
	return fmt.Sprintf("Working hypothesis: %s with %s and %s. Initial pain %d/10, function %d/100.",
		e.Condition, painTrend, functionTrend, initialPain, initialFunction)
}

func currentStatus(e *episode.Episode, visits []episode.Visit) string {
	var label string
	switch e.Status {
	case episode.StatusActive:
		label = "Currently active"
	case episode.StatusDischarged:
		label = "Discharged"
	case episode.StatusTransferred:
		label = "Transferred"
	default:
		label = "Self-discharged"
	}
	if len(visits) == 0 {
		return label + ". No visit data recorded."
	}
	last := visits[len(visits)-1]
	var scores []string
	if last.PainScore != nil {
		scores = append(scores, fmt.Sprintf("pain %d/10", *last.PainScore))
	}
	if last.FunctionScore != nil {
		scores = append(scores, fmt.Sprintf("function %d/100", *last.FunctionScore))
	}
	text := strings.Join(scores, ", ")
	if text == "" {
		text = "scores not recorded"
	}
	return fmt.Sprintf("%s. Most recent assessment: %s.", label, text)
}

func interventions(visits []episode.Visit) []string {
	var out []string
	for _, v := range visits {
		if v.TreatmentAdjusted && v.NotesSummary != nil && strings.TrimSpace(*v.NotesSummary) != "" {
			out = append(out, fmt.Sprintf("Visit %d: Treatment adjustment: %s", v.VisitNumber, sanitizeNote(*v.NotesSummary)))
		}
	}
	if len(out) == 0 {
		return []string{noInterventions}
	}
	return out
}

func responses(visits []episode.Visit) ResponseProfile {
	p := ResponseProfile{Responded: []string{}, DidNotRespond: []string{}}
	for i, adj := range visits {
		if !adj.TreatmentAdjusted {
			continue
		}
		end := i + 1 + followUpSpan
		if end > len(visits) {
			end = len(visits)
		}
		next := visits[i+1 : end]
		if len(next) == 0 {
			continue
		}
		painBefore := scoreOr(adj.PainScore, 0)
		functionBefore := scoreOr(adj.FunctionScore, 50)
		follow := next[len(next)-1]
		painAfter := scoreOr(follow.PainScore, painBefore)
		functionAfter := scoreOr(follow.FunctionScore, functionBefore)

		desc := fmt.Sprintf("Adjustment at visit %d", adj.VisitNumber)
		if adj.NotesSummary != nil && strings.TrimSpace(*adj.NotesSummary) != "" {
			desc = sanitizeNote(*adj.NotesSummary)
		}

		switch {
		case painAfter < painBefore-1 || functionAfter > functionBefore+5:
			p.Responded = append(p.Responded, desc)
		case painAfter >= painBefore || functionAfter <= functionBefore:
			p.DidNotRespond = append(p.DidNotRespond, desc)
		}
	}
	if len(p.Responded) == 0 && len(p.DidNotRespond) == 0 {
		p.Responded = []string{noResponseData}
	}
	return p
}

func openConsiderations(e *episode.Episode, visits []episode.Visit) []string {
	var out []string
	if e.Status == episode.StatusTransferred {
		out = append(out, considerTransfer)
	}

	for _, v := range tail(visits, recentSpan) {
		if v.Escalated {
			out = append(out, considerEscalated)
			break
		}
	}

	if len(visits) >= plateauSpan {
		var pains []int
		for _, v := range tail(visits, plateauSpan) {
			if v.PainScore != nil {
				pains = append(pains, *v.PainScore)
			}
		}
		if len(pains) >= 3 && spread(pains) <= 1 {
			out = append(out, considerPlateau)
		}
	}

	last := -1
	for i := len(visits) - 1; i >= 0; i-- {
		if visits[i].TreatmentAdjusted {
			last = i
			break
		}
	}
	if last >= 0 && len(visits)-last-1 >= 2 {
		before := scoreOr(visits[last].PainScore, 0)
		after := scoreOr(visits[len(visits)-1].PainScore, before)
		if after >= before {
			out = append(out, considerNoEffect)
		}
	}

	if len(out) == 0 {
		return []string{noConsiderations}
	}
	return out
}

func scoreOr(s *int, def int) int {
	if s == nil {
		return def
	}
	return *s
}

func tail(visits []episode.Visit, n int) []episode.Visit {
	if len(visits) <= n {
		return visits
	}
	return visits[len(visits)-n:]
}

func spread(xs []int) int {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return hi - lo
}
