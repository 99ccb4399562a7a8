package continuity

var transitionEdges = map[string][]string{
	TransitionInitiated:      {TransitionConsentPending, TransitionDeclined},
	TransitionConsentPending: {TransitionSummaryPending, TransitionDeclined, TransitionExpired},
	TransitionSummaryPending: {TransitionReviewPending},
	TransitionReviewPending:  {TransitionReleased, TransitionDeclined},
	TransitionReleased:       {},
	TransitionDeclined:       {},
	TransitionExpired:        {},
}

var summaryEdges = map[string][]string{
	SummaryDraft:         {SummaryPendingReview},
	SummaryPendingReview: {SummaryApproved, SummaryRevoked},
	SummaryApproved:      {SummaryReleased, SummaryRevoked},
	SummaryReleased:      {SummaryRevoked},
	SummaryRevoked:       {},
}

// IsValidTransition reports whether a transition event may move from cur
// to next. Unknown states have no edges.
func IsValidTransition(cur, next string) bool {
	return hasEdge(transitionEdges, cur, next)
}

func IsValidSummaryTransition(cur, next string) bool {
	return hasEdge(summaryEdges, cur, next)
}

// IsOpenTransition reports whether a transition can still move.
func IsOpenTransition(status string) bool {
	return len(transitionEdges[status]) > 0
}

func hasEdge(edges map[string][]string, cur, next string) bool {
	for _, s := range edges[cur] {
		if s == next {
			return true
		}
	}
	return false
}

func validTransitionType(t string) bool {
	switch t {
	case TypeGPReferral, TypePatientBooking, TypePhysioHandoff:
		return true
	}
	return false
}
