package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

func TestClinicalDecision_Empty(t *testing.T) {
	r := ClinicalDecision(nil)
	assert.Equal(t, 0.0, r.Value)
	assert.Equal(t, ConfidenceLow, r.Confidence)
	assert.Empty(t, r.Details)
}

func TestClinicalDecision_NoEscalationsNoAdjustments(t *testing.T) {
	e := scored(episode.StatusActive, []int{5, 4, 3}, []int{50, 60, 70})
	r := ClinicalDecision([]episode.WithVisits{e})

	assert.Equal(t, 1, r.EpisodeCount)
	assert.Equal(t, 0.0, r.Details["escalationRate"])
	assert.Equal(t, 0.5, r.Details["appropriateEscalationTiming"])
	assert.Equal(t, 0.5, r.Details["treatmentAdjustmentResponsiveness"])
	// rate < 2% scores 0.5
	assert.InDelta(t, 0.5, r.Value, 1e-9)
}

func TestEscalationRateScore(t *testing.T) {
	assert.InDelta(t, 1.0, escalationRateScore(0.075), 1e-9)
	assert.InDelta(t, 0.4, escalationRateScore(0.2), 1e-9)
	assert.InDelta(t, 0.5, escalationRateScore(0.01), 1e-9)
	assert.InDelta(t, 1-0.025/0.075, escalationRateScore(0.1), 1e-9)
	assert.InDelta(t, 1-0.055/0.075, escalationRateScore(0.02), 1e-9)
}

func TestEscalationTiming(t *testing.T) {
	tests := []struct {
		name  string
		specs []visitSpec
		want  float64
	}{
		{"first visit", []visitSpec{{escalated: true}, {}}, 0},
		{"early after high pain", []visitSpec{{pain: intp(8)}, {escalated: true}}, 1.0},
		{"early after low function", []visitSpec{{}, {function: intp(35)}, {escalated: true}}, 1.0},
		{"early without trigger", []visitSpec{{pain: intp(3), function: intp(70)}, {escalated: true}}, 0.7},
		{"visit four", []visitSpec{{}, {}, {}, {escalated: true}}, 0.7},
		{"late", []visitSpec{{}, {}, {}, {}, {escalated: true}}, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ClinicalDecision([]episode.WithVisits{ep(episode.StatusActive, tt.specs...)})
			assert.InDelta(t, tt.want, r.Details["appropriateEscalationTiming"], 1e-9)
		})
	}
}

func TestClinicalDecision_ResponsivenessAveragedPerEpisode(t *testing.T) {
	// Episode A: two adjustments, one improved -> (1.0+0.3)/2 = 0.65.
	a := ep(episode.StatusActive,
		visitSpec{pain: intp(7), adjusted: true},
		visitSpec{pain: intp(5), adjusted: true},
		visitSpec{pain: intp(6)},
	)
	// Episode B: one improved adjustment -> 1.0.
	b := ep(episode.StatusActive,
		visitSpec{function: intp(40), adjusted: true},
		visitSpec{function: intp(50)},
	)
	// Episode C: adjustment on the last visit cannot be judged.
	c := ep(episode.StatusActive, visitSpec{}, visitSpec{adjusted: true})

	r := ClinicalDecision([]episode.WithVisits{a, b, c})
	assert.InDelta(t, (0.65+1.0)/2, r.Details["treatmentAdjustmentResponsiveness"], 1e-9)
	assert.Equal(t, 3, r.EpisodeCount)
}

func TestClinicalDecision_SingleVisitEpisodesIgnored(t *testing.T) {
	one := ep(episode.StatusActive, visitSpec{escalated: true})
	r := ClinicalDecision([]episode.WithVisits{one})
	assert.Equal(t, 0, r.EpisodeCount)
	assert.Equal(t, 0.0, r.Details["escalationRate"])
}

func TestClinicalDecision_Value(t *testing.T) {
	// 1 escalation in 10 visits at visit 2 after pain 8; one responsive adjustment.
	specs := make([]visitSpec, 10)
	specs[0] = visitSpec{pain: intp(8)}
	specs[1] = visitSpec{pain: intp(7), escalated: true, adjusted: true}
	specs[2] = visitSpec{pain: intp(5)}
	r := ClinicalDecision([]episode.WithVisits{ep(episode.StatusActive, specs...)})

	rateScore := 1 - (0.1-0.075)/0.075
	assert.InDelta(t, 0.3*rateScore+0.4*1.0+0.3*1.0, r.Value, 1e-9)
}
