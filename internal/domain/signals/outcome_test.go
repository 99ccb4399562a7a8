package signals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetic/kinetic/internal/domain/episode"
)

func TestOutcomeTrajectory_Empty(t *testing.T) {
	r := OutcomeTrajectory(nil)
	assert.Equal(t, 0.0, r.Value)
	assert.Equal(t, ConfidenceLow, r.Confidence)
	assert.Equal(t, 0, r.EpisodeCount)
	assert.Empty(t, r.Details)
}

func TestOutcomeTrajectory_StrongPerformer(t *testing.T) {
	e := ep(episode.StatusDischarged,
		visitSpec{day: 0, pain: intp(8), function: intp(40)},
		visitSpec{day: 7, pain: intp(6), function: intp(55)},
		visitSpec{day: 14, pain: intp(4), function: intp(70)},
		visitSpec{day: 35, pain: intp(2), function: intp(85)},
	)
	r := OutcomeTrajectory([]episode.WithVisits{e})

	require.Equal(t, 1, r.EpisodeCount)
	assert.InDelta(t, 0.75, r.Details["avgPainReduction"], 1e-9)
	assert.InDelta(t, 0.75, r.Details["avgFunctionImprovement"], 1e-9)
	assert.InDelta(t, 0.8, r.Details["visitFrequencyTapering"], 1e-9)
	assert.InDelta(t, 0.825, r.Details["appropriateDischarge"], 1e-9)
	assert.InDelta(t, 0.775, r.Value, 1e-9)
	assert.Greater(t, r.Value, 0.6)
	assert.InDelta(t, 78, StoredValue(r.Value), 1)
}

func TestOutcomeTrajectory_ZeroFirstPain(t *testing.T) {
	e := ep(episode.StatusActive,
		visitSpec{day: 0, pain: intp(0)},
		visitSpec{day: 7, pain: intp(3)},
		visitSpec{day: 14, pain: intp(2)},
	)
	r := OutcomeTrajectory([]episode.WithVisits{e})

	pain := r.Details["avgPainReduction"]
	assert.False(t, math.IsNaN(pain))
	assert.Equal(t, 0.0, pain)
	assert.GreaterOrEqual(t, r.Value, 0.0)
	assert.InDelta(t, 0.2*0.5, r.Value, 1e-9, "only the neutral discharge term contributes")
}

func TestOutcomeTrajectory_TermsAveragedIndependently(t *testing.T) {
	noPain := ep(episode.StatusActive,
		visitSpec{day: 0, function: intp(50)},
		visitSpec{day: 7, function: intp(60)},
		visitSpec{day: 14, function: intp(100)},
	)
	r := OutcomeTrajectory([]episode.WithVisits{noPain})
	assert.Equal(t, 0.0, r.Details["avgPainReduction"])
	assert.InDelta(t, 1.0, r.Details["avgFunctionImprovement"], 1e-9)
}

func TestOutcomeTrajectory_ShortEpisodesExcluded(t *testing.T) {
	short := scored(episode.StatusDischarged, []int{9, 1}, []int{10, 90})
	r := OutcomeTrajectory([]episode.WithVisits{short, short})

	assert.Equal(t, 0, r.EpisodeCount)
	assert.Equal(t, 0.5, r.Details["visitFrequencyTapering"])
	assert.Equal(t, 0.5, r.Details["appropriateDischarge"])
	assert.InDelta(t, 0.2, r.Value, 1e-9)
}

func TestOutcomeTrajectory_WorseningClamped(t *testing.T) {
	e := scored(episode.StatusSelfDischarged, []int{4, 6, 9}, []int{70, 50, 30})
	r := OutcomeTrajectory([]episode.WithVisits{e})
	assert.Equal(t, 0.0, r.Details["avgPainReduction"])
	assert.Equal(t, 0.0, r.Details["avgFunctionImprovement"])
	assert.Equal(t, 0.2, r.Details["appropriateDischarge"])
}

func TestTaperingScore(t *testing.T) {
	tests := []struct {
		name string
		days []int
		want float64
	}{
		{"too few visits", []int{0, 7, 14}, 0},
		{"slowing down", []int{0, 7, 14, 35}, 0.8},
		{"steady", []int{0, 7, 14, 28}, 0.5},
		{"speeding up", []int{0, 14, 28, 29}, 0.2},
		{"same-day first half", []int{0, 0, 0, 7}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := make([]visitSpec, len(tt.days))
			for i, d := range tt.days {
				specs[i] = visitSpec{day: d}
			}
			assert.Equal(t, tt.want, taperingScore(ep(episode.StatusActive, specs...).Visits))
		})
	}
}

func TestConfidenceFor_Monotonic(t *testing.T) {
	rank := map[string]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}
	prev := -1
	for n := 0; n <= 20; n++ {
		r := rank[ConfidenceFor(n)]
		assert.GreaterOrEqual(t, r, prev, "n=%d", n)
		prev = r
	}
	assert.Equal(t, ConfidenceLow, ConfidenceFor(4))
	assert.Equal(t, ConfidenceMedium, ConfidenceFor(5))
	assert.Equal(t, ConfidenceMedium, ConfidenceFor(9))
	assert.Equal(t, ConfidenceHigh, ConfidenceFor(10))
}

func TestOutcomeTrajectory_ConfidenceTracksQualifyingEpisodes(t *testing.T) {
	good := func() episode.WithVisits {
		return scored(episode.StatusDischarged, []int{7, 5, 3}, []int{40, 60, 80})
	}
	assert.Equal(t, ConfidenceLow, OutcomeTrajectory(repeat(good, 4)).Confidence)
	assert.Equal(t, ConfidenceMedium, OutcomeTrajectory(repeat(good, 5)).Confidence)
	assert.Equal(t, ConfidenceHigh, OutcomeTrajectory(repeat(good, 10)).Confidence)
}
