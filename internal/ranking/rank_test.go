package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

func one(int) float64 { return 1 }

func TestRankRoundTiesShareRank(t *testing.T) {
	recs := []domain.ScoreRecord{
		{Round: 1, Question: 1, Scores: map[string]float64{"A": 1, "B": 1, "C": 0}},
	}
	rr, err := RankRound(1, recs)
	require.NoError(t, err)
	require.Len(t, rr.Entries, 3)

	ranks := map[string]int{}
	for _, e := range rr.Entries {
		ranks[e.TeamID] = e.Rank
	}
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 3}, ranks)
}

func TestRankRoundTiebreakSplitsTies(t *testing.T) {
	recs := []domain.ScoreRecord{
		{Round: 1, Question: 1, Scores: map[string]float64{"A": 1, "B": 1}, Tiebreaks: map[string]float64{"A": 4.2, "B": 9.1}},
		{Round: 1, Question: 2, Scores: map[string]float64{"A": 1, "B": 0}},
		{Round: 1, Question: 3, Scores: map[string]float64{"A": 0, "B": 1}},
	}
	rr, err := RankRound(1, recs)
	require.NoError(t, err)
	assert.Equal(t, "B", rr.Entries[0].TeamID)
	assert.Equal(t, 1, rr.Entries[0].Rank)
	assert.Equal(t, 2, rr.Entries[1].Rank)
	assert.Equal(t, 2.0, rr.Entries[0].Score)
	assert.Equal(t, 2, rr.Entries[0].Correct)
	assert.Equal(t, 9.1, rr.Entries[0].Tiebreak)
}

func TestRankRoundWeightedRecords(t *testing.T) {
	recs := []domain.ScoreRecord{
		{Round: 2, Question: 1, Scores: map[string]float64{"A": 1, "B": 0.97, "C": 0}, Weighted: true},
		{Round: 2, Question: 2, Scores: map[string]float64{"A": 0.94, "B": 1}, Weighted: true},
	}
	rr, err := RankRound(2, recs)
	require.NoError(t, err)
	assert.Equal(t, "B", rr.Entries[0].TeamID)
	assert.InDelta(t, 1.97, rr.Entries[0].Score, 1e-9)
	assert.InDelta(t, 1.94, rr.Entries[1].Score, 1e-9)
	assert.Equal(t, 2, rr.Entries[1].Correct)
	assert.Equal(t, 0, rr.Entries[2].Correct)
}

func TestRankRoundRejectsNonFinite(t *testing.T) {
	recs := []domain.ScoreRecord{{Round: 1, Scores: map[string]float64{"A": math.NaN()}}}
	_, err := RankRound(1, recs)
	var ce *ComputationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "A", ce.Team)

	recs = []domain.ScoreRecord{{Round: 1, Scores: map[string]float64{"A": 1}, Tiebreaks: map[string]float64{"A": math.Inf(1)}}}
	_, err = RankRound(1, recs)
	assert.ErrorAs(t, err, &ce)
}

func TestOverallAppliesMultipliers(t *testing.T) {
	r1, err := RankRound(1, []domain.ScoreRecord{
		{Round: 1, Question: 1, Scores: map[string]float64{"T1": 1, "T2": 1}},
		{Round: 1, Question: 2, Scores: map[string]float64{"T1": 1, "T2": 0}},
		{Round: 1, Question: 3, Scores: map[string]float64{"T1": 1}},
	})
	require.NoError(t, err)
	r2, err := RankRound(2, []domain.ScoreRecord{
		{Round: 2, Question: 1, Scores: map[string]float64{"T1": 1, "T2": 1}},
		{Round: 2, Question: 2, Scores: map[string]float64{"T1": 1, "T2": 1}},
	})
	require.NoError(t, err)

	mult := func(r int) float64 { return map[int]float64{1: 1, 2: 2}[r] }
	teams := []domain.Team{{ID: "T1", Name: "One"}, {ID: "T2", Name: "Two"}, {ID: "T3", Name: "Three"}}
	standing, err := Overall([]domain.RoundRanking{r1, r2}, teams, mult)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, standing.Rounds)
	require.Len(t, standing.Entries, 3)

	top := standing.Entries[0]
	assert.Equal(t, "T1", top.TeamID)
	assert.Equal(t, 7.0, top.TotalScore)
	assert.Equal(t, 5, top.TotalCorrect)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, 2.0, top.Rounds[1].Multiplier)
	assert.Equal(t, 4.0, top.Rounds[1].Score)

	assert.Equal(t, "T2", standing.Entries[1].TeamID)
	assert.Equal(t, 5.0, standing.Entries[1].TotalScore)

	absent := standing.Entries[2]
	assert.Equal(t, "T3", absent.TeamID)
	assert.Equal(t, "Three", absent.TeamName)
	assert.Equal(t, 0.0, absent.TotalScore)
	assert.Equal(t, -1, absent.Rounds[0].Rank)
	assert.Equal(t, 3, absent.Rank)
}

func TestOverallIncludesUnknownTeams(t *testing.T) {
	rr, err := RankRound(1, []domain.ScoreRecord{{Round: 1, Scores: map[string]float64{"ghost": 1}}})
	require.NoError(t, err)
	standing, err := Overall([]domain.RoundRanking{rr}, nil, one)
	require.NoError(t, err)
	require.Len(t, standing.Entries, 1)
	assert.Equal(t, "ghost", standing.Entries[0].TeamName)
}

func TestOverallRejectsBadMultiplier(t *testing.T) {
	rr, err := RankRound(1, []domain.ScoreRecord{{Round: 1, Scores: map[string]float64{"A": 1}}})
	require.NoError(t, err)
	_, err = Overall([]domain.RoundRanking{rr}, nil, func(int) float64 { return math.NaN() })
	var ce *ComputationError
	assert.ErrorAs(t, err, &ce)
}

func TestRedact(t *testing.T) {
	s := domain.Standing{
		Rounds: []int{1},
		Entries: []domain.StandingEntry{{
			TeamID: "Zebras", TeamName: "Zebra Crossing", Members: []string{"Ann"},
			TotalScore: 4, Rank: 1,
			Rounds: []domain.RoundBreakdown{{Round: 1, Score: 4, Rank: 1}},
		}},
	}
	r := Redact(s)
	require.Len(t, r.Entries, 1)
	assert.Equal(t, "Z", r.Entries[0].Team)
	assert.Equal(t, "Zebra Crossing", r.Entries[0].TeamName)
	assert.Equal(t, []int{1}, r.Entries[0].RoundRanks)
	assert.Equal(t, 4.0, r.Entries[0].Score)
}
