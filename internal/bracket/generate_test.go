package bracket

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSingleBracket(t *testing.T) {
	forest, err := Generate(1, false)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	require.Len(t, forest[0], Rounds)

	first := forest[0][0]
	require.Len(t, first, MatchesPerRound)
	assert.Equal(t, []int{0, 15}, first[0].Seeds)
	assert.Equal(t, []float64{-1, -1}, first[0].Scores)
	assert.Equal(t, 0, *first[0].Winner)
	assert.Equal(t, 4, *first[0].Loser)
	assert.Equal(t, []int{7, 8}, first[1].Seeds)
	assert.Equal(t, 0, *first[1].Winner)
	assert.Equal(t, []int{5, 10}, first[7].Seeds)
	assert.Equal(t, 3, *first[7].Winner)
	assert.Equal(t, 7, *first[7].Loser)

	second := forest[0][1]
	assert.Equal(t, []int{-1, -1}, second[0].Seeds)
	assert.Nil(t, second[0].Scores)
	assert.Equal(t, 0, *second[0].Winner)
	assert.Equal(t, 2, *second[0].Loser)
	assert.Equal(t, 5, *second[6].Winner)
	assert.Equal(t, 7, *second[6].Loser)

	third := forest[0][2]
	assert.Equal(t, 2, *third[3].Winner)
	assert.Equal(t, 3, *third[3].Loser)

	last := forest[0][3]
	for g, m := range last {
		assert.Nil(t, m.Winner)
		assert.Equal(t, g*2, *m.WinnerPlace)
		assert.Equal(t, g*2+1, *m.LoserPlace)
	}
}

func TestGenerateSpreadsSeedsAcrossBrackets(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		forest, err := Generate(n, false)
		require.NoError(t, err)

		var seeds []int
		for _, rounds := range forest {
			for _, m := range rounds[0] {
				seeds = append(seeds, m.Seeds...)
			}
		}
		sort.Ints(seeds)
		require.Len(t, seeds, Size*n)
		for i, s := range seeds {
			assert.Equal(t, i, s, "brackets=%d", n)
		}
	}

	forest, err := Generate(2, false)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 31}, forest[0][0][0].Seeds)
	assert.Equal(t, []int{1, 30}, forest[1][0][0].Seeds)
}

func TestGenerateBlank(t *testing.T) {
	forest, err := Generate(2, true)
	require.NoError(t, err)
	for _, rounds := range forest {
		for _, m := range rounds[0] {
			assert.Nil(t, m.Seeds)
			assert.Nil(t, m.Scores)
			assert.NotNil(t, m.Winner)
		}
	}
}

func TestGenerateRejectsZero(t *testing.T) {
	_, err := Generate(0, false)
	assert.ErrorIs(t, err, ErrBracketCount)
}

func TestFlattenNumbersGamesGlobally(t *testing.T) {
	forest, err := Generate(2, false)
	require.NoError(t, err)

	records := Flatten(forest)
	require.Len(t, records, 2*Rounds*MatchesPerRound)
	for i, rec := range records {
		assert.Equal(t, i, rec.Game)
	}
	assert.Equal(t, 1, records[Rounds*MatchesPerRound].Bracket)
	assert.Equal(t, 0, records[Rounds*MatchesPerRound].Round)
	assert.Equal(t, 3, records[MatchesPerRound*3+2].Round)
	assert.Equal(t, 2, records[MatchesPerRound*3+2].Index)
}

func TestRebuildRoundTrip(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		for _, blank := range []bool{false, true} {
			forest, err := Generate(n, blank)
			require.NoError(t, err)

			rebuilt, err := Rebuild(n, Flatten(forest))
			require.NoError(t, err)
			assert.Equal(t, forest, rebuilt, "brackets=%d blank=%v", n, blank)
		}
	}
}

func TestRebuildKeepsZeroValues(t *testing.T) {
	forest, err := Generate(1, false)
	require.NoError(t, err)
	records := Flatten(forest)
	records[0].Scores = []float64{0, 0}

	rebuilt, err := Rebuild(1, records)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, rebuilt[0][0][0].Scores)
	assert.Equal(t, 0, *rebuilt[0][0][0].Winner)
}

func TestRebuildRejectsOutOfRange(t *testing.T) {
	forest, err := Generate(1, false)
	require.NoError(t, err)
	records := Flatten(forest)
	records[0].Bracket = 4

	_, err = Rebuild(1, records)
	assert.Error(t, err)
}
