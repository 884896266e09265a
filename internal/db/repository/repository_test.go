package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-night/internal/db/postgres"
	"github.com/gokatarajesh/trivia-night/internal/domain"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertScore(ctx context.Context, arg postgres.Score) error {
	return m.Called(ctx, arg).Error(0)
}

func (m *mockStore) ListScoresByRound(ctx context.Context, round int32) ([]postgres.Score, error) {
	args := m.Called(ctx, round)
	return args.Get(0).([]postgres.Score), args.Error(1)
}

func (m *mockStore) InsertStanding(ctx context.Context, arg postgres.Standing) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) LatestStanding(ctx context.Context) (*postgres.Standing, error) {
	args := m.Called(ctx)
	row, _ := args.Get(0).(*postgres.Standing)
	return row, args.Error(1)
}

func (m *mockStore) DeleteBracket(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) InsertBracketMeta(ctx context.Context, arg postgres.BracketMeta) error {
	return m.Called(ctx, arg).Error(0)
}

func (m *mockStore) GetBracketMeta(ctx context.Context) (*postgres.BracketMeta, error) {
	args := m.Called(ctx)
	row, _ := args.Get(0).(*postgres.BracketMeta)
	return row, args.Error(1)
}

func (m *mockStore) UpsertMatch(ctx context.Context, arg postgres.BracketMatch) error {
	return m.Called(ctx, arg).Error(0)
}

func (m *mockStore) FindMatchBySeed(ctx context.Context, round, seed int32) (*postgres.BracketMatch, error) {
	args := m.Called(ctx, round, seed)
	row, _ := args.Get(0).(*postgres.BracketMatch)
	return row, args.Error(1)
}

func (m *mockStore) ListMatchesByRound(ctx context.Context, round int32) ([]postgres.BracketMatch, error) {
	args := m.Called(ctx, round)
	return args.Get(0).([]postgres.BracketMatch), args.Error(1)
}

func intPtr(v int) *int { return &v }

func int32Ptr(v int32) *int32 { return &v }

func TestScoreRepository_SaveScores(t *testing.T) {
	store := new(mockStore)
	repo := NewScoreRepository(store)
	at := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	store.On("UpsertScore", mock.Anything, postgres.Score{
		Round:     2,
		Question:  5,
		Scores:    []byte(`{"T1":1,"T2":0}`),
		Tiebreaks: []byte(`{}`),
		Weighted:  true,
		UpdatedAt: at,
	}).Return(nil)

	err := repo.SaveScores(context.Background(), domain.ScoreRecord{
		Round: 2, Question: 5, Scores: map[string]float64{"T2": 0, "T1": 1}, Weighted: true, UpdatedAt: at,
	})
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestScoreRepository_ListScores(t *testing.T) {
	store := new(mockStore)
	repo := NewScoreRepository(store)

	store.On("ListScoresByRound", mock.Anything, int32(1)).Return([]postgres.Score{
		{Round: 1, Question: 1, Scores: []byte(`{"T1":1}`), Tiebreaks: []byte(`{}`)},
		{Round: 1, Question: 2, Scores: []byte(`{"T1":0.97}`), Tiebreaks: []byte(`{"T1":8.5}`), Weighted: true},
	}, nil)

	recs, err := repo.ListScores(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]float64{"T1": 1}, recs[0].Scores)
	assert.Nil(t, recs[0].Tiebreaks)
	assert.Equal(t, 8.5, recs[1].Tiebreaks["T1"])
	assert.True(t, recs[1].Weighted)
}

func TestScoreRepository_ListScoresBadJSON(t *testing.T) {
	store := new(mockStore)
	repo := NewScoreRepository(store)
	store.On("ListScoresByRound", mock.Anything, int32(1)).Return([]postgres.Score{{Round: 1, Question: 3, Scores: []byte(`nope`)}}, nil)

	_, err := repo.ListScores(context.Background(), 1)
	assert.ErrorContains(t, err, "r1 q3")
}

func TestScoreRepository_LatestPublished(t *testing.T) {
	store := new(mockStore)
	repo := NewScoreRepository(store)
	at := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)

	store.On("LatestStanding", mock.Anything).Return(nil, nil).Once()
	got, err := repo.LatestPublished(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	store.On("LatestStanding", mock.Anything).Return(&postgres.Standing{
		ID:          4,
		PublishedAt: at,
		FullView:    []byte(`{"rounds":[1],"data":[{"t":"T1","tn":"One","s":3,"c":3,"tb":0,"i":[],"r":1}]}`),
		PublicView:  []byte(`{"rounds":[1],"data":[{"t":"T","tn":"One","s":3,"i":[1],"r":1}]}`),
	}, nil).Once()
	got, err = repo.LatestPublished(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, at.Equal(got.Timestamp))
	assert.Equal(t, "T1", got.Full.Entries[0].TeamID)
	assert.Equal(t, "T", got.Redacted.Entries[0].Team)
}

func TestBracketRepository_ReplaceBracketStopsOnError(t *testing.T) {
	store := new(mockStore)
	repo := NewBracketRepository(store, nil)
	created := time.Date(2024, 3, 1, 21, 30, 0, 0, time.UTC)

	store.On("DeleteBracket", mock.Anything).Return(nil)
	store.On("InsertBracketMeta", mock.Anything, postgres.BracketMeta{
		NumBrackets: 1, NumRounds: 4, Seeds: []byte(`[{"t":"T1","tn":"One","r":1}]`), CreatedAt: created,
	}).Return(nil)
	store.On("UpsertMatch", mock.Anything, mock.MatchedBy(func(m postgres.BracketMatch) bool { return m.Game == 0 })).Return(nil)
	store.On("UpsertMatch", mock.Anything, mock.MatchedBy(func(m postgres.BracketMatch) bool { return m.Game == 1 })).Return(errors.New("boom"))

	err := repo.ReplaceBracket(context.Background(), domain.BracketMetadata{
		IsMetadata: true, NumBrackets: 1, NumRounds: 4, CreatedAt: created,
		Seeds: []domain.Seed{{TeamID: "T1", TeamName: "One", Rank: 1}},
	}, []domain.MatchRecord{
		{Game: 0, Seeds: []int{0, 15}, Scores: []float64{0, 0}, Winner: intPtr(8), Loser: intPtr(12)},
		{Game: 1, Index: 1, Seeds: []int{7, 8}},
		{Game: 2, Index: 2, Seeds: []int{3, 12}},
	})
	assert.ErrorContains(t, err, "insert match 1")
	store.AssertNumberOfCalls(t, "UpsertMatch", 2)
}

func TestBracketRepository_ReplaceBracketUsesTx(t *testing.T) {
	store := new(mockStore)
	var used bool
	repo := NewBracketRepository(store, func(ctx context.Context, fn func(q *postgres.Queries) error) error {
		used = true
		return nil
	})
	require.NoError(t, repo.ReplaceBracket(context.Background(), domain.BracketMetadata{}, nil))
	assert.True(t, used)
	store.AssertNotCalled(t, "DeleteBracket", mock.Anything)
}

func TestBracketRepository_FindMatch(t *testing.T) {
	store := new(mockStore)
	repo := NewBracketRepository(store, nil)

	store.On("FindMatchBySeed", mock.Anything, int32(1), int32(3)).Return(&postgres.BracketMatch{
		Round: 1, Idx: 2, Game: 10, Seeds: []int32{3, 12}, Scores: []float64{1.5, 0},
		Winner: int32Ptr(4), Loser: int32Ptr(6),
	}, nil)
	store.On("FindMatchBySeed", mock.Anything, int32(1), int32(99)).Return(nil, nil)

	m, err := repo.FindMatch(context.Background(), 1, 3)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []int{3, 12}, m.Seeds)
	assert.Equal(t, 4, *m.Winner)
	assert.Nil(t, m.WinnerPlace)
	assert.Equal(t, 2, m.Index)

	m, err = repo.FindMatch(context.Background(), 1, 99)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestBracketRepository_Metadata(t *testing.T) {
	store := new(mockStore)
	repo := NewBracketRepository(store, nil)
	store.On("GetBracketMeta", mock.Anything).Return(&postgres.BracketMeta{
		NumBrackets: 2, NumRounds: 4, Seeds: []byte(`[{"t":"T1","tn":"One","r":1},{"t":"T2","tn":"Two","r":2}]`),
	}, nil)

	meta, err := repo.Metadata(context.Background())
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, meta.IsMetadata)
	assert.Equal(t, 1, meta.SeedOf("T2"))
}

func TestRowConversionRoundTrip(t *testing.T) {
	m := domain.MatchRecord{
		Round: 3, Game: 14, Bracket: 0, Index: 0,
		Seeds: []int{0, 1}, Scores: []float64{2, 1},
		WinnerPlace: intPtr(1), LoserPlace: intPtr(2),
	}
	assert.Equal(t, m, fromRow(toRow(m)))

	blank := domain.MatchRecord{Round: 1, Game: 8}
	assert.Equal(t, blank, fromRow(toRow(blank)))
}
