//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gokatarajesh/trivia-night/internal/bracket"
	"github.com/gokatarajesh/trivia-night/internal/db/postgres"
	"github.com/gokatarajesh/trivia-night/internal/db/repository"
	"github.com/gokatarajesh/trivia-night/internal/domain"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "trivia", "POSTGRES_DB": "trivia"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://trivia:trivia@%s:%s/trivia?sslmode=disable", host, port.Port())
}

func TestPostgresStores(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t, ctx)

	require.NoError(t, postgres.Migrate(ctx, dsn, postgres.MigrateUp))

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	q := postgres.New(pool)
	scores := repository.NewScoreRepository(q)
	brackets := repository.NewBracketRepository(q, func(ctx context.Context, fn func(q *postgres.Queries) error) error {
		return postgres.InTx(ctx, pool, fn)
	})

	t.Run("scores replace on resave", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, scores.SaveScores(ctx, domain.ScoreRecord{Round: 1, Question: 2, Scores: map[string]float64{"T1": 1}, UpdatedAt: at}))
		require.NoError(t, scores.SaveScores(ctx, domain.ScoreRecord{Round: 1, Question: 1, Scores: map[string]float64{"T2": 1}, UpdatedAt: at}))
		require.NoError(t, scores.SaveScores(ctx, domain.ScoreRecord{Round: 1, Question: 2, Scores: map[string]float64{"T1": 0, "T3": 1}, Tiebreaks: map[string]float64{"T3": 7.25}, UpdatedAt: at}))

		recs, err := scores.ListScores(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, 1, recs[0].Question)
		assert.Equal(t, map[string]float64{"T1": 0, "T3": 1}, recs[1].Scores)
		assert.Equal(t, 7.25, recs[1].Tiebreaks["T3"])
	})

	t.Run("published standings", func(t *testing.T) {
		latest, err := scores.LatestPublished(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		first := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
		require.NoError(t, scores.SavePublished(ctx, domain.PublishedStanding{Timestamp: first, Full: domain.Standing{Rounds: []int{1}}}))
		require.NoError(t, scores.SavePublished(ctx, domain.PublishedStanding{Timestamp: first.Add(time.Minute), Full: domain.Standing{Rounds: []int{1, 2}}}))

		latest, err = scores.LatestPublished(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, []int{1, 2}, latest.Full.Rounds)
	})

	t.Run("bracket round trip", func(t *testing.T) {
		forest, err := bracket.Generate(2, false)
		require.NoError(t, err)
		records := bracket.Flatten(forest)
		meta := domain.BracketMetadata{IsMetadata: true, NumBrackets: 2, NumRounds: bracket.Rounds, CreatedAt: time.Now().UTC().Truncate(time.Second)}

		require.NoError(t, brackets.ReplaceBracket(ctx, meta, records))
		require.NoError(t, brackets.ReplaceBracket(ctx, meta, records))

		for r := 0; r < bracket.Rounds; r++ {
			got, err := brackets.ListMatches(ctx, r)
			require.NoError(t, err)
			want := 0
			for _, rec := range records {
				if rec.Round == r {
					want++
				}
			}
			assert.Len(t, got, want)
		}

		all := make([]domain.MatchRecord, 0, len(records))
		for r := 0; r < bracket.Rounds; r++ {
			got, err := brackets.ListMatches(ctx, r)
			require.NoError(t, err)
			all = append(all, got...)
		}
		rebuilt, err := bracket.Rebuild(2, all)
		require.NoError(t, err)
		assert.Equal(t, forest, rebuilt)

		m, err := brackets.FindMatch(ctx, 0, 31)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Contains(t, m.Seeds, 31)

		m.Scores = []float64{2, 1}
		require.NoError(t, brackets.SaveMatch(ctx, *m))
		again, err := brackets.FindMatch(ctx, 0, 31)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 1}, again.Scores)

		stored, err := brackets.Metadata(ctx)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 2, stored.NumBrackets)
	})
}
