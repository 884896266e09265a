package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const upsertScore = `
INSERT INTO scores (round, question, scores, tiebreaks, weighted, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (round, question) DO UPDATE
SET scores = EXCLUDED.scores,
    tiebreaks = EXCLUDED.tiebreaks,
    weighted = EXCLUDED.weighted,
    updated_at = EXCLUDED.updated_at`

// UpsertScore replaces the score row of a round and question.
func (q *Queries) UpsertScore(ctx context.Context, arg Score) error {
	_, err := q.db.Exec(ctx, upsertScore, arg.Round, arg.Question, arg.Scores, arg.Tiebreaks, arg.Weighted, arg.UpdatedAt)
	return err
}

const listScoresByRound = `
SELECT round, question, scores, tiebreaks, weighted, updated_at
FROM scores
WHERE round = $1
ORDER BY question`

// ListScoresByRound returns the rows of a round ordered by question.
func (q *Queries) ListScoresByRound(ctx context.Context, round int32) ([]Score, error) {
	rows, err := q.db.Query(ctx, listScoresByRound, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Score
	for rows.Next() {
		var i Score
		if err := rows.Scan(&i.Round, &i.Question, &i.Scores, &i.Tiebreaks, &i.Weighted, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertStanding = `
INSERT INTO standings (published_at, full_view, public_view)
VALUES ($1, $2, $3)
RETURNING id`

// InsertStanding appends a published standing.
func (q *Queries) InsertStanding(ctx context.Context, arg Standing) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertStanding, arg.PublishedAt, arg.FullView, arg.PublicView).Scan(&id)
	return id, err
}

const latestStanding = `
SELECT id, published_at, full_view, public_view
FROM standings
ORDER BY published_at DESC, id DESC
LIMIT 1`

// LatestStanding returns the newest standing, or nil when none exists.
func (q *Queries) LatestStanding(ctx context.Context) (*Standing, error) {
	var i Standing
	err := q.db.QueryRow(ctx, latestStanding).Scan(&i.ID, &i.PublishedAt, &i.FullView, &i.PublicView)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}
