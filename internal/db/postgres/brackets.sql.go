package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const deleteBracket = `
WITH m AS (DELETE FROM bracket_matches)
DELETE FROM bracket_meta`

// DeleteBracket removes the metadata row and every match.
func (q *Queries) DeleteBracket(ctx context.Context) error {
	_, err := q.db.Exec(ctx, deleteBracket)
	return err
}

const insertBracketMeta = `
INSERT INTO bracket_meta (id, num_brackets, num_rounds, seeds, created_at)
VALUES (1, $1, $2, $3, $4)`

// InsertBracketMeta writes the metadata row.
func (q *Queries) InsertBracketMeta(ctx context.Context, arg BracketMeta) error {
	_, err := q.db.Exec(ctx, insertBracketMeta, arg.NumBrackets, arg.NumRounds, arg.Seeds, arg.CreatedAt)
	return err
}

const getBracketMeta = `
SELECT num_brackets, num_rounds, seeds, created_at
FROM bracket_meta
WHERE id = 1`

// GetBracketMeta returns the metadata row, or nil when no bracket exists.
func (q *Queries) GetBracketMeta(ctx context.Context) (*BracketMeta, error) {
	var i BracketMeta
	err := q.db.QueryRow(ctx, getBracketMeta).Scan(&i.NumBrackets, &i.NumRounds, &i.Seeds, &i.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const upsertMatch = `
INSERT INTO bracket_matches (bracket, round, idx, game, seeds, scores, winner, loser, winner_place, loser_place)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (bracket, round, idx) DO UPDATE
SET game = EXCLUDED.game,
    seeds = EXCLUDED.seeds,
    scores = EXCLUDED.scores,
    winner = EXCLUDED.winner,
    loser = EXCLUDED.loser,
    winner_place = EXCLUDED.winner_place,
    loser_place = EXCLUDED.loser_place`

// UpsertMatch writes a match keyed by bracket, round and index.
func (q *Queries) UpsertMatch(ctx context.Context, arg BracketMatch) error {
	seeds := arg.Seeds
	if seeds == nil {
		seeds = []int32{}
	}
	scores := arg.Scores
	if scores == nil {
		scores = []float64{}
	}
	_, err := q.db.Exec(ctx, upsertMatch,
		arg.Bracket, arg.Round, arg.Idx, arg.Game, seeds, scores,
		arg.Winner, arg.Loser, arg.WinnerPlace, arg.LoserPlace)
	return err
}

const matchColumns = `bracket, round, idx, game, seeds, scores, winner, loser, winner_place, loser_place`

const findMatchBySeed = `
SELECT ` + matchColumns + `
FROM bracket_matches
WHERE round = $1 AND $2 = ANY(seeds)
ORDER BY game
LIMIT 1`

// FindMatchBySeed returns the match of a round holding seed, or nil.
func (q *Queries) FindMatchBySeed(ctx context.Context, round, seed int32) (*BracketMatch, error) {
	i, err := scanMatch(q.db.QueryRow(ctx, findMatchBySeed, round, seed))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const listMatchesByRound = `
SELECT ` + matchColumns + `
FROM bracket_matches
WHERE round = $1
ORDER BY game`

// ListMatchesByRound returns the matches of a round ordered by game number.
func (q *Queries) ListMatchesByRound(ctx context.Context, round int32) ([]BracketMatch, error) {
	rows, err := q.db.Query(ctx, listMatchesByRound, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BracketMatch
	for rows.Next() {
		i, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanMatch(row pgx.Row) (BracketMatch, error) {
	var i BracketMatch
	err := row.Scan(&i.Bracket, &i.Round, &i.Idx, &i.Game, &i.Seeds, &i.Scores,
		&i.Winner, &i.Loser, &i.WinnerPlace, &i.LoserPlace)
	return i, err
}
