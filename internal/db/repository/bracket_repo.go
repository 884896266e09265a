package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gokatarajesh/trivia-night/internal/db/postgres"
	"github.com/gokatarajesh/trivia-night/internal/domain"
)

type bracketStore interface {
	DeleteBracket(ctx context.Context) error
	InsertBracketMeta(ctx context.Context, arg postgres.BracketMeta) error
	GetBracketMeta(ctx context.Context) (*postgres.BracketMeta, error)
	UpsertMatch(ctx context.Context, arg postgres.BracketMatch) error
	FindMatchBySeed(ctx context.Context, round, seed int32) (*postgres.BracketMatch, error)
	ListMatchesByRound(ctx context.Context, round int32) ([]postgres.BracketMatch, error)
}

// TxFunc runs fn against a transactional store.
type TxFunc func(ctx context.Context, fn func(q *postgres.Queries) error) error

// BracketRepository persists bracket metadata and match records.
type BracketRepository struct {
	store bracketStore
	inTx  func(ctx context.Context, fn func(s bracketStore) error) error
}

// NewBracketRepository constructs a new bracket repository. When tx is nil,
// replacing the bracket runs statement by statement on store.
func NewBracketRepository(store bracketStore, tx TxFunc) *BracketRepository {
	r := &BracketRepository{store: store}
	if tx == nil {
		r.inTx = func(ctx context.Context, fn func(s bracketStore) error) error { return fn(store) }
	} else {
		r.inTx = func(ctx context.Context, fn func(s bracketStore) error) error {
			return tx(ctx, func(q *postgres.Queries) error { return fn(q) })
		}
	}
	return r
}

// ReplaceBracket drops the stored bracket and writes a new one atomically.
func (r *BracketRepository) ReplaceBracket(ctx context.Context, meta domain.BracketMetadata, matches []domain.MatchRecord) error {
	seeds, err := json.Marshal(meta.Seeds)
	if err != nil {
		return fmt.Errorf("encode seeds: %w", err)
	}
	return r.inTx(ctx, func(s bracketStore) error {
		if err := s.DeleteBracket(ctx); err != nil {
			return fmt.Errorf("delete bracket: %w", err)
		}
		if err := s.InsertBracketMeta(ctx, postgres.BracketMeta{
			NumBrackets: int32(meta.NumBrackets),
			NumRounds:   int32(meta.NumRounds),
			Seeds:       seeds,
			CreatedAt:   meta.CreatedAt,
		}); err != nil {
			return fmt.Errorf("insert bracket metadata: %w", err)
		}
		for _, m := range matches {
			if err := s.UpsertMatch(ctx, toRow(m)); err != nil {
				return fmt.Errorf("insert match %d: %w", m.Game, err)
			}
		}
		return nil
	})
}

// Metadata returns the bracket metadata, or nil.
func (r *BracketRepository) Metadata(ctx context.Context) (*domain.BracketMetadata, error) {
	row, err := r.store.GetBracketMeta(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	meta := &domain.BracketMetadata{
		IsMetadata:  true,
		NumBrackets: int(row.NumBrackets),
		NumRounds:   int(row.NumRounds),
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(row.Seeds, &meta.Seeds); err != nil {
		return nil, fmt.Errorf("decode seeds: %w", err)
	}
	return meta, nil
}

// FindMatch returns the match of round that contains seed, or nil.
func (r *BracketRepository) FindMatch(ctx context.Context, round, seed int) (*domain.MatchRecord, error) {
	row, err := r.store.FindMatchBySeed(ctx, int32(round), int32(seed))
	if err != nil || row == nil {
		return nil, err
	}
	m := fromRow(*row)
	return &m, nil
}

// ListMatches returns the matches of a round ordered by game number.
func (r *BracketRepository) ListMatches(ctx context.Context, round int) ([]domain.MatchRecord, error) {
	rows, err := r.store.ListMatchesByRound(ctx, int32(round))
	if err != nil {
		return nil, err
	}
	out := make([]domain.MatchRecord, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// SaveMatch upserts a match by bracket, round and index.
func (r *BracketRepository) SaveMatch(ctx context.Context, m domain.MatchRecord) error {
	return r.store.UpsertMatch(ctx, toRow(m))
}

func toRow(m domain.MatchRecord) postgres.BracketMatch {
	row := postgres.BracketMatch{
		Bracket:     int32(m.Bracket),
		Round:       int32(m.Round),
		Idx:         int32(m.Index),
		Game:        int32(m.Game),
		Winner:      toInt32(m.Winner),
		Loser:       toInt32(m.Loser),
		WinnerPlace: toInt32(m.WinnerPlace),
		LoserPlace:  toInt32(m.LoserPlace),
	}
	if m.Seeds != nil {
		row.Seeds = make([]int32, len(m.Seeds))
		for i, s := range m.Seeds {
			row.Seeds[i] = int32(s)
		}
	}
	if m.Scores != nil {
		row.Scores = append([]float64(nil), m.Scores...)
	}
	return row
}

func fromRow(row postgres.BracketMatch) domain.MatchRecord {
	m := domain.MatchRecord{
		Bracket:     int(row.Bracket),
		Round:       int(row.Round),
		Index:       int(row.Idx),
		Game:        int(row.Game),
		Winner:      fromInt32(row.Winner),
		Loser:       fromInt32(row.Loser),
		WinnerPlace: fromInt32(row.WinnerPlace),
		LoserPlace:  fromInt32(row.LoserPlace),
	}
	if len(row.Seeds) > 0 {
		m.Seeds = make([]int, len(row.Seeds))
		for i, s := range row.Seeds {
			m.Seeds[i] = int(s)
		}
	}
	if len(row.Scores) > 0 {
		m.Scores = append([]float64(nil), row.Scores...)
	}
	return m
}

func toInt32(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

func fromInt32(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
