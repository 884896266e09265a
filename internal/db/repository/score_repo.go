// Package repository maps domain records onto the Postgres query layer.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gokatarajesh/trivia-night/internal/db/postgres"
	"github.com/gokatarajesh/trivia-night/internal/domain"
)

type scoreStore interface {
	UpsertScore(ctx context.Context, arg postgres.Score) error
	ListScoresByRound(ctx context.Context, round int32) ([]postgres.Score, error)
	InsertStanding(ctx context.Context, arg postgres.Standing) (int64, error)
	LatestStanding(ctx context.Context) (*postgres.Standing, error)
}

// ScoreRepository persists score records and published standings.
type ScoreRepository struct {
	store scoreStore
}

// NewScoreRepository constructs a new score repository.
func NewScoreRepository(store scoreStore) *ScoreRepository {
	return &ScoreRepository{store: store}
}

// SaveScores replaces the record of the round and question.
func (r *ScoreRepository) SaveScores(ctx context.Context, rec domain.ScoreRecord) error {
	scores, err := marshalMap(rec.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	tiebreaks, err := marshalMap(rec.Tiebreaks)
	if err != nil {
		return fmt.Errorf("encode tiebreaks: %w", err)
	}
	return r.store.UpsertScore(ctx, postgres.Score{
		Round:     int32(rec.Round),
		Question:  int32(rec.Question),
		Scores:    scores,
		Tiebreaks: tiebreaks,
		Weighted:  rec.Weighted,
		UpdatedAt: rec.UpdatedAt,
	})
}

// ListScores returns the records of a round ordered by question.
func (r *ScoreRepository) ListScores(ctx context.Context, round int) ([]domain.ScoreRecord, error) {
	rows, err := r.store.ListScoresByRound(ctx, int32(round))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		rec := domain.ScoreRecord{
			Round:     int(row.Round),
			Question:  int(row.Question),
			Weighted:  row.Weighted,
			UpdatedAt: row.UpdatedAt,
		}
		if err := json.Unmarshal(row.Scores, &rec.Scores); err != nil {
			return nil, fmt.Errorf("decode scores r%d q%d: %w", row.Round, row.Question, err)
		}
		if len(row.Tiebreaks) > 0 {
			if err := json.Unmarshal(row.Tiebreaks, &rec.Tiebreaks); err != nil {
				return nil, fmt.Errorf("decode tiebreaks r%d q%d: %w", row.Round, row.Question, err)
			}
			if len(rec.Tiebreaks) == 0 {
				rec.Tiebreaks = nil
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// SavePublished appends a published standing.
func (r *ScoreRepository) SavePublished(ctx context.Context, p domain.PublishedStanding) error {
	full, err := json.Marshal(p.Full)
	if err != nil {
		return fmt.Errorf("encode standing: %w", err)
	}
	public, err := json.Marshal(p.Redacted)
	if err != nil {
		return fmt.Errorf("encode redacted standing: %w", err)
	}
	_, err = r.store.InsertStanding(ctx, postgres.Standing{PublishedAt: p.Timestamp, FullView: full, PublicView: public})
	return err
}

// LatestPublished returns the newest published standing, or nil.
func (r *ScoreRepository) LatestPublished(ctx context.Context) (*domain.PublishedStanding, error) {
	row, err := r.store.LatestStanding(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	p := domain.PublishedStanding{Timestamp: row.PublishedAt.UTC()}
	if err := json.Unmarshal(row.FullView, &p.Full); err != nil {
		return nil, fmt.Errorf("decode standing %d: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.PublicView, &p.Redacted); err != nil {
		return nil, fmt.Errorf("decode redacted standing %d: %w", row.ID, err)
	}
	return &p, nil
}

func marshalMap(m map[string]float64) ([]byte, error) {
	if m == nil {
		m = map[string]float64{}
	}
	return json.Marshal(m)
}
