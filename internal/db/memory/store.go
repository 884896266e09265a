// Package memory is a process-local store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

type scoreKey struct{ round, question int }

type matchKey struct{ bracket, round, index int }

// Store keeps score records, published standings and brackets in maps.
type Store struct {
	mu        sync.RWMutex
	scores    map[scoreKey]domain.ScoreRecord
	published *domain.PublishedStanding
	meta      *domain.BracketMetadata
	matches   map[matchKey]domain.MatchRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		scores:  make(map[scoreKey]domain.ScoreRecord),
		matches: make(map[matchKey]domain.MatchRecord),
	}
}

// SaveScores replaces the record for the round and question.
func (s *Store) SaveScores(_ context.Context, rec domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[scoreKey{rec.Round, rec.Question}] = cloneScore(rec)
	return nil
}

// ListScores returns the records of a round ordered by question.
func (s *Store) ListScores(_ context.Context, round int) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ScoreRecord
	for k, rec := range s.scores {
		if k.round == round {
			out = append(out, cloneScore(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Question < out[j].Question })
	return out, nil
}

// SavePublished replaces the published standing.
func (s *Store) SavePublished(_ context.Context, p domain.PublishedStanding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = &p
	return nil
}

// LatestPublished returns the published standing or nil.
func (s *Store) LatestPublished(_ context.Context) (*domain.PublishedStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.published == nil {
		return nil, nil
	}
	p := *s.published
	return &p, nil
}

// ReplaceBracket drops the stored bracket set and writes a new one.
func (s *Store) ReplaceBracket(_ context.Context, meta domain.BracketMetadata, matches []domain.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = &meta
	s.matches = make(map[matchKey]domain.MatchRecord, len(matches))
	for _, m := range matches {
		s.matches[matchKey{m.Bracket, m.Round, m.Index}] = cloneMatch(m)
	}
	return nil
}

// Metadata returns the bracket metadata or nil.
func (s *Store) Metadata(_ context.Context) (*domain.BracketMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil, nil
	}
	m := *s.meta
	m.Seeds = append([]domain.Seed(nil), s.meta.Seeds...)
	return &m, nil
}

// FindMatch returns the match of round that contains seed, or nil.
func (s *Store) FindMatch(_ context.Context, round, seed int) (*domain.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, m := range s.matches {
		if k.round == round && m.Side(seed) >= 0 {
			out := cloneMatch(m)
			return &out, nil
		}
	}
	return nil, nil
}

// ListMatches returns the matches of a round ordered by game number.
func (s *Store) ListMatches(_ context.Context, round int) ([]domain.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MatchRecord
	for k, m := range s.matches {
		if k.round == round {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Game < out[j].Game })
	return out, nil
}

// SaveMatch upserts a match by bracket, round and index.
func (s *Store) SaveMatch(_ context.Context, m domain.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[matchKey{m.Bracket, m.Round, m.Index}] = cloneMatch(m)
	return nil
}

func cloneScore(rec domain.ScoreRecord) domain.ScoreRecord {
	rec.Scores = cloneMap(rec.Scores)
	rec.Tiebreaks = cloneMap(rec.Tiebreaks)
	return rec
}

func cloneMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneMatch(m domain.MatchRecord) domain.MatchRecord {
	if m.Seeds != nil {
		m.Seeds = append([]int(nil), m.Seeds...)
	}
	if m.Scores != nil {
		m.Scores = append([]float64(nil), m.Scores...)
	}
	return m
}
