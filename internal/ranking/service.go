package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

// ErrNoRounds is returned when there is nothing to score.
var ErrNoRounds = errors.New("no rounds to score")

// ScoreSource lists the saved score records of a round.
type ScoreSource interface {
	ListScores(ctx context.Context, round int) ([]domain.ScoreRecord, error)
}

// PublishStore keeps the latest published standing.
type PublishStore interface {
	SavePublished(ctx context.Context, p domain.PublishedStanding) error
	LatestPublished(ctx context.Context) (*domain.PublishedStanding, error)
}

// TeamDirectory lists the roster.
type TeamDirectory interface {
	All() []domain.Team
}

// ServiceOptions configures scoring rounds.
type ServiceOptions struct {
	// CountedRounds are the rounds that make up the overall standing.
	CountedRounds []int
	// Multipliers weight CountedRounds position by position. Missing entries are 1.
	Multipliers []float64
	Now         func() time.Time
}

// Service computes rankings from stored scores and publishes snapshots.
type Service struct {
	scores    ScoreSource
	published PublishStore
	teams     TeamDirectory
	cache     *Cache
	counted   []int
	mult      map[int]float64
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService constructs a ranking service. cache may be nil.
func NewService(scores ScoreSource, published PublishStore, teams TeamDirectory, cache *Cache, opts ServiceOptions, logger zerolog.Logger) *Service {
	mult := make(map[int]float64, len(opts.CountedRounds))
	for i, r := range opts.CountedRounds {
		m := 1.0
		if i < len(opts.Multipliers) {
			m = opts.Multipliers[i]
		}
		mult[r] = m
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		scores:    scores,
		published: published,
		teams:     teams,
		cache:     cache,
		counted:   append([]int(nil), opts.CountedRounds...),
		mult:      mult,
		now:       now,
		logger:    logger.With().Str("component", "ranking").Logger(),
	}
}

// Multiplier returns the weight of a round, 1 for rounds without one.
func (s *Service) Multiplier(round int) float64 {
	if m, ok := s.mult[round]; ok {
		return m
	}
	return 1
}

// RankRound ranks a single round from its saved records.
func (s *Service) RankRound(ctx context.Context, round int) (domain.RoundRanking, error) {
	recs, err := s.scores.ListScores(ctx, round)
	if err != nil {
		return domain.RoundRanking{}, fmt.Errorf("list scores for round %d: %w", round, err)
	}
	return RankRound(round, recs)
}

// ComputeOverall builds the weighted standing over rounds, or over every
// counted round when rounds is empty.
func (s *Service) ComputeOverall(ctx context.Context, rounds []int) (domain.Standing, error) {
	if len(rounds) == 0 {
		rounds = s.counted
	}
	if len(rounds) == 0 {
		return domain.Standing{}, ErrNoRounds
	}

	rankings := make([]domain.RoundRanking, 0, len(rounds))
	for _, r := range rounds {
		rr, err := s.RankRound(ctx, r)
		if err != nil {
			return domain.Standing{}, err
		}
		rankings = append(rankings, rr)
	}

	var teams []domain.Team
	if s.teams != nil {
		teams = s.teams.All()
	}
	standing, err := Overall(rankings, teams, s.Multiplier)
	if err != nil {
		var ce *ComputationError
		if errors.As(err, &ce) {
			s.logger.Error().Err(err).Int("round", ce.Round).Str("team_id", ce.Team).Msg("standing computation failed")
		}
		return domain.Standing{}, err
	}
	return standing, nil
}

// Publish computes the standing over every counted round, stores it and
// announces the release.
func (s *Service) Publish(ctx context.Context) (domain.PublishedStanding, error) {
	standing, err := s.ComputeOverall(ctx, nil)
	if err != nil {
		return domain.PublishedStanding{}, err
	}

	p := domain.PublishedStanding{
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		Full:      standing,
		Redacted:  Redact(standing),
	}
	if err := s.published.SavePublished(ctx, p); err != nil {
		return domain.PublishedStanding{}, fmt.Errorf("save published standing: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, p); err != nil {
			s.logger.Warn().Err(err).Msg("publish to cache failed")
		}
	}
	s.logger.Info().Time("ts", p.Timestamp).Int("teams", len(standing.Entries)).Msg("standing published")
	return p, nil
}

// Published returns the latest published standing, preferring the cache.
// It returns nil when nothing has been published.
func (s *Service) Published(ctx context.Context) (*domain.PublishedStanding, error) {
	if s.cache != nil {
		p, err := s.cache.Load(ctx)
		if err == nil && p != nil {
			return p, nil
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("published cache read failed")
		}
	}
	return s.published.LatestPublished(ctx)
}
