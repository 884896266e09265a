// Package ranking turns saved score records into per-round rankings and the
// weighted overall standing, and publishes standing snapshots.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

// ComputationError reports a non-finite value found while aggregating.
type ComputationError struct {
	Round  int
	Team   string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("round %d team %s: %s", e.Round, e.Team, e.Reason)
}

func checkFinite(round int, team, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ComputationError{Round: round, Team: team, Reason: fmt.Sprintf("%s is %v", field, v)}
	}
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// RankRound tallies one round. Unweighted records count 1 point per correct
// answer; weighted (buzzer) records add the stored payout.
func RankRound(round int, records []domain.ScoreRecord) (domain.RoundRanking, error) {
	byTeam := map[string]*domain.RoundEntry{}
	entry := func(team string) *domain.RoundEntry {
		e, ok := byTeam[team]
		if !ok {
			e = &domain.RoundEntry{TeamID: team}
			byTeam[team] = e
		}
		return e
	}

	for _, rec := range records {
		for team, v := range rec.Scores {
			if err := checkFinite(round, team, "score", v); err != nil {
				return domain.RoundRanking{}, err
			}
			e := entry(team)
			if v <= 0 {
				continue
			}
			e.Correct++
			if rec.Weighted {
				e.Score += v
			} else {
				e.Score++
			}
		}
		for team, tb := range rec.Tiebreaks {
			if err := checkFinite(round, team, "tiebreak", tb); err != nil {
				return domain.RoundRanking{}, err
			}
			entry(team).Tiebreak += tb
		}
	}

	entries := make([]domain.RoundEntry, 0, len(byTeam))
	for _, e := range byTeam {
		e.Score = round3(e.Score)
		e.Tiebreak = round3(e.Tiebreak)
		entries = append(entries, *e)
	}
	assignRanks(entries,
		func(e domain.RoundEntry) (string, float64, float64) { return e.TeamID, e.Score, e.Tiebreak },
		func(e *domain.RoundEntry, r int) { e.Rank = r })

	return domain.RoundRanking{Round: round, Entries: entries}, nil
}

// Overall combines round rankings into the weighted standing. Every team in
// the roster appears, plus any team that only shows up in the records.
func Overall(rankings []domain.RoundRanking, teams []domain.Team, multiplier func(round int) float64) (domain.Standing, error) {
	known := make(map[string]domain.Team, len(teams))
	order := make([]string, 0, len(teams))
	for _, t := range teams {
		if _, dup := known[t.ID]; dup {
			continue
		}
		known[t.ID] = t
		order = append(order, t.ID)
	}
	var extra []string
	for _, rr := range rankings {
		for _, e := range rr.Entries {
			if _, ok := known[e.TeamID]; !ok {
				known[e.TeamID] = domain.Team{ID: e.TeamID, Name: e.TeamID}
				extra = append(extra, e.TeamID)
			}
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	rounds := make([]int, len(rankings))
	lookup := make([]map[string]domain.RoundEntry, len(rankings))
	for i, rr := range rankings {
		rounds[i] = rr.Round
		lookup[i] = make(map[string]domain.RoundEntry, len(rr.Entries))
		for _, e := range rr.Entries {
			lookup[i][e.TeamID] = e
		}
	}

	entries := make([]domain.StandingEntry, 0, len(order))
	for _, id := range order {
		team := known[id]
		se := domain.StandingEntry{
			TeamID:   id,
			TeamName: team.Name,
			Members:  team.Members,
			Rounds:   make([]domain.RoundBreakdown, 0, len(rankings)),
		}
		for i, rr := range rankings {
			m := multiplier(rr.Round)
			if err := checkFinite(rr.Round, id, "multiplier", m); err != nil {
				return domain.Standing{}, err
			}
			e, ok := lookup[i][id]
			if !ok {
				se.Rounds = append(se.Rounds, domain.RoundBreakdown{Round: rr.Round, Multiplier: m, Rank: -1})
				continue
			}
			score := round3(e.Score * m)
			se.Rounds = append(se.Rounds, domain.RoundBreakdown{
				Round:      rr.Round,
				Score:      score,
				Correct:    e.Correct,
				Multiplier: m,
				Tiebreak:   e.Tiebreak,
				Rank:       e.Rank,
			})
			se.TotalScore += score
			se.TotalCorrect += e.Correct
			se.TotalTiebreak += e.Tiebreak
		}
		se.TotalScore = round3(se.TotalScore)
		se.TotalTiebreak = round3(se.TotalTiebreak)
		if err := checkFinite(-1, id, "total score", se.TotalScore); err != nil {
			return domain.Standing{}, err
		}
		entries = append(entries, se)
	}

	assignRanks(entries,
		func(e domain.StandingEntry) (string, float64, float64) { return e.TeamID, e.TotalScore, e.TotalTiebreak },
		func(e *domain.StandingEntry, r int) { e.Rank = r })

	return domain.Standing{Rounds: rounds, Entries: entries}, nil
}

// Redact builds the public view: team ids are cut to their first character
// and per-round detail is reduced to ranks.
func Redact(s domain.Standing) domain.RedactedStanding {
	out := domain.RedactedStanding{Rounds: s.Rounds, Entries: make([]domain.RedactedEntry, len(s.Entries))}
	for i, e := range s.Entries {
		ranks := make([]int, len(e.Rounds))
		for j, r := range e.Rounds {
			ranks[j] = r.Rank
		}
		out.Entries[i] = domain.RedactedEntry{
			Team:       firstChar(e.TeamID),
			TeamName:   e.TeamName,
			Score:      e.TotalScore,
			RoundRanks: ranks,
			Rank:       e.Rank,
		}
	}
	return out
}

func firstChar(s string) string {
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

// assignRanks sorts by score, then tiebreak, both descending, and gives
// equal pairs the same rank. The next distinct pair skips the tied places.
func assignRanks[T any](items []T, key func(T) (string, float64, float64), setRank func(*T, int)) {
	sort.SliceStable(items, func(i, j int) bool {
		idI, sI, tI := key(items[i])
		idJ, sJ, tJ := key(items[j])
		if sI != sJ {
			return sI > sJ
		}
		if tI != tJ {
			return tI > tJ
		}
		return idI < idJ
	})

	rank := 0
	for i := range items {
		_, s, t := key(items[i])
		if i == 0 {
			rank = 1
		} else if _, ps, pt := key(items[i-1]); ps != s || pt != t {
			rank = i + 1
		}
		setRank(&items[i], rank)
	}
}
