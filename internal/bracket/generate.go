// Package bracket generates 16-seed elimination brackets, flattens them into
// storable match records, and routes traffic between matched teams.
package bracket

import (
	"errors"
	"fmt"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

const (
	// Size is the number of seeds in one bracket.
	Size = 16
	// Rounds is the number of rounds each bracket plays.
	Rounds = 4
	// MatchesPerRound is constant: every team plays every round.
	MatchesPerRound = Size / 2
)

// template lists bracket positions in pairing order: position 2k meets 2k+1.
var template = [Size]int{0, 15, 7, 8, 3, 12, 4, 11, 1, 14, 6, 9, 2, 13, 5, 10}

// ErrBracketCount is returned for a bracket count below one.
var ErrBracketCount = errors.New("bracket count must be at least 1")

// Match is one game of a bracket. Only first-round matches carry seeds and
// scores; later rounds start empty and are filled as results come in.
// Winner/Loser index matches in the next round; WinnerPlace/LoserPlace are
// final places and appear only in the last round.
type Match struct {
	Seeds       []int     `json:"seeds,omitempty"`
	Scores      []float64 `json:"scores,omitempty"`
	Winner      *int      `json:"w,omitempty"`
	Loser       *int      `json:"l,omitempty"`
	WinnerPlace *int      `json:"wp,omitempty"`
	LoserPlace  *int      `json:"lp,omitempty"`
}

// Forest holds every bracket: Forest[bracket][round][match].
type Forest [][][]Match

// seedAt spreads template position pos of a 1-based bracket over total
// brackets so that seed strength interleaves across brackets.
func seedAt(pos, bracket, total int) int {
	base := pos*total + total - 1
	if pos >= Size/2 {
		return base - (bracket - 1)
	}
	return base - (total - bracket)
}

func intp(v int) *int { return &v }

// Generate builds num brackets. With blank set, first-round matches omit
// seeds and scores.
func Generate(num int, blank bool) (Forest, error) {
	if num < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBracketCount, num)
	}

	forest := make(Forest, num)
	for b := range forest {
		rounds := make([][]Match, Rounds)

		first := make([]Match, 0, MatchesPerRound)
		for pos := 0; pos < Size; pos += 2 {
			next := pos / 4
			m := Match{
				Winner: intp(next),
				Loser:  intp(next + Size/4),
			}
			if !blank {
				m.Seeds = []int{seedAt(template[pos], b+1, num), seedAt(template[pos+1], b+1, num)}
				m.Scores = []float64{-1, -1}
			}
			first = append(first, m)
		}
		rounds[0] = first

		for r := 1; r < Rounds; r++ {
			perSplit := MatchesPerRound >> r
			games := make([]Match, 0, MatchesPerRound)
			for g := 0; g < MatchesPerRound; g++ {
				m := Match{Seeds: []int{-1, -1}}
				if perSplit != 1 {
					base := perSplit * (g / perSplit)
					mod := (g % perSplit) / 2
					m.Winner = intp(base + mod)
					m.Loser = intp(base + mod + perSplit/2)
				} else {
					m.WinnerPlace = intp(g * 2)
					m.LoserPlace = intp(g*2 + 1)
				}
				games = append(games, m)
			}
			rounds[r] = games
		}
		forest[b] = rounds
	}
	return forest, nil
}

// Flatten lists every match as a record. Game numbers run across all
// brackets and rounds in iteration order.
func Flatten(forest Forest) []domain.MatchRecord {
	var out []domain.MatchRecord
	game := 0
	for b, rounds := range forest {
		for r, matches := range rounds {
			for i, m := range matches {
				out = append(out, domain.MatchRecord{
					Round:       r,
					Game:        game,
					Bracket:     b,
					Index:       i,
					Seeds:       cloneInts(m.Seeds),
					Scores:      cloneFloats(m.Scores),
					Winner:      m.Winner,
					Loser:       m.Loser,
					WinnerPlace: m.WinnerPlace,
					LoserPlace:  m.LoserPlace,
				})
				game++
			}
		}
	}
	return out
}

// Rebuild reconstructs num brackets from stored records. Each record
// replaces the generated match at its bracket/round/index position.
func Rebuild(num int, records []domain.MatchRecord) (Forest, error) {
	forest, err := Generate(num, false)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Bracket < 0 || rec.Bracket >= len(forest) ||
			rec.Round < 0 || rec.Round >= Rounds ||
			rec.Index < 0 || rec.Index >= MatchesPerRound {
			return nil, fmt.Errorf("match record out of range: bracket %d round %d index %d", rec.Bracket, rec.Round, rec.Index)
		}
		forest[rec.Bracket][rec.Round][rec.Index] = Match{
			Seeds:       cloneInts(rec.Seeds),
			Scores:      cloneFloats(rec.Scores),
			Winner:      rec.Winner,
			Loser:       rec.Loser,
			WinnerPlace: rec.WinnerPlace,
			LoserPlace:  rec.LoserPlace,
		}
	}
	return forest, nil
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int(nil), in...)
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	return append([]float64(nil), in...)
}
