package domain

import "time"

// Seed is a team's bracket-entry slot, usually taken from the overall standing.
type Seed struct {
	TeamID   string   `json:"t" bson:"t"`
	TeamName string   `json:"tn" bson:"tn"`
	Members  []string `json:"tm,omitempty" bson:"tm,omitempty"`
	Rank     int      `json:"r" bson:"r"`
}

// BracketMetadata describes the stored bracket set. Seeds are indexed by seed number.
type BracketMetadata struct {
	IsMetadata  bool      `json:"_md" bson:"_md"`
	NumBrackets int       `json:"numBrackets" bson:"numBrackets"`
	NumRounds   int       `json:"numRounds" bson:"numRounds"`
	Seeds       []Seed    `json:"seeds" bson:"seeds"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// SeedOf returns the seed index of a team or -1.
func (m BracketMetadata) SeedOf(teamID string) int {
	for i, s := range m.Seeds {
		if s.TeamID == teamID {
			return i
		}
	}
	return -1
}

// TeamAt resolves a seed index. Indices past the seed list are byes.
func (m BracketMetadata) TeamAt(seed int) (Seed, bool) {
	if seed < 0 || seed >= len(m.Seeds) {
		return Seed{}, false
	}
	return m.Seeds[seed], true
}

// MatchRecord is the flat, persisted form of one bracket match.
// A match points either at the next matches (Winner/Loser) or at final places
// (WinnerPlace/LoserPlace).
type MatchRecord struct {
	Round       int       `json:"round" bson:"round"`
	Game        int       `json:"game" bson:"game"`
	Bracket     int       `json:"bracket" bson:"bracket"`
	Index       int       `json:"index" bson:"index"`
	Seeds       []int     `json:"seeds,omitempty" bson:"seeds,omitempty"`
	Scores      []float64 `json:"scores,omitempty" bson:"scores,omitempty"`
	Winner      *int      `json:"w,omitempty" bson:"w,omitempty"`
	Loser       *int      `json:"l,omitempty" bson:"l,omitempty"`
	WinnerPlace *int      `json:"wp,omitempty" bson:"wp,omitempty"`
	LoserPlace  *int      `json:"lp,omitempty" bson:"lp,omitempty"`
}

// Side returns which slot of the match a seed occupies, or -1.
func (m MatchRecord) Side(seed int) int {
	for i, s := range m.Seeds {
		if s == seed {
			return i
		}
	}
	return -1
}
