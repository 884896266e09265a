package domain

import "time"

// RoundEntry is one team's result inside a single round.
type RoundEntry struct {
	TeamID   string  `json:"t"`
	Score    float64 `json:"s"`
	Correct  int     `json:"c"`
	Tiebreak float64 `json:"tb"`
	Rank     int     `json:"r"`
}

// RoundRanking is derived on demand from the score records of a round.
type RoundRanking struct {
	Round   int          `json:"round"`
	Entries []RoundEntry `json:"ranks"`
}

// RoundBreakdown is a team's contribution from one counted round.
// Rank is -1 when the team has no record for the round.
type RoundBreakdown struct {
	Round      int     `json:"round"`
	Score      float64 `json:"s"`
	Correct    int     `json:"c"`
	Multiplier float64 `json:"m"`
	Tiebreak   float64 `json:"tb"`
	Rank       int     `json:"r"`
}

// StandingEntry is one row of the overall standing.
type StandingEntry struct {
	TeamID        string           `json:"t"`
	TeamName      string           `json:"tn"`
	Members       []string         `json:"tm,omitempty"`
	TotalScore    float64          `json:"s"`
	TotalCorrect  int              `json:"c"`
	TotalTiebreak float64          `json:"tb"`
	Rounds        []RoundBreakdown `json:"i"`
	Rank          int              `json:"r"`
}

// Standing is the weighted overall result across counted rounds.
type Standing struct {
	Rounds  []int           `json:"rounds"`
	Entries []StandingEntry `json:"data"`
}

// RedactedEntry is the public view of a standing row.
type RedactedEntry struct {
	Team       string  `json:"t"`
	TeamName   string  `json:"tn"`
	Score      float64 `json:"s"`
	RoundRanks []int   `json:"i"`
	Rank       int     `json:"r"`
	Highlight  bool    `json:"hl,omitempty"`
}

// RedactedStanding omits team ids, rosters and per-round scores.
type RedactedStanding struct {
	Rounds  []int           `json:"rounds"`
	Entries []RedactedEntry `json:"data"`
}

// PublishedStanding is the timestamped snapshot exposed to read-only consumers.
type PublishedStanding struct {
	Timestamp time.Time        `json:"ts" bson:"ts"`
	Full      Standing         `json:"scores" bson:"scores"`
	Redacted  RedactedStanding `json:"scores_clean" bson:"scores_clean"`
}
