package postgres

import "time"

// Score is a row of scores. Scores and Tiebreaks hold JSON objects keyed by team id.
type Score struct {
	Round     int32
	Question  int32
	Scores    []byte
	Tiebreaks []byte
	Weighted  bool
	UpdatedAt time.Time
}

// Standing is a row of standings.
type Standing struct {
	ID          int64
	PublishedAt time.Time
	FullView    []byte
	PublicView  []byte
}

// BracketMeta is the single row of bracket_meta.
type BracketMeta struct {
	NumBrackets int32
	NumRounds   int32
	Seeds       []byte
	CreatedAt   time.Time
}

// BracketMatch is a row of bracket_matches.
type BracketMatch struct {
	Bracket     int32
	Round       int32
	Idx         int32
	Game        int32
	Seeds       []int32
	Scores      []float64
	Winner      *int32
	Loser       *int32
	WinnerPlace *int32
	LoserPlace  *int32
}
