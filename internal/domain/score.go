package domain

import "time"

// ScoreRecord is the persisted score document for one round+question.
// Saving the same round+question again replaces the maps instead of adding a record.
type ScoreRecord struct {
	Round     int                `json:"r" bson:"r"`
	Question  int                `json:"q" bson:"q"`
	Scores    map[string]float64 `json:"d" bson:"d"`
	Tiebreaks map[string]float64 `json:"tb,omitempty" bson:"tb,omitempty"`
	// Weighted marks buzzer questions whose scores are decayed payouts
	// rather than 0/1 correctness.
	Weighted  bool      `json:"w,omitempty" bson:"w,omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
