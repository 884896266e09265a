package scoring

import (
	"math"
	"time"
)

const (
	MaxTiebreak     = 10.0
	MinBuzzerPayout = 0.25
)

// Tiebreak rewards fast correct answers. Answers around 3s earn 10.0 and the
// value decays toward 0 as elapsed time grows, e.g. 9.5s ≈ 8, 15.4s ≈ 5, 26.7s ≈ 1.
func Tiebreak(elapsed time.Duration) float64 {
	t := float64(elapsed.Milliseconds())
	exp := (t / 16000) * (t - 3000) / 1000
	v := math.Round(10000/math.Pow(1.06, exp)) / 1000
	switch {
	case v > MaxTiebreak:
		return MaxTiebreak
	case v < 0:
		return 0
	}
	return v
}

// BuzzerPayout is the decayed weight for the rank-th correct buzzer answer (0-based).
func BuzzerPayout(rank int) float64 {
	if rank < 0 {
		rank = 0
	}
	v := math.Round(100*(1-0.065*math.Pow(float64(rank), 0.8))) / 100
	return math.Max(v, MinBuzzerPayout)
}
