package game

import (
	"math"
	"strings"
	"time"

	"github.com/gokatarajesh/trivia-night/internal/question"
)

// questionState is the live state of the loaded question. It is only touched
// from the engine loop.
type questionState struct {
	question              question.Definition
	index                 int
	active                bool
	startedAt             time.Time
	canChangeAnswer       bool
	scores                map[string]float64
	tiebreaks             map[string]float64
	selections            map[string]string
	numAnswered           int
	scoresSaved           bool
	firstCorrectAnnounced bool
}

func newQuestionState(index int, q question.Definition, now time.Time) *questionState {
	return &questionState{
		question:        q,
		index:           index,
		active:          true,
		startedAt:       now,
		canChangeAnswer: q.Kind() != question.KindBuzzer,
		scores:          make(map[string]float64),
		tiebreaks:       make(map[string]float64),
		selections:      make(map[string]string),
	}
}

// Snapshot is a copy of the loaded question state.
type Snapshot struct {
	Index                 int                `json:"index"`
	Kind                  question.Kind      `json:"type,omitempty"`
	Round                 int                `json:"round"`
	Number                int                `json:"num"`
	Active                bool               `json:"active"`
	StartedAt             time.Time          `json:"startedAt"`
	CanChangeAnswer       bool               `json:"canChangeAnswer"`
	Scores                map[string]float64 `json:"scores"`
	Tiebreaks             map[string]float64 `json:"tiebreaks"`
	Selections            map[string]string  `json:"selections"`
	NumAnswered           int                `json:"numAnswered"`
	ScoresSaved           bool               `json:"scoresSaved"`
	FirstCorrectAnnounced bool               `json:"firstCorrectAnnounced"`
	TimerRunning          bool               `json:"timerRunning"`
}

func (s *questionState) snapshot() Snapshot {
	if s == nil {
		return Snapshot{Index: -1}
	}
	info := s.question.Info()
	return Snapshot{
		Index:                 s.index,
		Kind:                  s.question.Kind(),
		Round:                 info.Round,
		Number:                info.Number,
		Active:                s.active,
		StartedAt:             s.startedAt,
		CanChangeAnswer:       s.canChangeAnswer,
		Scores:                copyFloats(s.scores),
		Tiebreaks:             copyFloats(s.tiebreaks),
		Selections:            copyStrings(s.selections),
		NumAnswered:           s.numAnswered,
		ScoresSaved:           s.scoresSaved,
		FirstCorrectAnnounced: s.firstCorrectAnnounced,
	}
}

// AnswerStats summarizes submissions for hosts when the answer is revealed.
// Options holds the share of teams that picked each letter of a
// multiple-choice question.
type AnswerStats struct {
	Kind        question.Kind      `json:"type"`
	Answer      string             `json:"ans"`
	Correct     int                `json:"correct"`
	Total       int                `json:"total"`
	Options     map[string]float64 `json:"options,omitempty"`
	ScoresSaved bool               `json:"scoresSaved"`
}

func (s *questionState) stats() AnswerStats {
	st := AnswerStats{
		Kind:        s.question.Kind(),
		Answer:      question.AnswerOf(s.question),
		Total:       len(s.scores),
		ScoresSaved: s.scoresSaved,
	}
	for _, v := range s.scores {
		if v > 0 {
			st.Correct++
		}
	}

	if mc, ok := s.question.(question.MultipleChoice); ok {
		st.Options = make(map[string]float64, len(mc.Options))
		total := len(s.selections)
		for i := range mc.Options {
			letter := string(rune('a' + i))
			if total == 0 {
				st.Options[letter] = 0
				continue
			}
			picked := 0
			for _, sel := range s.selections {
				if strings.Contains(sel, letter) {
					picked++
				}
			}
			st.Options[letter] = math.Round(float64(picked)/float64(total)*1000) / 1000
		}
	}
	return st
}

// PublicQuestion is what contestants see when a question loads.
type PublicQuestion struct {
	Kind     question.Kind `json:"type"`
	Active   bool          `json:"active"`
	Round    int           `json:"round"`
	Number   int           `json:"num"`
	Options  []string      `json:"options,omitempty"`
	URL      string        `json:"url,omitempty"`
	Timed    bool          `json:"timed"`
	Category string        `json:"category,omitempty"`
}

// FullQuestion is the host view, including the answer.
type FullQuestion struct {
	PublicQuestion
	Index       int    `json:"index"`
	Prompt      string `json:"question,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Image       string `json:"image,omitempty"`
	Media       string `json:"media,omitempty"`
	Answer      string `json:"answer,omitempty"`
	Instant     bool   `json:"instant,omitempty"`
	ScoresSaved bool   `json:"scoresSaved"`
}

func (s *questionState) publicView() PublicQuestion {
	info := s.question.Info()
	v := PublicQuestion{
		Kind:     s.question.Kind(),
		Active:   s.active,
		Round:    info.Round,
		Number:   info.Number,
		Timed:    question.IsTimed(s.question),
		Category: info.Category,
	}
	switch q := s.question.(type) {
	case question.MultipleChoice:
		v.Options = append([]string(nil), q.Options...)
	case question.SpecialPrompt:
		v.URL = q.URL
	}
	return v
}

func (s *questionState) fullView() FullQuestion {
	info := s.question.Info()
	return FullQuestion{
		PublicQuestion: s.publicView(),
		Index:          s.index,
		Prompt:         info.Prompt,
		Subcategory:    info.Subcategory,
		Image:          info.Image,
		Media:          info.Media,
		Answer:         question.AnswerOf(s.question),
		Instant:        info.InstantFeedback,
		ScoresSaved:    s.scoresSaved,
	}
}

func copyFloats(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
