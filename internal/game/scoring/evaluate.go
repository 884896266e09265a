// Package scoring judges single submissions and computes tiebreak and buzzer payouts.
package scoring

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/gokatarajesh/trivia-night/internal/question"
)

// MaxTextAnswerLength caps canonical text answers; longer answers make a question unanswerable.
const MaxTextAnswerLength = 32

const (
	MsgTooHigh     = "too high"
	MsgTooLow      = "too low"
	MsgNotANumber  = "should be a number"
	MsgWrongAnswer = "wrong answer"
)

// ErrNoQuestion is returned when there is no question to judge against.
var ErrNoQuestion = errors.New("no question to evaluate against")

var mcPattern = regexp.MustCompile(`^[a-e*]{1,5}$`)

// Result is the judgement of one submission.
type Result struct {
	Valid   bool   `json:"valid"`
	Correct bool   `json:"correct"`
	Message string `json:"msg,omitempty"`
}

// Evaluate judges submission against q. It has no side effects.
func Evaluate(submission string, q question.Definition) (Result, error) {
	if q == nil {
		return Result{}, ErrNoQuestion
	}
	sub := normalize(submission)

	switch d := q.(type) {
	case question.ReadyCheck:
		if sub == question.ReadyToken {
			return Result{Valid: true, Correct: true}, nil
		}
		return Result{}, nil

	case question.MultipleChoice:
		if !mcPattern.MatchString(sub) {
			return Result{}, nil
		}
		// Each option may be picked once.
		picked := letterSet(sub)
		if len(picked) != len(sub) {
			return Result{}, nil
		}
		return Result{Valid: true, Correct: picked == letterSet(normalize(d.Answer))}, nil

	case question.ShortAnswer:
		return evaluateText(sub, d.Answer), nil

	case question.Buzzer:
		return evaluateText(sub, d.Answer), nil
	}

	// SpecialPrompt and anything unknown take no answers.
	return Result{}, nil
}

func evaluateText(sub, answer string) Result {
	ans := normalize(answer)
	if utf8.RuneCountInString(ans) > MaxTextAnswerLength {
		return Result{}
	}

	if want, ok := parseNumber(ans); ok {
		got, err := strconv.ParseFloat(sub, 64)
		if err != nil || math.IsNaN(got) || math.IsInf(got, 0) {
			return Result{Valid: true, Message: MsgNotANumber}
		}
		// Hints describe the submission relative to the answer.
		switch {
		case got == want:
			return Result{Valid: true, Correct: true}
		case got > want:
			return Result{Valid: true, Message: MsgTooHigh}
		case got < want:
			return Result{Valid: true, Message: MsgTooLow}
		}
		return Result{Valid: true, Message: MsgWrongAnswer}
	}

	if firstRune(sub) != firstRune(ans) {
		return Result{Valid: true}
	}
	return Result{Valid: true, Correct: fuzzy.LevenshteinDistance(sub, ans) <= Precision(ans)}
}

// Precision is how many typos a text answer tolerates.
func Precision(answer string) int {
	n := utf8.RuneCountInString(answer)
	switch {
	case n < 6:
		return 1
	case n < 12:
		return 2
	}
	return 3
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseNumber only accepts answers already written in canonical numeric form,
// so "007" or "1e3" are judged as text.
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, strconv.FormatFloat(v, 'f', -1, 64) == s
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// letterSet sorts and dedupes option letters so "ba" and "ab" compare equal.
func letterSet(s string) string {
	letters := []rune(s)
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	out := letters[:0]
	for i, r := range letters {
		if i > 0 && r == letters[i-1] {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
