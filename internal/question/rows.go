package question

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gokatarajesh/trivia-night/internal/feed"
)

var optionColumns = []string{"OptA", "OptB", "OptC", "OptD", "OptE"}

// FromRows maps source rows to definitions in deck order.
func FromRows(rows []feed.Row) ([]Definition, error) {
	out := make([]Definition, 0, len(rows))
	for i, row := range rows {
		d, err := FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("question row %d: %w", i+1, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// FromRow maps a single question row.
func FromRow(row feed.Row) (Definition, error) {
	kind, ok := ParseKind(row.Get("Type"))
	if !ok {
		return nil, fmt.Errorf("unknown question type %q", row.Get("Type"))
	}

	round, err := strconv.Atoi(row.Get("Round"))
	if err != nil {
		return nil, fmt.Errorf("parse round: %w", err)
	}
	num, err := strconv.Atoi(row.Get("Q"))
	if err != nil {
		return nil, fmt.Errorf("parse question number: %w", err)
	}

	h := Header{
		Round:           round,
		Number:          num,
		Category:        row.Get("Category"),
		Subcategory:     row.Get("Subcategory"),
		Prompt:          row.Get("Question"),
		Image:           row.Get("Image"),
		Media:           row.Get("Media"),
		InstantFeedback: flag(row.Get("Instant")),
	}
	timed := flag(row.Get("Timed"))
	answer := row.Get("Answer")

	switch kind {
	case KindMultipleChoice:
		return MultipleChoice{Header: h, Options: options(row), Answer: answer, Timed: timed}, nil
	case KindShortAnswer:
		return ShortAnswer{Header: h, Answer: answer, Timed: timed}, nil
	case KindBuzzer:
		return Buzzer{Header: h, Answer: answer}, nil
	case KindReadyCheck:
		return ReadyCheck{Header: h}, nil
	default:
		return SpecialPrompt{Header: h, URL: h.Prompt}, nil
	}
}

func options(row feed.Row) []string {
	opts := make([]string, 0, len(optionColumns))
	for _, col := range optionColumns {
		opts = append(opts, row.Get(col))
	}
	for len(opts) > 0 && opts[len(opts)-1] == "" {
		opts = opts[:len(opts)-1]
	}
	return opts
}

func flag(v string) bool {
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
