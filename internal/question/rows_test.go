package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-night/internal/feed"
)

func TestFromRowsBuildsEveryKind(t *testing.T) {
	rows := []feed.Row{
		{"Round": "1", "Q": "1", "Type": "MC", "Question": "Pick", "Answer": "B", "OptA": "x", "OptB": "y", "OptC": "z"},
		{"Round": "1", "Q": "2", "Type": "SA", "Answer": "42", "Timed": "TRUE"},
		{"Round": "2", "Q": "1", "Type": "bz", "Answer": "Paris"},
		{"Round": "0", "Q": "0", "Type": "MD"},
		{"Round": "3", "Q": "1", "Type": "SP", "Question": "https://example.com/slide"},
	}

	defs, err := FromRows(rows)
	require.NoError(t, err)
	require.Len(t, defs, 5)

	mc, ok := defs[0].(MultipleChoice)
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y", "z"}, mc.Options)
	assert.Equal(t, "B", AnswerOf(mc))
	assert.False(t, IsTimed(mc))

	sa := defs[1].(ShortAnswer)
	assert.True(t, sa.Timed)
	assert.Equal(t, 2, sa.Info().Number)

	assert.Equal(t, KindBuzzer, defs[2].Kind())
	assert.True(t, IsTimed(defs[2]))
	assert.Equal(t, ReadyToken, AnswerOf(defs[3]))
	assert.Equal(t, "https://example.com/slide", defs[4].(SpecialPrompt).URL)
	assert.Equal(t, "", AnswerOf(defs[4]))
}

func TestFromRowsRejectsBadRows(t *testing.T) {
	_, err := FromRows([]feed.Row{{"Round": "1", "Q": "1", "Type": "XX"}})
	assert.ErrorContains(t, err, "unknown question type")

	_, err = FromRows([]feed.Row{{"Round": "one", "Q": "1", "Type": "SA"}})
	assert.ErrorContains(t, err, "row 1")
}

func TestDeckRefs(t *testing.T) {
	deck := NewDeck(
		ShortAnswer{Header: Header{Round: 1, Number: 1}},
		ShortAnswer{Header: Header{Round: 1, Number: 2}},
	)
	assert.Equal(t, 2, deck.Len())
	assert.Equal(t, []Ref{{Index: 0, Round: 1, Number: 1}, {Index: 1, Round: 1, Number: 2}}, deck.Refs())

	_, ok := deck.At(2)
	assert.False(t, ok)
	_, ok = deck.At(-1)
	assert.False(t, ok)
}
