package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-night/internal/bracket"
	"github.com/gokatarajesh/trivia-night/internal/db/memory"
	"github.com/gokatarajesh/trivia-night/internal/domain"
	"github.com/gokatarajesh/trivia-night/internal/notify"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

func standingOf16() domain.Standing {
	var s domain.Standing
	for i := 0; i < 16; i++ {
		s.Entries = append(s.Entries, domain.StandingEntry{TeamID: fmt.Sprintf("T%02d", i), Rank: i + 1})
	}
	return s
}

func TestEndRoundWaitsForQueuedScoreDeltas(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.New()
	events := &notify.Recorder{}
	router := bracket.NewRouter(store, events, zerolog.Nop())
	require.True(t, router.Init(ctx, 1, standingOf16()).OK)
	require.True(t, router.StartRound(ctx, 0).OK)

	p := NewPersister(16, time.Second, nil, zerolog.Nop())
	clock := newFakeClock()
	e := NewEngine(testDeck(), events, store, router, p, Options{Now: clock.Now, TimerUnit: time.Hour, CountedRounds: []int{1}}, zerolog.Nop())
	go p.Run(ctx)
	go e.Run(ctx)

	release := make(chan struct{})
	p.Submit(JobScores, 0, 0, func(context.Context) error {
		<-release
		return nil
	})

	require.NoError(t, e.LoadQuestion(ctx, qMC))
	ack, err := e.SubmitAnswer(ctx, domain.Team{ID: "T15", Name: "Fifteen"}, "b")
	require.NoError(t, err)
	require.Equal(t, 1.0, ack.Points)

	ended := make(chan bracket.Outcome, 1)
	go func() { ended <- e.RunBracket(ctx, router.EndRound) }()

	select {
	case <-ended:
		t.Fatal("round ended ahead of a queued score delta")
	case <-time.After(50 * time.Millisecond):
	}
	_, active := router.ActiveRound()
	assert.True(t, active)

	close(release)
	var out bracket.Outcome
	select {
	case out = <-ended:
	case <-time.After(time.Second):
		t.Fatal("end round never ran")
	}
	require.True(t, out.OK, out.Message)

	played, err := store.ListMatches(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 15}, played[0].Seeds)
	assert.Equal(t, []float64{0, 1}, played[0].Scores)

	next, err := store.ListMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 15, next[0].Seeds[0])

	var won []notify.Event
	for _, ev := range events.Named(ws.TypeBracketsEndMatch) {
		if ev.To == notify.Team("T15") {
			won = append(won, ev)
		}
	}
	require.Len(t, won, 1)
	assert.True(t, won[0].Payload.(bracket.EndMatchPayload).Won)
}

func TestScoreDeltaAfterEndRoundIsDropped(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	router := bracket.NewRouter(store, &notify.Recorder{}, zerolog.Nop())
	require.True(t, router.Init(ctx, 1, standingOf16()).OK)
	require.True(t, router.StartRound(ctx, 0).OK)
	require.True(t, router.EndRound(ctx).OK)

	out := router.ApplyScores(ctx, 0, map[string]float64{"T15": 1})
	assert.False(t, out.OK)
	assert.Contains(t, out.Message, "not in play")

	played, err := store.ListMatches(ctx, 0)
	require.NoError(t, err)
	assert.NotEqual(t, []float64{0, 1}, played[0].Scores)
}
