package bracket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/domain"
	"github.com/gokatarajesh/trivia-night/internal/notify"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

var (
	ErrNoMetadata  = errors.New("unable to find bracket metadata")
	ErrNoMatch     = errors.New("failed to find match")
	ErrNotActive   = errors.New("no bracket round active")
	ErrNotSeeded   = errors.New("team is not seeded")
	ErrRoundBounds = errors.New("bracket round out of range")
	ErrRoundClosed = errors.New("bracket round is not in play")
)

var routedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "trivia",
	Name:      "bracket_messages_total",
	Help:      "Team messages relayed inside bracket matches by result.",
}, []string{"result"})

// Store persists bracket metadata and match records.
// Metadata and FindMatch return nil without error when nothing is stored.
type Store interface {
	ReplaceBracket(ctx context.Context, meta domain.BracketMetadata, matches []domain.MatchRecord) error
	Metadata(ctx context.Context) (*domain.BracketMetadata, error)
	FindMatch(ctx context.Context, round, seed int) (*domain.MatchRecord, error)
	ListMatches(ctx context.Context, round int) ([]domain.MatchRecord, error)
	SaveMatch(ctx context.Context, m domain.MatchRecord) error
}

// Outcome is the result reported back to the host.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"msg"`
	Count   int    `json:"count,omitempty"`
}

func failed(err error) Outcome {
	return Outcome{OK: false, Message: err.Error()}
}

// Opponent describes the other team of a match, or a bye.
type Opponent struct {
	Bye      bool     `json:"bye,omitempty"`
	TeamID   string   `json:"t,omitempty"`
	TeamName string   `json:"tn,omitempty"`
	Members  []string `json:"tm,omitempty"`
	Rank     int      `json:"r,omitempty"`
}

// NewMatchPayload announces a team's matchup for a round.
type NewMatchPayload struct {
	Round    int      `json:"round"`
	Opponent Opponent `json:"opponent"`
}

// ScoreUpdatePayload carries the running match score from one team's side.
type ScoreUpdatePayload struct {
	Round         int     `json:"round"`
	Score         float64 `json:"score"`
	OpponentScore float64 `json:"opponentScore"`
}

// EndMatchPayload tells a team how its match finished.
type EndMatchPayload struct {
	Round         int     `json:"round"`
	Won           bool    `json:"won"`
	Score         float64 `json:"score"`
	OpponentScore float64 `json:"opponentScore"`
	Place         *int    `json:"place,omitempty"`
}

// Router owns the active bracket round and relays traffic between matched teams.
type Router struct {
	store  Store
	notify notify.Notifier
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	active bool
	round  int
}

// NewRouter creates a bracket router.
func NewRouter(store Store, n notify.Notifier, logger zerolog.Logger) *Router {
	return &Router{store: store, notify: n, now: time.Now, logger: logger}
}

// ActiveRound reports the round currently in play.
func (r *Router) ActiveRound() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round, r.active
}

// Init seeds numBrackets brackets from the top of standing and replaces
// whatever bracket set was stored before.
func (r *Router) Init(ctx context.Context, numBrackets int, standing domain.Standing) Outcome {
	forest, err := Generate(numBrackets, false)
	if err != nil {
		return failed(err)
	}

	entries := append([]domain.StandingEntry(nil), standing.Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	if limit := numBrackets * Size; len(entries) > limit {
		entries = entries[:limit]
	}
	seeds := make([]domain.Seed, 0, len(entries))
	for _, e := range entries {
		seeds = append(seeds, domain.Seed{TeamID: e.TeamID, TeamName: e.TeamName, Members: e.Members, Rank: e.Rank})
	}

	meta := domain.BracketMetadata{
		IsMetadata:  true,
		NumBrackets: numBrackets,
		NumRounds:   Rounds,
		Seeds:       seeds,
		CreatedAt:   r.now().UTC(),
	}
	records := Flatten(forest)
	if err := r.store.ReplaceBracket(ctx, meta, records); err != nil {
		r.logger.Error().Err(err).Msg("store bracket failed")
		return failed(err)
	}

	r.mu.Lock()
	r.active = false
	r.mu.Unlock()

	r.logger.Info().Int("brackets", numBrackets).Int("seeds", len(seeds)).Msg("brackets initialized")
	return Outcome{OK: true, Message: fmt.Sprintf("Initialized %d brackets with %d teams", numBrackets, len(seeds)), Count: len(records)}
}

// StartRound activates a round and sends every seeded team its matchup.
func (r *Router) StartRound(ctx context.Context, round int) Outcome {
	meta, err := r.metadata(ctx)
	if err != nil {
		return failed(err)
	}
	if round < 0 || round >= meta.NumRounds {
		return failed(fmt.Errorf("%w: %d", ErrRoundBounds, round))
	}
	matches, err := r.store.ListMatches(ctx, round)
	if err != nil {
		return failed(err)
	}

	r.mu.Lock()
	r.active = true
	r.round = round
	r.mu.Unlock()

	r.notify.Emit(notify.Everyone, ws.TypeConfig, ws.ConfigPayload{Brackets: ws.BracketConfig{Active: true, Round: round}})
	sent := r.BroadcastMatchups(*meta, matches, round)
	r.logger.Info().Int("round", round).Int("sent", sent).Msg("bracket round started")
	return Outcome{OK: true, Message: fmt.Sprintf("Sent %d matchups for round %d", sent, round), Count: sent}
}

// BroadcastMatchups sends each seeded team its opponent, or a bye when the
// other slot is empty or past the seed list. It returns the number of teams notified.
func (r *Router) BroadcastMatchups(meta domain.BracketMetadata, matches []domain.MatchRecord, round int) int {
	sent := 0
	for _, m := range matches {
		for side, seed := range m.Seeds {
			team, ok := meta.TeamAt(seed)
			if !ok {
				continue
			}
			payload := NewMatchPayload{Round: round, Opponent: Opponent{Bye: true}}
			if opp, ok := meta.TeamAt(opponentSeed(m, side)); ok {
				payload.Opponent = Opponent{TeamID: opp.TeamID, TeamName: opp.TeamName, Members: opp.Members, Rank: opp.Rank}
			}
			r.notify.Emit(notify.Team(team.TeamID), ws.TypeBracketsNewMatch, payload)
			sent++
		}
	}
	return sent
}

// Route relays a message from a team to its current opponent. The sender
// gets its own copy with fromTeam set.
func (r *Router) Route(ctx context.Context, teamID string, msg map[string]any) Outcome {
	out := r.route(ctx, teamID, msg)
	if out.OK {
		routedMessages.WithLabelValues("ok").Inc()
	} else {
		routedMessages.WithLabelValues("failed").Inc()
	}
	return out
}

func (r *Router) route(ctx context.Context, teamID string, msg map[string]any) Outcome {
	round, active := r.ActiveRound()
	if !active {
		return failed(ErrNotActive)
	}
	meta, err := r.metadata(ctx)
	if err != nil {
		return failed(err)
	}
	seed := meta.SeedOf(teamID)
	if seed < 0 {
		return failed(ErrNotSeeded)
	}
	match, err := r.store.FindMatch(ctx, round, seed)
	if err != nil {
		return failed(err)
	}
	if match == nil {
		return failed(fmt.Errorf("%w (tid: %s)", ErrNoMatch, teamID))
	}

	r.notify.Emit(notify.Team(teamID), ws.TypeBracketsMsg, withSender(msg, true))
	if opp, ok := meta.TeamAt(opponentSeed(*match, match.Side(seed))); ok {
		r.notify.Emit(notify.Team(opp.TeamID), ws.TypeBracketsMsg, withSender(msg, false))
	}
	return Outcome{OK: true}
}

// ApplyScores adds per-team score deltas to their matches in round.
// When both teams of a match have a delta they are written together.
func (r *Router) ApplyScores(ctx context.Context, round int, deltas map[string]float64) Outcome {
	meta, err := r.metadata(ctx)
	if err != nil {
		return failed(err)
	}
	if active, ok := r.ActiveRound(); !ok || active != round {
		r.logger.Warn().Int("round", round).Int("teams", len(deltas)).Msg("score deltas for a closed bracket round dropped")
		return failed(fmt.Errorf("%w (round %d)", ErrRoundClosed, round))
	}

	teams := make([]string, 0, len(deltas))
	for id := range deltas {
		teams = append(teams, id)
	}
	sort.Strings(teams)

	processed := make(map[string]bool, len(deltas))
	updated, skipped := 0, 0
	for _, teamID := range teams {
		if processed[teamID] {
			continue
		}
		seed := meta.SeedOf(teamID)
		if seed < 0 {
			skipped++
			continue
		}
		match, err := r.store.FindMatch(ctx, round, seed)
		if err != nil {
			return failed(err)
		}
		if match == nil {
			r.logger.Warn().Str("team_id", teamID).Int("round", round).Msg("no bracket match for team")
			skipped++
			continue
		}

		side := match.Side(seed)
		scores := normalizedScores(match.Scores)
		scores[side] += deltas[teamID]
		processed[teamID] = true

		opp, hasOpp := meta.TeamAt(opponentSeed(*match, side))
		if hasOpp {
			if d, ok := deltas[opp.TeamID]; ok && !processed[opp.TeamID] {
				scores[1-side] += d
				processed[opp.TeamID] = true
			}
		}

		match.Scores = scores
		if err := r.store.SaveMatch(ctx, *match); err != nil {
			return failed(err)
		}
		updated++

		r.notify.Emit(notify.Team(teamID), ws.TypeBracketsScore, ScoreUpdatePayload{Round: round, Score: scores[side], OpponentScore: scores[1-side]})
		if hasOpp {
			r.notify.Emit(notify.Team(opp.TeamID), ws.TypeBracketsScore, ScoreUpdatePayload{Round: round, Score: scores[1-side], OpponentScore: scores[side]})
		}
	}

	return Outcome{OK: true, Message: fmt.Sprintf("Updated %d matches, skipped %d teams", updated, skipped), Count: updated}
}

// EndRound closes the active round. Winners and losers are moved into their
// next-round matches and each team is told how its match ended. A tie goes
// to the better seed; a team without an opponent advances as the winner.
func (r *Router) EndRound(ctx context.Context) Outcome {
	round, active := r.ActiveRound()
	if !active {
		return failed(ErrNotActive)
	}
	meta, err := r.metadata(ctx)
	if err != nil {
		return failed(err)
	}
	matches, err := r.store.ListMatches(ctx, round)
	if err != nil {
		return failed(err)
	}

	next := map[[2]int]*domain.MatchRecord{}
	if round+1 < meta.NumRounds {
		upcoming, err := r.store.ListMatches(ctx, round+1)
		if err != nil {
			return failed(err)
		}
		for i := range upcoming {
			m := upcoming[i]
			next[[2]int{m.Bracket, m.Index}] = &m
		}
	}

	finished := 0
	for _, m := range matches {
		win, lose, ok := decide(meta, m)
		if !ok {
			continue
		}
		finished++
		scores := normalizedScores(m.Scores)

		if m.Winner != nil {
			r.advance(next, m, *m.Winner, m.Seeds[win])
		}
		if m.Loser != nil && lose >= 0 {
			r.advance(next, m, *m.Loser, m.Seeds[lose])
		}

		if team, ok := meta.TeamAt(m.Seeds[win]); ok {
			opp := 0.0
			if lose >= 0 {
				opp = scores[lose]
			}
			r.notify.Emit(notify.Team(team.TeamID), ws.TypeBracketsEndMatch, EndMatchPayload{Round: round, Won: true, Score: scores[win], OpponentScore: opp, Place: m.WinnerPlace})
		}
		if lose >= 0 {
			if team, ok := meta.TeamAt(m.Seeds[lose]); ok {
				r.notify.Emit(notify.Team(team.TeamID), ws.TypeBracketsEndMatch, EndMatchPayload{Round: round, Won: false, Score: scores[lose], OpponentScore: scores[win], Place: m.LoserPlace})
			}
		}
	}

	keys := make([][2]int, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, k := range keys {
		if err := r.store.SaveMatch(ctx, *next[k]); err != nil {
			return failed(err)
		}
	}

	r.mu.Lock()
	r.active = false
	r.mu.Unlock()

	r.notify.Emit(notify.Everyone, ws.TypeConfig, ws.ConfigPayload{Brackets: ws.BracketConfig{Active: false, Round: round}})
	r.logger.Info().Int("round", round).Int("finished", finished).Msg("bracket round ended")
	return Outcome{OK: true, Message: fmt.Sprintf("Finished %d matches in round %d", finished, round), Count: finished}
}

// advance places seed into the slot of the next-round match it feeds.
// Matches 2k and 2k+1 of a split feed slots 0 and 1.
func (r *Router) advance(next map[[2]int]*domain.MatchRecord, from domain.MatchRecord, target, seed int) {
	m, ok := next[[2]int{from.Bracket, target}]
	if !ok {
		return
	}
	if len(m.Seeds) < 2 {
		m.Seeds = []int{-1, -1}
	}
	m.Seeds[from.Index%2] = seed
	if len(m.Scores) < 2 {
		m.Scores = []float64{-1, -1}
	}
}

// decide picks winner and loser sides. lose is -1 when the match is a bye.
func decide(meta *domain.BracketMetadata, m domain.MatchRecord) (win, lose int, ok bool) {
	if len(m.Seeds) < 2 {
		return 0, 0, false
	}
	_, has0 := meta.TeamAt(m.Seeds[0])
	_, has1 := meta.TeamAt(m.Seeds[1])
	switch {
	case !has0 && !has1:
		return 0, 0, false
	case !has1:
		return 0, -1, true
	case !has0:
		return 1, -1, true
	}
	scores := normalizedScores(m.Scores)
	switch {
	case scores[0] > scores[1]:
		return 0, 1, true
	case scores[1] > scores[0]:
		return 1, 0, true
	case m.Seeds[0] <= m.Seeds[1]:
		return 0, 1, true
	default:
		return 1, 0, true
	}
}

func (r *Router) metadata(ctx context.Context) (*domain.BracketMetadata, error) {
	meta, err := r.store.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ErrNoMetadata
	}
	return meta, nil
}

func opponentSeed(m domain.MatchRecord, side int) int {
	if side < 0 || len(m.Seeds) < 2 {
		return -1
	}
	return m.Seeds[1-side]
}

// normalizedScores returns a two-slot copy where unplayed (-1) counts as 0.
func normalizedScores(in []float64) []float64 {
	out := []float64{0, 0}
	for i := 0; i < len(in) && i < 2; i++ {
		if in[i] > 0 {
			out[i] = in[i]
		}
	}
	return out
}

func withSender(msg map[string]any, fromTeam bool) map[string]any {
	out := make(map[string]any, len(msg)+1)
	for k, v := range msg {
		out[k] = v
	}
	out["fromTeam"] = fromTeam
	return out
}
