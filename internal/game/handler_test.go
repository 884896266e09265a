package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-night/internal/auth/jwt"
	"github.com/gokatarajesh/trivia-night/internal/bracket"
	"github.com/gokatarajesh/trivia-night/internal/db/memory"
	"github.com/gokatarajesh/trivia-night/internal/domain"
	"github.com/gokatarajesh/trivia-night/internal/notify"
	"github.com/gokatarajesh/trivia-night/internal/ranking"
	"github.com/gokatarajesh/trivia-night/internal/roster"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

type tokenTable map[string]*jwt.Claims

func (tt tokenTable) ValidateToken(token string) (*jwt.Claims, error) {
	c, ok := tt[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return c, nil
}

type fakeStandings struct {
	mu       sync.Mutex
	standing domain.Standing
	err      error
}

func (f *fakeStandings) ComputeOverall(context.Context, []int) (domain.Standing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.standing, f.err
}

func (f *fakeStandings) Publish(context.Context) (domain.PublishedStanding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.PublishedStanding{}, f.err
	}
	return domain.PublishedStanding{Timestamp: time.Now().UTC(), Full: f.standing}, nil
}

func (f *fakeStandings) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type wsHarness struct {
	server    *httptest.Server
	engine    *Engine
	standings *fakeStandings
}

func newWSHarness(t *testing.T, opts HandlerOptions) *wsHarness {
	t.Helper()
	logger := zerolog.Nop()
	hub := ws.NewHub(logger)
	n := notify.NewHubNotifier(hub, logger)
	store := memory.New()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := NewPersister(16, time.Second, ReportFailures(n), logger)
	router := bracket.NewRouter(store, n, logger)
	engine := NewEngine(testDeck(), n, store, router, p, Options{TimerUnit: time.Hour, CountedRounds: []int{1, 2}}, logger)
	go p.Run(ctx)
	go engine.Run(ctx)

	teams := roster.New(domain.Team{ID: "T1", Name: "Quizzly Bears"})
	tokens := tokenTable{
		"host": {Role: jwt.RoleHost},
		"t1":   {Role: jwt.RoleTeam, TeamID: "T1", TeamName: "stale name"},
	}
	standings := &fakeStandings{standing: domain.Standing{Rounds: []int{1}, Entries: []domain.StandingEntry{{TeamID: "T1", TeamName: "Quizzly Bears", Rank: 1}}}}

	h := NewHandler(engine, hub, n, tokens, teams, standings, router, opts, websocket.Upgrader{}, logger)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return &wsHarness{server: srv, engine: engine, standings: standings}
}

func (w *wsHarness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(w.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	// config arrives once the hub has registered the connection.
	expect(t, conn, ws.TypeConfig)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg, err := ws.NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads until a message of msgType arrives.
func expect(t *testing.T, conn *websocket.Conn, msgType string) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
}

func decodeAs[T any](t *testing.T, msg ws.Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

func TestHandleWebSocketRejectsBadToken(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})

	resp, err := http.Get(w.server.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(w.server.URL + "/ws?token=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTeamCannotSendHostCommands(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	team := w.dial(t, "t1")

	send(t, team, ws.TypeLoadQuestion, ws.LoadQuestionPayload{Index: qMC})
	errMsg := decodeAs[ws.ErrorPayload](t, expect(t, team, ws.TypeError))
	assert.Equal(t, "forbidden", errMsg.Code)

	snap, err := w.engine.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, snap.Index)
}

func TestSetNameIsCapturedOnce(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	host := w.dial(t, "host")
	team := w.dial(t, "t1")

	send(t, team, ws.TypeSetName, ws.SetNamePayload{Name: "Les Quizérables"})
	set := decodeAs[ws.UpdatePayload](t, expect(t, team, ws.TypeUpdate))
	assert.True(t, set.OK)
	assert.Equal(t, ws.TypeSetName, set.Type)
	seen := decodeAs[ws.UpdatePayload](t, expect(t, host, ws.TypeUpdate))
	assert.Equal(t, "T1 is now Les Quizérables", seen.Message)

	send(t, team, ws.TypeSetName, ws.SetNamePayload{Name: "Another Name"})
	again := decodeAs[ws.UpdatePayload](t, expect(t, team, ws.TypeUpdate))
	assert.False(t, again.OK)
	assert.Contains(t, again.Message, "already set")

	send(t, host, ws.TypeSetName, ws.SetNamePayload{Name: "Host"})
	denied := decodeAs[ws.ErrorPayload](t, expect(t, host, ws.TypeError))
	assert.Equal(t, "forbidden", denied.Code)

	send(t, host, ws.TypeLoadQuestion, ws.LoadQuestionPayload{Index: qMC})
	expect(t, team, ws.TypeQuestion)
	send(t, team, ws.TypeAnswer, ws.AnswerPayload{Answer: "b"})
	ack := decodeAs[Ack](t, expect(t, team, ws.TypeAnswerAck))
	assert.Equal(t, "Les Quizérables", ack.Sender)
}

func TestQuestionFlowOverWebSocket(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	host := w.dial(t, "host")
	team := w.dial(t, "t1")

	send(t, host, ws.TypeLoadQuestion, ws.LoadQuestionPayload{Index: qMC})
	full := decodeAs[FullQuestion](t, expect(t, host, ws.TypeQuestionFull))
	assert.Equal(t, "b", full.Answer)
	pub := decodeAs[PublicQuestion](t, expect(t, team, ws.TypeQuestion))
	assert.True(t, pub.Active)

	send(t, team, ws.TypeAnswer, ws.AnswerPayload{Answer: "B"})
	ack := decodeAs[Ack](t, expect(t, team, ws.TypeAnswerAck))
	assert.True(t, ack.OK)
	assert.Equal(t, "b", ack.Selected)
	assert.Equal(t, "Quizzly Bears", ack.Sender)

	update := decodeAs[AnswerUpdatePayload](t, expect(t, host, ws.TypeAnswerUpdate))
	assert.Equal(t, "T1", update.Team)
	assert.True(t, update.Correct)

	send(t, team, ws.TypeStatus, nil)
	status := decodeAs[PublicQuestion](t, expect(t, team, ws.TypeQuestion))
	assert.Equal(t, 1, status.Round)

	send(t, host, ws.TypeShowAnswer, ws.ShowAnswerPayload{Save: true})
	reveal := decodeAs[AnswerRevealPayload](t, expect(t, team, ws.TypeAnswerReveal))
	assert.Equal(t, "b", reveal.Answer)
	stats := decodeAs[AnswerStats](t, expect(t, host, ws.TypeAnswerStats))
	assert.Equal(t, 1, stats.Correct)

	send(t, team, ws.TypeAnswer, ws.AnswerPayload{Answer: "c"})
	rejected := decodeAs[Ack](t, expect(t, team, ws.TypeAnswerAck))
	assert.False(t, rejected.OK)
	assert.Equal(t, "Question not active", rejected.Message)
}

func TestAnswerRateLimit(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{AnswerRate: 0.001, AnswerBurst: 1})
	host := w.dial(t, "host")
	team := w.dial(t, "t1")

	send(t, host, ws.TypeLoadQuestion, ws.LoadQuestionPayload{Index: qMC})
	expect(t, team, ws.TypeQuestion)

	send(t, team, ws.TypeAnswer, ws.AnswerPayload{Answer: "a"})
	assert.True(t, decodeAs[Ack](t, expect(t, team, ws.TypeAnswerAck)).OK)

	send(t, team, ws.TypeAnswer, ws.AnswerPayload{Answer: "b"})
	limited := decodeAs[Ack](t, expect(t, team, ws.TypeAnswerAck))
	assert.False(t, limited.OK)
	assert.Contains(t, limited.Message, "slow down")
}

func TestScoresComputeErrorReachesEveryHost(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	w.standings.fail(&ranking.ComputationError{Round: 1, Team: "T1", Reason: "score is NaN"})
	host := w.dial(t, "host")
	other := w.dial(t, "host")

	send(t, host, ws.TypeScoresCompute, ws.ScoresComputePayload{Rounds: []int{1}})

	seen := map[string]ws.UpdatePayload{}
	require.NoError(t, host.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(seen) < 2 {
		var msg ws.Message
		require.NoError(t, host.ReadJSON(&msg))
		if msg.Type == ws.TypeQuestionError || msg.Type == ws.TypeUpdate {
			seen[msg.Type] = decodeAs[ws.UpdatePayload](t, msg)
		}
	}
	assert.False(t, seen[ws.TypeUpdate].OK)
	assert.Equal(t, ws.TypeScoresCompute, seen[ws.TypeQuestionError].Type)
	assert.Contains(t, seen[ws.TypeQuestionError].Message, "score is NaN")

	broadcast := decodeAs[ws.UpdatePayload](t, expect(t, other, ws.TypeQuestionError))
	assert.Equal(t, ws.TypeScoresCompute, broadcast.Type)
	assert.False(t, broadcast.OK)
}

func TestScoresComputeStorageErrorStaysWithRequester(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	w.standings.fail(errors.New("connection reset"))
	host := w.dial(t, "host")

	send(t, host, ws.TypeScoresCompute, ws.ScoresComputePayload{Rounds: []int{1}})
	update := decodeAs[ws.UpdatePayload](t, expect(t, host, ws.TypeUpdate))
	assert.False(t, update.OK)
	assert.Equal(t, ws.TypeScoresCompute, update.Type)

	send(t, host, ws.TypePing, nil)
	require.NoError(t, host.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, host.ReadJSON(&msg))
		require.NotEqual(t, ws.TypeQuestionError, msg.Type)
		if msg.Type == ws.TypePong {
			break
		}
	}
}

func TestHostUtilityCommands(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	host := w.dial(t, "host")

	send(t, host, ws.TypePing, nil)
	expect(t, host, ws.TypePong)

	send(t, host, ws.TypeQuestionList, nil)
	refs := decodeAs[[]map[string]int](t, expect(t, host, ws.TypeQuestionList))
	require.Len(t, refs, 7)
	assert.Equal(t, 2, refs[qBuzzer]["r"])

	send(t, host, ws.TypeScoresCompute, ws.ScoresComputePayload{Rounds: []int{1}})
	standing := decodeAs[domain.Standing](t, expect(t, host, ws.TypeScoresHost))
	assert.Equal(t, "T1", standing.Entries[0].TeamID)

	send(t, host, ws.TypeScoresPublish, nil)
	published := decodeAs[ws.UpdatePayload](t, expect(t, host, ws.TypeUpdate))
	assert.True(t, published.OK)
	assert.Equal(t, ws.TypeScoresPublish, published.Type)

	send(t, host, "launch-rockets", nil)
	errMsg := decodeAs[ws.ErrorPayload](t, expect(t, host, ws.TypeError))
	assert.Equal(t, "unknown_message_type", errMsg.Code)

	send(t, host, ws.TypeStatus, nil)
	noQuestion := decodeAs[ws.ErrorPayload](t, expect(t, host, ws.TypeError))
	assert.Equal(t, "no_question", noQuestion.Code)
}

func TestBracketMessageWithoutActiveRound(t *testing.T) {
	w := newWSHarness(t, HandlerOptions{})
	team := w.dial(t, "t1")

	send(t, team, ws.TypeBracketsMsg, map[string]any{"hello": "there"})
	update := decodeAs[ws.UpdatePayload](t, expect(t, team, ws.TypeUpdate))
	assert.False(t, update.OK)
	assert.Equal(t, ws.TypeBracketsMsg, update.Type)
}
