package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gokatarajesh/trivia-night/internal/auth/jwt"
	"github.com/gokatarajesh/trivia-night/internal/bracket"
	"github.com/gokatarajesh/trivia-night/internal/domain"
	"github.com/gokatarajesh/trivia-night/internal/notify"
	"github.com/gokatarajesh/trivia-night/internal/ranking"
	httperrors "github.com/gokatarajesh/trivia-night/pkg/http/errors"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// Standings computes and publishes the overall standing.
type Standings interface {
	ComputeOverall(ctx context.Context, rounds []int) (domain.Standing, error)
	Publish(ctx context.Context) (domain.PublishedStanding, error)
}

// Brackets runs the tournament rounds.
type Brackets interface {
	ActiveRound() (int, bool)
	Init(ctx context.Context, numBrackets int, standing domain.Standing) bracket.Outcome
	StartRound(ctx context.Context, round int) bracket.Outcome
	EndRound(ctx context.Context) bracket.Outcome
	Route(ctx context.Context, teamID string, msg map[string]any) bracket.Outcome
}

// TokenValidator turns a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// TeamLookup resolves a team id against the current roster and records
// self-reported display names.
type TeamLookup interface {
	ByID(id string) (domain.Team, bool)
	ClaimName(id, name string) (domain.Team, error)
}

// HandlerOptions tunes per-connection limits.
type HandlerOptions struct {
	// AnswerRate is the sustained number of team messages per second.
	AnswerRate float64
	// AnswerBurst is how many team messages may arrive back to back.
	AnswerBurst int
	// CommandTimeout bounds each command handled for a connection.
	CommandTimeout time.Duration
}

func (o HandlerOptions) withDefaults() HandlerOptions {
	if o.AnswerRate <= 0 {
		o.AnswerRate = 2
	}
	if o.AnswerBurst <= 0 {
		o.AnswerBurst = 5
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 10 * time.Second
	}
	return o
}

// hostCommands may only be sent by host sessions.
var hostCommands = map[string]bool{
	ws.TypeLoadQuestion:      true,
	ws.TypeNextQuestion:      true,
	ws.TypeQuestionList:      true,
	ws.TypeStartTimer:        true,
	ws.TypeStopTimer:         true,
	ws.TypeShowAnswer:        true,
	ws.TypeScoresSave:        true,
	ws.TypeScoresCompute:     true,
	ws.TypeScoresPublish:     true,
	ws.TypeInitBrackets:      true,
	ws.TypeStartBracketRound: true,
	ws.TypeEndBracketRound:   true,
}

// session is one authenticated connection.
type session struct {
	id      uuid.UUID
	claims  *jwt.Claims
	team    domain.Team
	limiter *rate.Limiter
}

func (s *session) isHost() bool {
	return s.claims.IsHost()
}

// Handler manages WebSocket connections and routes competition messages.
type Handler struct {
	engine    *Engine
	hub       *ws.Hub
	notify    notify.Notifier
	tokens    TokenValidator
	teams     TeamLookup
	standings Standings
	brackets  Brackets
	opts      HandlerOptions
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

// NewHandler creates the competition WebSocket handler.
func NewHandler(engine *Engine, hub *ws.Hub, n notify.Notifier, tokens TokenValidator, teams TeamLookup, standings Standings, brackets Brackets, opts HandlerOptions, upgrader websocket.Upgrader, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		hub:       hub,
		notify:    n,
		tokens:    tokens,
		teams:     teams,
		standings: standings,
		brackets:  brackets,
		opts:      opts.withDefaults(),
		upgrader:  upgrader,
		logger:    logger.With().Str("component", "game_ws").Logger(),
	}
}

func (h *Handler) newSession(claims *jwt.Claims) *session {
	s := &session{
		id:      uuid.New(),
		claims:  claims,
		limiter: rate.NewLimiter(rate.Limit(h.opts.AnswerRate), h.opts.AnswerBurst),
	}
	if !claims.IsHost() {
		s.team = domain.Team{ID: claims.TeamID, Name: claims.TeamName}
		if h.teams != nil {
			if t, ok := h.teams.ByID(claims.TeamID); ok {
				s.team = t
			}
		}
	}
	return s
}

func (h *Handler) groupsFor(s *session) []string {
	if s.isHost() {
		return []string{notify.GroupUsers, notify.GroupHosts}
	}
	return []string{notify.GroupUsers, notify.TeamGroup(s.team.ID)}
}

// HandleConnection serves an upgraded connection until the peer goes away.
func (h *Handler) HandleConnection(conn *websocket.Conn, claims *jwt.Claims) {
	s := h.newSession(claims)
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(s.id, wsConn, h.groupsFor(s)...)

	log := h.logger.With().Str("conn_id", s.id.String()).Str("role", claims.Role).Str("team_id", s.team.ID).Logger()
	log.Info().Msg("client connected")

	go wsConn.WritePump()

	h.sendConfig(s)

	wsConn.ReadPump(func(msg ws.Message) error {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.CommandTimeout)
		defer cancel()
		return h.handleMessage(ctx, s, msg)
	})

	h.hub.UnregisterConnection(s.id)
	log.Info().Msg("client disconnected")
}

// handleMessage routes incoming WebSocket messages.
func (h *Handler) handleMessage(ctx context.Context, s *session, msg ws.Message) error {
	if hostCommands[msg.Type] && !s.isHost() {
		return h.sendError(s, httperrors.ErrCodeForbidden, fmt.Sprintf("%s requires host access", msg.Type))
	}

	switch msg.Type {
	case ws.TypeLoadQuestion:
		return h.handleLoadQuestion(ctx, s, msg.Payload)
	case ws.TypeNextQuestion:
		return h.replyUpdate(s, msg.Type, h.engine.NextQuestion(ctx), "")
	case ws.TypeQuestionList:
		return h.send(s, ws.TypeQuestionList, h.engine.QuestionList())
	case ws.TypeStartTimer:
		return h.handleStartTimer(ctx, s, msg.Payload)
	case ws.TypeStopTimer:
		return h.replyUpdate(s, msg.Type, h.engine.StopTimer(ctx), "")
	case ws.TypeShowAnswer:
		return h.handleShowAnswer(ctx, s, msg.Payload)
	case ws.TypeScoresSave:
		_, err := h.engine.SaveScores(ctx)
		return h.replyUpdate(s, msg.Type, err, "")
	case ws.TypeScoresCompute:
		return h.handleScoresCompute(ctx, s, msg.Payload)
	case ws.TypeScoresPublish:
		return h.handleScoresPublish(ctx, s)
	case ws.TypeInitBrackets:
		return h.handleInitBrackets(ctx, s, msg.Payload)
	case ws.TypeStartBracketRound:
		return h.handleStartBracketRound(ctx, s, msg.Payload)
	case ws.TypeEndBracketRound:
		return h.replyOutcome(s, msg.Type, h.engine.RunBracket(ctx, h.brackets.EndRound))
	case ws.TypeAnswer:
		return h.handleAnswer(ctx, s, msg.Payload)
	case ws.TypeBracketsMsg:
		return h.handleBracketsMsg(ctx, s, msg.Payload)
	case ws.TypeSetName:
		return h.handleSetName(s, msg.Payload)
	case ws.TypeStatus:
		return h.handleStatus(ctx, s)
	case ws.TypePing:
		return h.send(s, ws.TypePong, nil)
	default:
		return h.sendError(s, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleLoadQuestion(ctx context.Context, s *session, payload json.RawMessage) error {
	var req ws.LoadQuestionPayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid load-question payload")
	}
	err := h.engine.LoadQuestion(ctx, req.Index)
	if IsKind(err, KindNotFound) {
		// The engine already reported it to hosts as question-error.
		return nil
	}
	return h.replyUpdate(s, ws.TypeLoadQuestion, err, "")
}

func (h *Handler) handleStartTimer(ctx context.Context, s *session, payload json.RawMessage) error {
	var req ws.StartTimerPayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid start-timer payload")
	}
	return h.replyUpdate(s, ws.TypeStartTimer, h.engine.StartTimer(ctx, req.Seconds), "")
}

func (h *Handler) handleShowAnswer(ctx context.Context, s *session, payload json.RawMessage) error {
	var req ws.ShowAnswerPayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid show-answer payload")
	}
	_, err := h.engine.Reveal(ctx, req.Save)
	if IsKind(err, KindState) {
		return nil
	}
	return h.replyUpdate(s, ws.TypeShowAnswer, err, "")
}

func (h *Handler) handleScoresCompute(ctx context.Context, s *session, payload json.RawMessage) error {
	var req ws.ScoresComputePayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid scores-compute payload")
	}
	standing, err := h.standings.ComputeOverall(ctx, req.Rounds)
	if err != nil {
		h.logger.Error().Err(err).Ints("rounds", req.Rounds).Msg("score computation failed")
		var ce *ranking.ComputationError
		if errors.As(err, &ce) {
			h.notify.Emit(notify.Hosts, ws.TypeQuestionError, ws.UpdatePayload{Type: ws.TypeScoresCompute, OK: false, Message: ce.Error()})
		}
		return h.sendUpdate(s, ws.TypeScoresCompute, false, "Failed to compute scores: "+err.Error())
	}
	h.notify.Emit(notify.Hosts, ws.TypeScoresHost, standing)
	return nil
}

func (h *Handler) handleScoresPublish(ctx context.Context, s *session) error {
	p, err := h.standings.Publish(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("score publish failed")
		return h.sendUpdate(s, ws.TypeScoresPublish, false, "Failed to publish scores: "+err.Error())
	}
	return h.sendUpdate(s, ws.TypeScoresPublish, true, "Scores published at "+p.Timestamp.Format(time.RFC3339))
}

func (h *Handler) handleInitBrackets(ctx context.Context, s *session, payload json.RawMessage) error {
	var req ws.InitBracketsPayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid adm-initBrackets payload")
	}
	standing, err := h.standings.ComputeOverall(ctx, nil)
	if err != nil {
		return h.sendUpdate(s, ws.TypeInitBrackets, false, "Failed to compute seeds: "+err.Error())
	}
	return h.replyOutcome(s, ws.TypeInitBrackets, h.engine.RunBracket(ctx, func(ctx context.Context) bracket.Outcome {
		return h.brackets.Init(ctx, req.NumBrackets, standing)
	}))
}

func (h *Handler) handleStartBracketRound(ctx context.Context, s *session, payload json.RawMessage) error {
	var req ws.BracketRoundPayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid adm-startBracketRound payload")
	}
	return h.replyOutcome(s, ws.TypeStartBracketRound, h.engine.RunBracket(ctx, func(ctx context.Context) bracket.Outcome {
		return h.brackets.StartRound(ctx, req.Round)
	}))
}

func (h *Handler) handleAnswer(ctx context.Context, s *session, payload json.RawMessage) error {
	if s.isHost() {
		return h.sendError(s, httperrors.ErrCodeForbidden, "Hosts cannot submit answers")
	}
	if !s.limiter.Allow() {
		return h.send(s, ws.TypeAnswerAck, Ack{OK: false, Message: "Too many submissions, slow down"})
	}
	var req ws.AnswerPayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid answer payload")
	}

	// Successful acks reach every connection of the team through the engine.
	if _, err := h.engine.SubmitAnswer(ctx, s.team, req.Answer); err != nil {
		return h.send(s, ws.TypeAnswerAck, Ack{OK: false, Message: clientMessage(err)})
	}
	return nil
}

func (h *Handler) handleSetName(s *session, payload json.RawMessage) error {
	if s.isHost() || h.teams == nil {
		return h.sendError(s, httperrors.ErrCodeForbidden, "Only rostered teams can set a display name")
	}
	var req ws.SetNamePayload
	if err := decode(payload, &req); err != nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid set-name payload")
	}
	team, err := h.teams.ClaimName(s.team.ID, req.Name)
	if err != nil {
		return h.sendUpdate(s, ws.TypeSetName, false, err.Error())
	}
	s.team = team
	h.logger.Info().Str("team_id", team.ID).Str("name", team.Name).Msg("team display name set")
	h.notify.Emit(notify.Hosts, ws.TypeUpdate, ws.UpdatePayload{Type: ws.TypeSetName, OK: true, Message: team.ID + " is now " + team.Name})
	return h.sendUpdate(s, ws.TypeSetName, true, "Display name set to "+team.Name)
}

func (h *Handler) handleBracketsMsg(ctx context.Context, s *session, payload json.RawMessage) error {
	if s.isHost() {
		return h.sendError(s, httperrors.ErrCodeForbidden, "Hosts are not seeded")
	}
	if !s.limiter.Allow() {
		return h.sendError(s, httperrors.ErrCodeRateLimited, "Too many messages")
	}
	var req ws.BracketsMsgPayload
	if err := decode(payload, &req); err != nil || req == nil {
		return h.sendError(s, httperrors.ErrCodeInvalidPayload, "Invalid brackets-msg payload")
	}
	out := h.brackets.Route(ctx, s.team.ID, req)
	if !out.OK {
		return h.sendUpdate(s, ws.TypeBracketsMsg, false, out.Message)
	}
	return nil
}

func (h *Handler) handleStatus(ctx context.Context, s *session) error {
	pub, full, err := h.engine.CurrentQuestion(ctx)
	if err != nil {
		return h.sendError(s, httperrors.ErrCodeServiceUnavailable, clientMessage(err))
	}
	if pub == nil {
		return h.sendError(s, httperrors.ErrCodeNoQuestion, "No question loaded")
	}
	if s.isHost() {
		return h.send(s, ws.TypeQuestionFull, full)
	}
	return h.send(s, ws.TypeQuestion, pub)
}

func (h *Handler) sendConfig(s *session) {
	round, active := 0, false
	if h.brackets != nil {
		round, active = h.brackets.ActiveRound()
	}
	if err := h.send(s, ws.TypeConfig, ws.ConfigPayload{Brackets: ws.BracketConfig{Active: active, Round: round}}); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", s.id.String()).Msg("failed to send config")
	}
}

func (h *Handler) replyUpdate(s *session, msgType string, err error, okMessage string) error {
	if err == nil {
		if okMessage == "" {
			return nil
		}
		return h.sendUpdate(s, msgType, true, okMessage)
	}
	return h.sendUpdate(s, msgType, false, clientMessage(err))
}

func (h *Handler) replyOutcome(s *session, msgType string, out bracket.Outcome) error {
	return h.sendUpdate(s, msgType, out.OK, out.Message)
}

func (h *Handler) sendUpdate(s *session, msgType string, ok bool, message string) error {
	return h.send(s, ws.TypeUpdate, ws.UpdatePayload{Type: msgType, OK: ok, Message: message})
}

func (h *Handler) sendError(s *session, code, message string) error {
	return h.send(s, ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
}

func (h *Handler) send(s *session, msgType string, payload any) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	return h.hub.SendTo(s.id, msg)
}

// decode accepts an absent payload as the zero value.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}

// clientMessage hides internal failures from clients.
func clientMessage(err error) string {
	var gameErr *Error
	if errors.As(err, &gameErr) && gameErr.Kind != KindPersistence {
		return gameErr.Message
	}
	if errors.Is(err, ErrStopped) {
		return "Game is not running"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	return "Internal error"
}
