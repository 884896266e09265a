// Package game runs the live question flow: loading questions, judging
// answers, the countdown timer and handing finished scores to storage.
//
// All question state is owned by a single loop goroutine started with Run.
// Public methods post work to that loop and wait for it, so callers from any
// goroutine observe a consistent order of loads, answers, ticks and reveals.
package game

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/bracket"
	"github.com/gokatarajesh/trivia-night/internal/domain"
	"github.com/gokatarajesh/trivia-night/internal/game/scoring"
	"github.com/gokatarajesh/trivia-night/internal/notify"
	"github.com/gokatarajesh/trivia-night/internal/question"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// QuestionSource is the index-addressed question list.
type QuestionSource interface {
	At(index int) (question.Definition, bool)
	Len() int
	Refs() []question.Ref
}

// ScoreSaver persists the score record of one question.
type ScoreSaver interface {
	SaveScores(ctx context.Context, rec domain.ScoreRecord) error
}

// BracketScorer receives score deltas while a bracket round is in play.
type BracketScorer interface {
	ActiveRound() (int, bool)
	ApplyScores(ctx context.Context, round int, deltas map[string]float64) bracket.Outcome
}

// Options tune the engine. Zero values pick the defaults.
type Options struct {
	// CountedRounds lists the rounds whose scores are saved.
	CountedRounds []int
	// TimerUnit is the length of one countdown second.
	TimerUnit time.Duration
	// ShortAnswerSeconds is the default countdown for short-answer questions.
	ShortAnswerSeconds int
	// DefaultSeconds is the default countdown for every other kind.
	DefaultSeconds int
	// BuzzerSeconds is the countdown started when a buzzer question loads.
	BuzzerSeconds int
	QueueSize     int
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TimerUnit <= 0 {
		o.TimerUnit = time.Second
	}
	if o.ShortAnswerSeconds <= 0 {
		o.ShortAnswerSeconds = 20
	}
	if o.DefaultSeconds <= 0 {
		o.DefaultSeconds = 10
	}
	if o.BuzzerSeconds <= 0 {
		o.BuzzerSeconds = o.DefaultSeconds
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Ack is the response to an answer submission. It is also sent to every
// connection of the submitting team.
type Ack struct {
	OK              bool   `json:"ok"`
	Selected        string `json:"selected"`
	FirstSubmission bool   `json:"firstSubmission"`
	CanChangeAnswer bool   `json:"canChangeAnswer"`
	Sender          string `json:"sender"`
	Message         string `json:"msg,omitempty"`

	Correct  bool    `json:"-"`
	Points   float64 `json:"-"`
	Tiebreak float64 `json:"-"`
}

// AnswerTimePayload gives a team feedback on a timed or instant-feedback answer.
type AnswerTimePayload struct {
	Time     float64 `json:"time"`
	Correct  bool    `json:"correct"`
	Tiebreak float64 `json:"tb"`
	Answer   string  `json:"answer"`
	Message  string  `json:"message"`
}

// AnswerBuzzerPayload gives a team feedback on a buzzer answer.
type AnswerBuzzerPayload struct {
	Message string  `json:"message"`
	Points  float64 `json:"points"`
}

// AnswerUpdatePayload tells hosts about each judged submission.
type AnswerUpdatePayload struct {
	Team         string  `json:"t"`
	TeamName     string  `json:"tn"`
	Answer       string  `json:"answer"`
	Correct      bool    `json:"correct"`
	Points       float64 `json:"points"`
	Tiebreak     float64 `json:"tb,omitempty"`
	NumAnswered  int     `json:"numAnswered"`
	Responses    int     `json:"responses"`
	FirstCorrect bool    `json:"firstCorrect,omitempty"`
}

// AnswerRevealPayload is broadcast when the host shows the answer.
type AnswerRevealPayload struct {
	Answer string `json:"answer"`
}

type timerState struct {
	gen     uint64
	running bool
	endsAt  time.Time
	cancel  context.CancelFunc
}

// Engine owns the active question and its countdown.
type Engine struct {
	questions QuestionSource
	notify    notify.Notifier
	saver     ScoreSaver
	brackets  BracketScorer
	persist   *Persister
	counted   map[int]bool
	opts      Options
	logger    zerolog.Logger

	events  chan func()
	done    chan struct{}
	loopCtx context.Context

	// loop-owned
	state *questionState
	timer timerState
}

// NewEngine creates an engine. brackets may be nil when bracket play is unused.
func NewEngine(questions QuestionSource, n notify.Notifier, saver ScoreSaver, brackets BracketScorer, persist *Persister, opts Options, logger zerolog.Logger) *Engine {
	opts = opts.withDefaults()
	counted := make(map[int]bool, len(opts.CountedRounds))
	for _, r := range opts.CountedRounds {
		counted[r] = true
	}
	return &Engine{
		questions: questions,
		notify:    n,
		saver:     saver,
		brackets:  brackets,
		persist:   persist,
		counted:   counted,
		opts:      opts,
		logger:    logger,
		events:    make(chan func(), opts.QueueSize),
		done:      make(chan struct{}),
	}
}

// Run processes engine work until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.loopCtx = ctx
	defer close(e.done)
	e.logger.Info().Int("questions", e.questions.Len()).Msg("game engine started")

	for {
		select {
		case <-ctx.Done():
			e.cancelTimer()
			e.logger.Info().Msg("game engine stopped")
			return
		case fn := <-e.events:
			fn()
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case e.events <- wrapped:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-e.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// post queues fn without waiting. It gives up when ctx ends.
func (e *Engine) post(ctx context.Context, fn func()) {
	select {
	case e.events <- fn:
	case <-ctx.Done():
	case <-e.done:
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Now()
}

// QuestionList returns round/number pairs for the whole deck.
func (e *Engine) QuestionList() []question.Ref {
	return e.questions.Refs()
}

// LoadQuestion makes the question at index active, resetting all answer
// state. Buzzer questions start their countdown immediately.
func (e *Engine) LoadQuestion(ctx context.Context, index int) error {
	var err error
	if doErr := e.do(ctx, func() { err = e.loadQuestion(index) }); doErr != nil {
		return doErr
	}
	return err
}

// NextQuestion loads the question after the current one.
func (e *Engine) NextQuestion(ctx context.Context) error {
	var err error
	doErr := e.do(ctx, func() {
		next := 0
		if e.state != nil {
			next = e.state.index + 1
		}
		err = e.loadQuestion(next)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (e *Engine) loadQuestion(index int) error {
	q, ok := e.questions.At(index)
	if !ok {
		err := notFoundError("Question index %d does not exist", index)
		e.notify.Emit(notify.Hosts, ws.TypeQuestionError, ws.UpdatePayload{Type: ws.TypeLoadQuestion, OK: false, Message: err.Error()})
		return err
	}

	e.cancelTimer()
	e.state = newQuestionState(index, q, e.now())
	questionsLoaded.Inc()

	info := q.Info()
	e.logger.Info().Int("index", index).Int("round", info.Round).Int("num", info.Number).Str("kind", string(q.Kind())).Msg("question loaded")

	e.notify.Emit(notify.Everyone, ws.TypeQuestion, e.state.publicView())
	e.notify.Emit(notify.Hosts, ws.TypeQuestionFull, e.state.fullView())

	if q.Kind() == question.KindBuzzer {
		e.startTimer(e.opts.BuzzerSeconds)
	}
	return nil
}

// SubmitAnswer judges a team's submission against the active question.
func (e *Engine) SubmitAnswer(ctx context.Context, team domain.Team, submission string) (Ack, error) {
	var (
		ack Ack
		err error
	)
	if doErr := e.do(ctx, func() { ack, err = e.submitAnswer(team, submission) }); doErr != nil {
		return Ack{}, doErr
	}
	return ack, err
}

func (e *Engine) submitAnswer(team domain.Team, submission string) (Ack, error) {
	st := e.state
	if st == nil || !st.active {
		return Ack{}, stateError("Question not active")
	}
	if team.ID == "" {
		return Ack{}, validationError("Missing team")
	}

	prev, answered := st.scores[team.ID]
	if answered && !st.canChangeAnswer {
		return Ack{}, stateError("Answer already submitted")
	}
	if answered && prev > 0 && question.IsTimed(st.question) {
		return Ack{}, stateError("Already answered correctly")
	}

	res, err := scoring.Evaluate(submission, st.question)
	if err != nil {
		return Ack{}, &Error{Kind: KindComputation, Message: err.Error()}
	}
	kind := st.question.Kind()
	if !res.Valid {
		answersTotal.WithLabelValues(string(kind), "invalid").Inc()
		msg := res.Message
		if msg == "" {
			msg = invalidMessage(kind)
		}
		return Ack{}, validationError("%s", msg)
	}

	selected := strings.ToLower(strings.TrimSpace(submission))
	_, seen := st.selections[team.ID]
	st.selections[team.ID] = selected

	points := 0.0
	if res.Correct {
		if kind == question.KindBuzzer {
			points = scoring.BuzzerPayout(st.numAnswered)
			st.numAnswered++
		} else {
			points = 1
		}
	}
	st.scores[team.ID] = points

	timed := question.IsTimed(st.question)
	elapsed := e.now().Sub(st.startedAt)
	tb := 0.0
	if res.Correct && timed {
		tb = scoring.Tiebreak(elapsed)
	}
	// A late answer can decay to zero; tiebreaks are kept only in (0, 10].
	if tb > 0 {
		st.tiebreaks[team.ID] = tb
	} else {
		delete(st.tiebreaks, team.ID)
	}

	firstCorrect := false
	if res.Correct && timed && !st.firstCorrectAnnounced {
		st.firstCorrectAnnounced = true
		firstCorrect = true
	}

	result := "wrong"
	if res.Correct {
		result = "correct"
	}
	answersTotal.WithLabelValues(string(kind), result).Inc()

	ack := Ack{
		OK:              true,
		Selected:        selected,
		FirstSubmission: !seen,
		CanChangeAnswer: st.canChangeAnswer,
		Sender:          team.Name,
		Message:         res.Message,
		Correct:         res.Correct,
		Points:          points,
		Tiebreak:        tb,
	}

	room := notify.Team(team.ID)
	e.notify.Emit(room, ws.TypeAnswerAck, ack)
	switch {
	case kind == question.KindBuzzer:
		e.notify.Emit(room, ws.TypeAnswerBuzzer, AnswerBuzzerPayload{Message: buzzerMessage(res, st.numAnswered), Points: points})
	case timed || st.question.Info().InstantFeedback:
		e.notify.Emit(room, ws.TypeAnswerTime, AnswerTimePayload{
			Time:     math.Round(elapsed.Seconds()*1000) / 1000,
			Correct:  res.Correct,
			Tiebreak: tb,
			Answer:   selected,
			Message:  res.Message,
		})
	}
	e.notify.Emit(notify.Hosts, ws.TypeAnswerUpdate, AnswerUpdatePayload{
		Team:         team.ID,
		TeamName:     team.Name,
		Answer:       selected,
		Correct:      res.Correct,
		Points:       points,
		Tiebreak:     tb,
		NumAnswered:  st.numAnswered,
		Responses:    len(st.scores),
		FirstCorrect: firstCorrect,
	})

	if delta := points - prev; delta != 0 {
		e.forwardToBracket(team.ID, delta)
	}
	return ack, nil
}

func (e *Engine) forwardToBracket(teamID string, delta float64) {
	if e.brackets == nil {
		return
	}
	round, ok := e.brackets.ActiveRound()
	if !ok {
		return
	}
	deltas := map[string]float64{teamID: delta}
	e.persist.Submit(JobBracketScores, round, e.state.index, func(ctx context.Context) error {
		out := e.brackets.ApplyScores(ctx, round, deltas)
		if !out.OK {
			return errors.New(out.Message)
		}
		return nil
	})
}

// RunBracket runs a bracket command on the persist queue, behind every
// bracket score job already submitted, and waits for its outcome. Rounds are
// opened and closed only once the answers that came before were applied.
func (e *Engine) RunBracket(ctx context.Context, fn func(ctx context.Context) bracket.Outcome) bracket.Outcome {
	var (
		out  bracket.Outcome
		done <-chan SaveResult
	)
	err := e.do(ctx, func() {
		done = e.persist.Submit(JobBracketRound, -1, -1, func(ctx context.Context) error {
			out = fn(ctx)
			return nil
		})
	})
	if err != nil {
		return bracket.Outcome{Message: clientMessage(err)}
	}

	select {
	case res := <-done:
		if res.Err != nil {
			return bracket.Outcome{Message: res.Err.Error()}
		}
		return out
	case <-ctx.Done():
		return bracket.Outcome{Message: clientMessage(ctx.Err())}
	}
}

func invalidMessage(kind question.Kind) string {
	switch kind {
	case question.KindMultipleChoice:
		return "Invalid multiple choice option"
	case question.KindReadyCheck:
		return "Invalid response"
	case question.KindSpecialPrompt:
		return "This question does not take answers"
	}
	return "Answer could not be judged"
}

func buzzerMessage(res scoring.Result, answered int) string {
	if res.Correct {
		return "Correct! You were #" + strconv.Itoa(answered)
	}
	if res.Message != "" {
		return res.Message
	}
	return "Incorrect"
}

// StartTimer starts the countdown. seconds <= 0 picks the default for the
// active question kind.
func (e *Engine) StartTimer(ctx context.Context, seconds int) error {
	return e.do(ctx, func() {
		if seconds <= 0 {
			seconds = e.defaultSeconds()
		}
		e.startTimer(seconds)
	})
}

// StopTimer cancels the countdown and tells clients to hide it.
func (e *Engine) StopTimer(ctx context.Context) error {
	return e.do(ctx, func() {
		e.cancelTimer()
		e.notify.Emit(notify.Everyone, ws.TypeTimer, ws.TimerPayload{Seconds: -1})
	})
}

func (e *Engine) defaultSeconds() int {
	if e.state != nil && e.state.question.Kind() == question.KindShortAnswer {
		return e.opts.ShortAnswerSeconds
	}
	return e.opts.DefaultSeconds
}

// Reveal closes the question, optionally saves its scores, and shows the
// answer. Hosts receive the answer statistics.
func (e *Engine) Reveal(ctx context.Context, save bool) (AnswerStats, error) {
	var (
		stats AnswerStats
		err   error
	)
	doErr := e.do(ctx, func() {
		st := e.state
		if st == nil {
			err = stateError("No question selected")
			e.notify.Emit(notify.Hosts, ws.TypeQuestionError, ws.UpdatePayload{Type: ws.TypeShowAnswer, OK: false, Message: err.Error()})
			return
		}
		e.cancelTimer()
		if st.active {
			st.active = false
			e.notify.Emit(notify.Everyone, ws.TypeStop, nil)
		}
		if save {
			e.saveScores()
		}
		stats = st.stats()
		e.notify.Emit(notify.Hosts, ws.TypeAnswerStats, stats)
		e.notify.Emit(notify.Everyone, ws.TypeAnswerReveal, AnswerRevealPayload{Answer: strings.ToLower(question.AnswerOf(st.question))})
	})
	if doErr != nil {
		return AnswerStats{}, doErr
	}
	return stats, err
}

// SaveScores hands the current question's scores to storage without
// revealing. It reports false when the round is not counted.
func (e *Engine) SaveScores(ctx context.Context) (bool, error) {
	var (
		saved bool
		err   error
	)
	doErr := e.do(ctx, func() {
		if e.state == nil {
			err = stateError("No question selected")
			return
		}
		saved = e.saveScores()
	})
	if doErr != nil {
		return false, doErr
	}
	return saved, err
}

func (e *Engine) saveScores() bool {
	st := e.state
	info := st.question.Info()
	if !e.counted[info.Round] {
		e.notify.Emit(notify.Hosts, ws.TypeUpdate, ws.UpdatePayload{
			Type:    ws.TypeScoresSave,
			OK:      false,
			Message: "Round (R" + strconv.Itoa(info.Round) + ") not counted; no scores saved",
		})
		return false
	}

	rec := domain.ScoreRecord{
		Round:     info.Round,
		Question:  info.Number,
		Scores:    copyFloats(st.scores),
		Tiebreaks: copyFloats(st.tiebreaks),
		Weighted:  st.question.Kind() == question.KindBuzzer,
		UpdatedAt: e.now().UTC(),
	}
	st.scoresSaved = true
	e.persist.Submit(JobScores, info.Round, info.Number, func(ctx context.Context) error {
		return e.saver.SaveScores(ctx, rec)
	})

	e.notify.Emit(notify.Hosts, ws.TypeUpdate, ws.UpdatePayload{
		Type:    ws.TypeScoresSave,
		OK:      true,
		Message: "Scores saved for R" + strconv.Itoa(info.Round) + " Q" + strconv.Itoa(info.Number),
	})
	return true
}

// Snapshot returns a copy of the active question state. Index is -1 when
// nothing has been loaded.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.do(ctx, func() {
		snap = e.state.snapshot()
		snap.TimerRunning = e.timer.running
	})
	return snap, err
}

// CurrentQuestion returns both views of the loaded question, or nils.
func (e *Engine) CurrentQuestion(ctx context.Context) (*PublicQuestion, *FullQuestion, error) {
	var (
		pub  *PublicQuestion
		full *FullQuestion
	)
	err := e.do(ctx, func() {
		if e.state == nil {
			return
		}
		p, f := e.state.publicView(), e.state.fullView()
		pub, full = &p, &f
	})
	return pub, full, err
}
