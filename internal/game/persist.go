package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/notify"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// JobKind labels a persistence job.
type JobKind string

const (
	JobScores        JobKind = "scores"
	JobBracketScores JobKind = "bracket_scores"
	JobBracketRound  JobKind = "bracket_round"
)

// SaveResult reports how a background job finished.
type SaveResult struct {
	Kind     JobKind
	Round    int
	Question int
	Err      error
	Duration time.Duration
}

// ErrQueueFull is reported when the persister cannot accept more jobs.
var ErrQueueFull = errors.New("persist queue full")

type job struct {
	kind     JobKind
	round    int
	question int
	run      func(ctx context.Context) error
	done     chan SaveResult
}

// Persister runs storage jobs one at a time, in submission order, off the
// game loop. Callers never wait on it unless they read the returned channel.
type Persister struct {
	jobs    chan job
	timeout time.Duration
	onDone  func(SaveResult)
	logger  zerolog.Logger
}

// NewPersister creates a persister with a bounded queue. onDone, when set,
// is called from the worker goroutine after every job.
func NewPersister(queue int, timeout time.Duration, onDone func(SaveResult), logger zerolog.Logger) *Persister {
	if queue <= 0 {
		queue = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Persister{
		jobs:    make(chan job, queue),
		timeout: timeout,
		onDone:  onDone,
		logger:  logger,
	}
}

// Submit enqueues fn. The returned channel receives exactly one result.
func (p *Persister) Submit(kind JobKind, round, question int, fn func(ctx context.Context) error) <-chan SaveResult {
	j := job{kind: kind, round: round, question: question, run: fn, done: make(chan SaveResult, 1)}
	select {
	case p.jobs <- j:
	default:
		res := SaveResult{Kind: kind, Round: round, Question: question, Err: ErrQueueFull}
		p.finish(j, res)
	}
	return j.done
}

// Run processes jobs until ctx is cancelled, then drains what is queued.
func (p *Persister) Run(ctx context.Context) {
	p.logger.Info().Msg("persister started")
	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info().Msg("persister stopped")
			return
		case j := <-p.jobs:
			p.execute(context.Background(), j)
		}
	}
}

func (p *Persister) drain() {
	for {
		select {
		case j := <-p.jobs:
			p.execute(context.Background(), j)
		default:
			return
		}
	}
}

func (p *Persister) execute(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	start := time.Now()
	err := j.run(ctx)
	if err != nil {
		err = &Error{Kind: KindPersistence, Message: fmt.Sprintf("save %s", j.kind), Err: err}
	}
	p.finish(j, SaveResult{Kind: j.kind, Round: j.round, Question: j.question, Err: err, Duration: time.Since(start)})
}

func (p *Persister) finish(j job, res SaveResult) {
	status := "ok"
	if res.Err != nil {
		status = "error"
		p.logger.Error().Err(res.Err).
			Str("kind", string(res.Kind)).
			Int("round", res.Round).
			Int("question", res.Question).
			Msg("persist job failed")
	}
	persistJobs.WithLabelValues(string(res.Kind), status).Inc()
	persistDuration.WithLabelValues(string(res.Kind)).Observe(res.Duration.Seconds())

	if p.onDone != nil {
		p.onDone(res)
	}
	j.done <- res
}

// ReportFailures returns an onDone hook that tells hosts about failed jobs.
func ReportFailures(n notify.Notifier) func(SaveResult) {
	return func(res SaveResult) {
		if res.Err == nil {
			return
		}
		n.Emit(notify.Hosts, ws.TypeUpdate, ws.UpdatePayload{
			Type:    string(res.Kind),
			OK:      false,
			Message: fmt.Sprintf("Saving %s for R%d Q%d failed: %v", res.Kind, res.Round, res.Question, res.Err),
		})
	}
}
