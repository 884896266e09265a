package game

import (
	"context"
	"math"
	"time"

	"github.com/gokatarajesh/trivia-night/internal/notify"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// startTimer replaces any running countdown. Ticks from a replaced countdown
// carry an old generation and are ignored.
func (e *Engine) startTimer(seconds int) {
	e.cancelTimer()

	e.timer.gen++
	gen := e.timer.gen
	ctx, cancel := context.WithCancel(e.loopCtx)
	e.timer.cancel = cancel
	e.timer.running = true
	timerRunning.Set(1)
	e.timer.endsAt = e.now().Add(time.Duration(seconds) * e.opts.TimerUnit)

	e.notify.Emit(notify.Everyone, ws.TypeTimer, ws.TimerPayload{Seconds: seconds})
	go e.tick(ctx, gen)
}

func (e *Engine) cancelTimer() {
	if e.timer.cancel != nil {
		e.timer.cancel()
		e.timer.cancel = nil
	}
	e.timer.running = false
	timerRunning.Set(0)
}

func (e *Engine) tick(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(e.opts.TimerUnit)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.post(ctx, func() { e.onTick(gen) })
		}
	}
}

// onTick emits the remaining seconds. When time is up the question closes.
func (e *Engine) onTick(gen uint64) {
	if !e.timer.running || gen != e.timer.gen {
		return
	}

	left := int(math.Round(float64(e.timer.endsAt.Sub(e.now())) / float64(e.opts.TimerUnit)))
	if left > 0 {
		e.notify.Emit(notify.Everyone, ws.TypeTimer, ws.TimerPayload{Seconds: left})
		return
	}

	e.cancelTimer()
	if e.state != nil {
		e.state.active = false
	}
	e.notify.Emit(notify.Everyone, ws.TypeTimer, ws.TimerPayload{Seconds: 0})
	e.notify.Emit(notify.Everyone, ws.TypeStop, nil)
	e.logger.Debug().Msg("timer expired")
}
