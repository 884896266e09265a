package ranking

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/notify"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// Broadcaster listens for Redis Pub/Sub standing releases and tells every
// connected client to refetch scores.
type Broadcaster struct {
	redis   *redis.Client
	notify  notify.Notifier
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered release broadcaster.
func NewBroadcaster(redis *redis.Client, n notify.Notifier, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = "standing:release"
	}
	return &Broadcaster{
		redis:   redis,
		notify:  n,
		channel: channel,
		logger:  logger.With().Str("component", "standing_broadcaster").Logger(),
	}
}

// Run subscribes to the release channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.notify == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt ReleaseEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode standing release payload")
		return
	}
	b.notify.Emit(notify.Everyone, ws.TypeScoresRelease, evt)
}
