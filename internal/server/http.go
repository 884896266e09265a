package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/auth"
	"github.com/gokatarajesh/trivia-night/internal/config"
	"github.com/gokatarajesh/trivia-night/internal/logging"
	httperrors "github.com/gokatarajesh/trivia-night/pkg/http/errors"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes are the feature handlers mounted next to the base routes.
// Nil handlers are left unmounted.
type Routes struct {
	Login     http.HandlerFunc
	WebSocket http.HandlerFunc
	Scores    http.HandlerFunc
	Standing  http.HandlerFunc
}

// NewUpgrader builds the WebSocket upgrader. An empty allow list accepts
// every origin, which suits local development.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[strings.ToLower(o)] = true
		}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
		},
	}
}

// NewHTTPServer wires base routes (health, metrics, ping) and the feature routes.
// store may be nil when scores live in memory.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, redis *redis.Client, store Pinger, tokens auth.TokenValidator, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), redis, store); err != nil {
			reqLogger := logging.FromContext(r.Context())
			reqLogger.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "upstream error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes.Login != nil {
		mux.HandleFunc("/v1/auth/login", routes.Login)
	}
	if routes.WebSocket != nil {
		mux.HandleFunc("/ws", routes.WebSocket)
	}

	withClaims := auth.AuthMiddleware(tokens, logger)
	if routes.Scores != nil {
		mux.Handle("/v1/scores", withClaims(routes.Scores))
	}
	if routes.Standing != nil {
		mux.Handle("/v1/admin/standing", withClaims(auth.RequireHost(routes.Standing)))
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: logging.Middleware(logger)(mux),
	}
}

func pingDependencies(ctx context.Context, redis *redis.Client, store Pinger) error {
	if err := redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if store != nil {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	return nil
}
