package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/auth"
	"github.com/gokatarajesh/trivia-night/internal/auth/jwt"
	"github.com/gokatarajesh/trivia-night/internal/bracket"
	"github.com/gokatarajesh/trivia-night/internal/config"
	"github.com/gokatarajesh/trivia-night/internal/db/memory"
	"github.com/gokatarajesh/trivia-night/internal/db/mongostore"
	"github.com/gokatarajesh/trivia-night/internal/db/postgres"
	"github.com/gokatarajesh/trivia-night/internal/db/repository"
	"github.com/gokatarajesh/trivia-night/internal/feed"
	"github.com/gokatarajesh/trivia-night/internal/game"
	"github.com/gokatarajesh/trivia-night/internal/logging"
	"github.com/gokatarajesh/trivia-night/internal/notify"
	"github.com/gokatarajesh/trivia-night/internal/question"
	"github.com/gokatarajesh/trivia-night/internal/ranking"
	"github.com/gokatarajesh/trivia-night/internal/roster"
	"github.com/gokatarajesh/trivia-night/internal/server"
	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// scoreStore is what the engine and the ranking service need from storage.
type scoreStore interface {
	game.ScoreSaver
	ranking.ScoreSource
	ranking.PublishStore
}

// stores bundles the selected storage backend.
type stores struct {
	scores   scoreStore
	brackets bracket.Store
	pinger   server.Pinger
	close    func()
}

// Application aggregates shared infrastructure (stores, cache, HTTP server)
// and the long-running game workers.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	stores stores
	redis  *redis.Client
	http   *http.Server

	engine      *game.Engine
	persister   *game.Persister
	refresher   *feed.RefreshWorker
	broadcaster *ranking.Broadcaster
}

// New bootstraps logger, stores, Redis, the game engine and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("store", cfg.Store.Driver).Msg("starting application bootstrap")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	wsHub := ws.NewHub(logger)
	notifier := notify.NewHubNotifier(wsHub, logger)

	teams := roster.New()
	deck := question.NewDeck()
	feedClient := feed.NewClient(&http.Client{Timeout: cfg.Sources.FetchTimeout}, feed.NewCache(redisClient, cfg.Sources.CacheTTL), logger)
	refresher := feed.NewRefreshWorker(feedClient, []feed.Target{
		{Name: "users", Source: cfg.Sources.Users, Apply: teams.Apply},
		{Name: "questions", Source: cfg.Sources.Questions, Apply: deck.Apply},
	}, cfg.Sources.RefreshInterval, cfg.Sources.FetchTimeout, logger)

	if err := refresher.LoadAll(ctx); err != nil {
		st.close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("load sources: %w", err)
	}
	logger.Info().Int("teams", len(teams.All())).Int("questions", deck.Len()).Msg("sources loaded")

	authSvc, err := auth.NewService(teams, auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			Secret: []byte(cfg.Security.JWTSecret),
			TTL:    cfg.Security.TokenTTL,
			Issuer: cfg.Name,
		},
		HostKey:     cfg.Security.HostKey,
		HostKeyHash: cfg.Security.HostKeyHash,
	}, logger)
	if err != nil {
		st.close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("auth service: %w", err)
	}

	standingCache := ranking.NewCache(redisClient, ranking.CacheOptions{Key: cfg.Publish.Key, Channel: cfg.Publish.Channel})
	rankingSvc := ranking.NewService(st.scores, st.scores, teams, standingCache, ranking.ServiceOptions{
		CountedRounds: cfg.Scoring.Rounds,
		Multipliers:   cfg.Scoring.Multipliers,
	}, logger)
	broadcaster := ranking.NewBroadcaster(redisClient, notifier, cfg.Publish.Channel, logger)

	router := bracket.NewRouter(st.brackets, notifier, logger)
	persister := game.NewPersister(cfg.Store.PersistQueue, cfg.Store.PersistTimeout, game.ReportFailures(notifier), logger)
	engine := game.NewEngine(deck, notifier, st.scores, router, persister, game.Options{
		CountedRounds:      cfg.Scoring.Rounds,
		ShortAnswerSeconds: cfg.Game.ShortAnswerSeconds,
		DefaultSeconds:     cfg.Game.DefaultSeconds,
		BuzzerSeconds:      cfg.Game.BuzzerSeconds,
	}, logger)

	gameHandler := game.NewHandler(engine, wsHub, notifier, authSvc, teams, rankingSvc, router, game.HandlerOptions{
		AnswerRate:     cfg.Game.AnswerRate,
		AnswerBurst:    cfg.Game.AnswerBurst,
		CommandTimeout: cfg.Game.CommandTimeout,
	}, server.NewUpgrader(cfg.CORS.AllowedOrigins), logger)

	scoresHTTP := ranking.NewHTTPHandler(rankingSvc, logger)
	apiServer := server.NewHTTPServer(cfg, logger, redisClient, st.pinger, authSvc, server.Routes{
		Login:     auth.NewHTTPHandlers(authSvc, logger).Login,
		WebSocket: gameHandler.HandleWebSocket,
		Scores:    scoresHTTP.HandleGet,
		Standing:  scoresHTTP.HandleStanding,
	})

	return &Application{
		cfg:         cfg,
		logger:      logger,
		stores:      st,
		redis:       redisClient,
		http:        apiServer,
		engine:      engine,
		persister:   persister,
		refresher:   refresher,
		broadcaster: broadcaster,
	}, nil
}

func openStores(ctx context.Context, cfg *config.App, logger zerolog.Logger) (stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; scores are lost on restart")
		mem := memory.New()
		return stores{scores: mem, brackets: mem, close: func() {}}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: cfg.Postgres.DSN(), MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}
		queries := postgres.New(pool)
		brackets := repository.NewBracketRepository(queries, func(ctx context.Context, fn func(q *postgres.Queries) error) error {
			return postgres.InTx(ctx, pool, fn)
		})
		return stores{
			scores:   repository.NewScoreRepository(queries),
			brackets: brackets,
			pinger:   pool,
			close:    pool.Close,
		}, nil

	case config.DriverMongo:
		store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return stores{}, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return stores{}, err
		}
		return stores{
			scores:   store,
			brackets: store,
			pinger:   store,
			close:    func() { _ = store.Close(context.Background()) },
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Run starts the workers and the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	bgCtx, cancelBg := context.WithCancel(ctx)
	var wg sync.WaitGroup
	a.startBackgroundWorkers(bgCtx, &wg)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	// The persister drains its queue once cancelled, so the stores stay open until it returns.
	cancelBg()
	wg.Wait()

	a.stores.close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(4)
	go func() {
		defer wg.Done()
		a.persister.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.engine.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := a.broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Msg("standing broadcaster stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Msg("source refresh worker stopped")
		}
	}()
}
