package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"trivia-night"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Store    Store
	Postgres Postgres
	Mongo    Mongo
	Redis    Redis
	Security Security
	Scoring  Scoring
	Sources  Sources
	Game     Game
	Publish  Publish
	CORS     CORS
}

// Store selects where scores, standings and brackets are kept.
type Store struct {
	Driver         string        `env:"STORE_DRIVER" envDefault:"postgres"`
	PersistQueue   int           `env:"PERSIST_QUEUE_SIZE" envDefault:"256"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"10s"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN builds a pgx connection URL.
func (p Postgres) DSN() string {
	hostPort := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s", p.User, p.Password, hostPort, p.Database, p.SSLMode)
}

// Mongo holds the document store connection.
type Mongo struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" envDefault:"trivia"`
}

// Redis holds cache and pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and host login.
type Security struct {
	JWTSecret   string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	HostKeyHash string        `env:"HOST_KEY_HASH" envDefault:""`
	HostKey     string        `env:"HOST_KEY" envDefault:""`
}

// Scoring lists the counted rounds and their weights, position by position.
type Scoring struct {
	Rounds      []int     `env:"OT_SCORING_ROUNDS" envSeparator:"," envDefault:"1,2"`
	Multipliers []float64 `env:"OT_SCORING_MULT" envSeparator:"," envDefault:"1,1"`
}

// Sources names the roster and question feeds: a published CSV URL or a local .csv/.yaml file.
type Sources struct {
	Users           string        `env:"OT_USERS,notEmpty"`
	Questions       string        `env:"OT_QUESTIONS,notEmpty"`
	RefreshInterval time.Duration `env:"SOURCE_REFRESH_INTERVAL" envDefault:"0s"`
	FetchTimeout    time.Duration `env:"SOURCE_FETCH_TIMEOUT" envDefault:"5s"`
	CacheTTL        time.Duration `env:"SOURCE_CACHE_TTL" envDefault:"24h"`
}

// Game groups gameplay defaults.
type Game struct {
	ShortAnswerSeconds int           `env:"SHORT_ANSWER_SECONDS" envDefault:"20"`
	DefaultSeconds     int           `env:"DEFAULT_TIMER_SECONDS" envDefault:"10"`
	BuzzerSeconds      int           `env:"BUZZER_SECONDS" envDefault:"10"`
	AnswerRate         float64       `env:"ANSWER_RATE_PER_SECOND" envDefault:"2"`
	AnswerBurst        int           `env:"ANSWER_BURST" envDefault:"5"`
	CommandTimeout     time.Duration `env:"COMMAND_TIMEOUT" envDefault:"10s"`
}

// Publish configures the Redis keys of the released standing.
type Publish struct {
	Key     string `env:"STANDING_CACHE_KEY" envDefault:"standing:published"`
	Channel string `env:"STANDING_RELEASE_CHANNEL" envDefault:"standing:release"`
}

// CORS holds the origins allowed to open WebSocket connections.
type CORS struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:""`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *App) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverMongo:
	case DriverPostgres:
		if c.Postgres.User == "" || c.Postgres.Database == "" {
			return errors.New("PG_USER and PG_DATABASE are required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Security.HostKeyHash == "" && c.Security.HostKey == "" {
		return errors.New("one of HOST_KEY_HASH or HOST_KEY is required")
	}
	if len(c.Scoring.Multipliers) > len(c.Scoring.Rounds) {
		return fmt.Errorf("%d multipliers given for %d counted rounds", len(c.Scoring.Multipliers), len(c.Scoring.Rounds))
	}
	return nil
}
