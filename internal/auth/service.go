package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/auth/jwt"
	"github.com/gokatarajesh/trivia-night/internal/domain"
)

var (
	ErrMissingCredentials = errors.New("credentials required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TeamLookup resolves a team from its PIN.
type TeamLookup interface {
	ByPIN(pin string) (domain.Team, bool)
}

// ServiceOptions configures the auth service. HostKeyHash wins over HostKey;
// a plain HostKey is hashed once at startup.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
	HostKey     string
	HostKeyHash string
}

// Service logs hosts and teams in and issues session tokens.
type Service struct {
	teams       TeamLookup
	tokenMgr    *jwt.Manager
	hostKeyHash string
	logger      zerolog.Logger
}

// NewService creates an authentication service.
func NewService(teams TeamLookup, opts ServiceOptions, logger zerolog.Logger) (*Service, error) {
	hash := opts.HostKeyHash
	if hash == "" && opts.HostKey != "" {
		h, err := HashHostKey(opts.HostKey)
		if err != nil {
			return nil, fmt.Errorf("hash host key: %w", err)
		}
		hash = h
	}
	return &Service{
		teams:       teams,
		tokenMgr:    jwt.NewManager(opts.TokenConfig),
		hostKeyHash: hash,
		logger:      logger.With().Str("component", "auth").Logger(),
	}, nil
}

// Login checks creds against the host key first, then the team PINs.
func (s *Service) Login(ctx context.Context, creds string) (*Session, error) {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		return nil, ErrMissingCredentials
	}

	if s.hostKeyHash != "" && VerifyHostKey(s.hostKeyHash, creds) == nil {
		token, err := s.tokenMgr.Generate(jwt.Subject{Role: jwt.RoleHost})
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		s.logger.Info().Msg("host logged in")
		return &Session{Token: token, Role: jwt.RoleHost, ExpiresIn: int64(s.tokenMgr.TTL().Seconds())}, nil
	}

	team, ok := s.teams.ByPIN(creds)
	if !ok {
		s.logger.Warn().Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenMgr.Generate(jwt.Subject{TeamID: team.ID, TeamName: team.Name, Role: jwt.RoleTeam})
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	s.logger.Info().Str("team_id", team.ID).Msg("team logged in")
	return &Session{Token: token, Role: jwt.RoleTeam, Team: &team, ExpiresIn: int64(s.tokenMgr.TTL().Seconds())}, nil
}

// ValidateToken validates a session token and returns its claims.
func (s *Service) ValidateToken(token string) (*jwt.Claims, error) {
	return s.tokenMgr.Validate(token)
}
