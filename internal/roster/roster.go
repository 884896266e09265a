package roster

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-andiamo/splitter"

	"github.com/gokatarajesh/trivia-night/internal/domain"
	"github.com/gokatarajesh/trivia-night/internal/feed"
)

var (
	ErrDuplicateTeam = errors.New("duplicate team id")
	ErrUnknownTeam   = errors.New("unknown team")
	ErrNameClaimed   = errors.New("display name already set")
	ErrBadName       = errors.New("display name must be 1-40 characters")
)

// MaxNameLength caps a self-reported display name, in runes.
const MaxNameLength = 40

// Roster is the loaded team list, replaced wholesale on reload.
// Display names claimed by teams survive reloads.
type Roster struct {
	mu      sync.RWMutex
	teams   []domain.Team
	byID    map[string]int
	byPIN   map[string]int
	claimed map[string]string
}

func New(teams ...domain.Team) *Roster {
	r := &Roster{claimed: map[string]string{}}
	_ = r.Replace(teams)
	return r
}

// Replace installs a new team list. Team ids must be unique.
func (r *Roster) Replace(teams []domain.Team) error {
	byID := make(map[string]int, len(teams))
	byPIN := make(map[string]int, len(teams))
	for i, t := range teams {
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTeam, t.ID)
		}
		byID[t.ID] = i
		if t.PIN != "" {
			byPIN[t.PIN] = i
		}
	}
	cp := make([]domain.Team, len(teams))
	copy(cp, teams)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, name := range r.claimed {
		if i, ok := byID[id]; ok {
			cp[i].Name = name
		}
	}
	r.teams, r.byID, r.byPIN = cp, byID, byPIN
	return nil
}

// ClaimName sets a team's display name. Each team may do this once.
func (r *Roster) ClaimName(id, name string) (domain.Team, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return domain.Team{}, ErrBadName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return domain.Team{}, fmt.Errorf("%w: %s", ErrUnknownTeam, id)
	}
	if _, done := r.claimed[id]; done {
		return domain.Team{}, ErrNameClaimed
	}
	if r.claimed == nil {
		r.claimed = map[string]string{}
	}
	r.claimed[id] = name
	r.teams[i].Name = name
	return r.teams[i], nil
}

func (r *Roster) ByID(id string) (domain.Team, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return domain.Team{}, false
	}
	return r.teams[i], true
}

func (r *Roster) ByPIN(pin string) (domain.Team, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byPIN[strings.TrimSpace(pin)]
	if !ok {
		return domain.Team{}, false
	}
	return r.teams[i], true
}

// All returns a copy of the teams in roster order.
func (r *Roster) All() []domain.Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Team, len(r.teams))
	copy(out, r.teams)
	return out
}

// Apply is a feed.Target hook.
func (r *Roster) Apply(rows []feed.Row) error {
	teams, err := FromRows(rows)
	if err != nil {
		return err
	}
	return r.Replace(teams)
}

// FromRows maps roster rows (TeamID, TeamName, TeamPIN, Members, Category).
// Rows without a TeamID are skipped.
func FromRows(rows []feed.Row) ([]domain.Team, error) {
	sp, err := splitter.NewSplitter(',', splitter.DoubleQuotes)
	if err != nil {
		return nil, fmt.Errorf("member splitter: %w", err)
	}

	teams := make([]domain.Team, 0, len(rows))
	for i, row := range rows {
		id := row.Get("TeamID")
		if id == "" {
			continue
		}
		members, err := splitMembers(sp, row.Get("Members"))
		if err != nil {
			return nil, fmt.Errorf("roster row %d: %w", i+1, err)
		}
		teams = append(teams, domain.Team{
			ID:       id,
			Name:     row.Get("TeamName"),
			Members:  members,
			Category: row.Get("Category"),
			PIN:      row.Get("TeamPIN"),
		})
	}
	return teams, nil
}

func splitMembers(sp splitter.Splitter, raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	parts, err := sp.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("split members: %w", err)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
