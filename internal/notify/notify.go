// Package notify delivers game events to connected clients by audience.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/trivia-night/pkg/http/ws"
)

// Group names used by the hub.
const (
	GroupUsers = "users"
	GroupHosts = "hosts"
	teamPrefix = "team-"
)

// Audience selects who receives an event.
type Audience struct {
	group string
}

var (
	Everyone = Audience{group: GroupUsers}
	Hosts    = Audience{group: GroupHosts}
)

// Team addresses every connection logged in as the given team.
func Team(id string) Audience {
	return Audience{group: TeamGroup(id)}
}

// TeamGroup returns the hub group name of a team.
func TeamGroup(id string) string {
	return teamPrefix + id
}

// Group returns the hub group backing the audience.
func (a Audience) Group() string {
	return a.group
}

func (a Audience) String() string {
	return a.group
}

// Notifier emits events. Implementations must be safe for concurrent use
// and must not block on slow clients.
type Notifier interface {
	Emit(to Audience, event string, payload any)
}

// HubNotifier emits events through a WebSocket hub.
type HubNotifier struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

// NewHubNotifier wraps a hub.
func NewHubNotifier(hub *ws.Hub, logger zerolog.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

// Emit encodes payload and broadcasts it to the audience group.
func (n *HubNotifier) Emit(to Audience, event string, payload any) {
	msg, err := ws.NewMessage(event, payload)
	if err != nil {
		n.logger.Error().Err(err).Str("event", event).Msg("encode event failed")
		return
	}
	if err := n.hub.BroadcastGroup(to.Group(), msg); err != nil {
		n.logger.Warn().Err(err).Str("event", event).Str("group", to.Group()).Msg("emit failed")
	}
}

// Event is a recorded emission.
type Event struct {
	To      Audience
	Name    string
	Payload any
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event.
func (r *Recorder) Emit(to Audience, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{To: to, Name: event, Payload: payload})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
