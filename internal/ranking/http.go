package ranking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-night/internal/auth"
	"github.com/gokatarajesh/trivia-night/internal/domain"
	httperrors "github.com/gokatarajesh/trivia-night/pkg/http/errors"
)

// ScoresResponse is the body of GET /v1/scores.
type ScoresResponse struct {
	OK        bool                     `json:"ok"`
	Published bool                     `json:"published"`
	Timestamp *time.Time               `json:"ts,omitempty"`
	Scores    *domain.RedactedStanding `json:"scores,omitempty"`
	Team      *domain.StandingEntry    `json:"team,omitempty"`
	Full      *domain.Standing         `json:"full,omitempty"`
}

// HTTPHandler exposes the published standing.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a scores HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "scores_http").Logger(),
	}
}

// HandleGet responds with the latest published standing.
// Route: GET /v1/scores
// A team caller gets its own row highlighted and its full entry; a host gets
// the unredacted standing.
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	p, err := h.svc.Published(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("published standing fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeScoresFetchFailed, "Failed to fetch scores")
		return
	}
	if p == nil {
		writeJSON(w, ScoresResponse{OK: true})
		return
	}

	resp := ScoresResponse{OK: true, Published: true, Timestamp: &p.Timestamp}
	redacted := p.Redacted
	redacted.Entries = append([]domain.RedactedEntry(nil), p.Redacted.Entries...)

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		if claims.IsHost() {
			resp.Full = &p.Full
		} else {
			for i, e := range p.Full.Entries {
				if e.TeamID != claims.TeamID {
					continue
				}
				entry := e
				resp.Team = &entry
				if i < len(redacted.Entries) {
					redacted.Entries[i].Highlight = true
				}
				break
			}
		}
	}
	resp.Scores = &redacted

	writeJSON(w, resp)
}

// StandingResponse is the body of GET /v1/admin/standing.
type StandingResponse struct {
	OK       bool            `json:"ok"`
	Standing domain.Standing `json:"standing"`
}

// HandleStanding computes the unpublished overall standing for the host.
// Route: GET /v1/admin/standing?rounds=1,2
// Without rounds every counted round is used.
func (h *HTTPHandler) HandleStanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var rounds []int
	if raw := r.URL.Query().Get("rounds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "rounds must be a comma separated list of integers", "rounds")
				return
			}
			rounds = append(rounds, n)
		}
	}

	standing, err := h.svc.ComputeOverall(r.Context(), rounds)
	if err != nil {
		var ce *ComputationError
		switch {
		case errors.Is(err, ErrNoRounds):
			httperrors.RespondBadRequest(w, httperrors.ErrCodeScoringFailed, err.Error())
		case errors.As(err, &ce):
			httperrors.RespondError(w, http.StatusUnprocessableEntity, httperrors.ErrCodeScoringFailed, ce.Error())
		default:
			h.logger.Error().Err(err).Msg("standing computation failed")
			httperrors.RespondInternalError(w, "Failed to compute standing")
		}
		return
	}
	writeJSON(w, StandingResponse{OK: true, Standing: standing})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
