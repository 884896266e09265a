package game

import (
	"net/http"

	httperrors "github.com/gokatarajesh/trivia-night/pkg/http/errors"
)

// HandleWebSocket upgrades HTTP connection to WebSocket and authenticates the team or host.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Extract and validate token from query parameter
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Missing token")
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, claims)
}
