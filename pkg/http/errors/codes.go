package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeForbidden    = "forbidden"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeLoginFailed  = "login_failed"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"

	// Game errors
	ErrCodeNoQuestion    = "no_question"
	ErrCodeScoringFailed = "scoring_failed"
	ErrCodeRateLimited   = "rate_limited"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"

	// Scoreboard errors
	ErrCodeScoresFetchFailed = "scores_fetch_failed"
)
