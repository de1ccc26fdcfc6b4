package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"stockagent/internal/quote"
)

// ErrorResponse is the envelope for every error answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := GetRequestID(r.Context())
	log.Warn().
		Str("request_id", requestID).
		Str("error_code", code).
		Str("message", message).
		Int("status", status).
		Msg("api error response")
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}})
}

// statusForKind maps quote-layer error kinds to HTTP status codes.
func statusForKind(kind quote.Kind) int {
	switch kind {
	case quote.KindNotFound, quote.KindInvalidSymbol:
		return http.StatusNotFound
	case quote.KindRateLimited, quote.KindUpstreamThrottled:
		return http.StatusTooManyRequests
	case quote.KindUpstreamUnavailable, quote.KindTimeout:
		return http.StatusServiceUnavailable
	case quote.KindParseError:
		return http.StatusBadGateway
	case quote.KindInvalidBatchSize:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
