package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"feed2podcast/internal/logging"
	"feed2podcast/internal/services"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError maps err to a status code and writes {"error": msg}. Server-side
// failures are logged; client errors are only visible in the access log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	switch {
	case errors.Is(err, services.ErrInternalIO), errors.Is(err, services.ErrInternalAssertion):
		logging.ErrorWithContext(logger, "request failed", "request_failed",
			logging.String("route", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions and free space"),
		)
	case status >= http.StatusInternalServerError:
		logging.WarnWithContext(logger, "request failed", "request_failed",
			logging.String("route", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the origin server and TTS backend are reachable"),
			logging.String(logging.FieldImpact, "client received an error response"),
		)
	default:
		logger.Debug("request rejected", logging.Int("status", status), logging.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
