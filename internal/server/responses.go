package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"island-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	msgMapCodeRequired = "Map code is required"
	msgInvalidMapCode  = "Invalid map code format. Expected format: XXXX-XXXX-XXXX"
	msgInvalidInput    = "Invalid request. Please check your inputs."
	msgNotFound        = "Map not found. Please check the map code."
	msgStatsNotFound   = "Could not find player count data. The map might not have current statistics."
	msgTimeout         = "Request timeout. The website might be slow or unavailable."
	msgNetwork         = "Network error. Please check your internet connection and try again."
	msgScrapeFailed    = "Failed to scrape Fortnite data. Please try again later."
)

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMapCodeRequired):
		return http.StatusBadRequest, msgMapCodeRequired
	case errors.Is(err, domain.ErrInvalidMapCode):
		return http.StatusBadRequest, msgInvalidMapCode
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, msgInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, domain.ErrStatsNotFound):
		return http.StatusNotFound, msgStatsNotFound
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusRequestTimeout, msgTimeout
	case errors.Is(err, domain.ErrNetworkFailure):
		return http.StatusServiceUnavailable, msgNetwork
	}
	return http.StatusInternalServerError, msgScrapeFailed
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	event := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	respondJSON(w, r, status, ErrorResponse{Error: message})
}
