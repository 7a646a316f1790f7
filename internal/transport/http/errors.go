package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"trivia-quiz-service/internal/domain"
)

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func newErrorPayload(err error) errorPayload {
	return errorPayload{Message: err.Error(), Retryable: domain.Retryable(err)}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProgressNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrAttemptInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSelection), errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrEmptyAnswer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoActiveAttempt):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	payload := newErrorPayload(err)
	if status == http.StatusInternalServerError {
		payload.Message = "internal error"
	}
	respondJSON(w, status, payload)
}
