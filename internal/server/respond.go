package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"autopull/internal/mapping"
)

var (
	errPayloadTooLarge    = errors.New("Payload too large")
	errRateLimited        = errors.New("Rate limit exceeded")
	errHistoryUnavailable = errors.New("Run history not available")
	errNotFound           = errors.New("Not found")
	errMethodNotAllowed   = errors.New("Method not allowed")
)

// StatusFor maps an error to the HTTP status code it is reported with.
func StatusFor(err error) int {
	var unknownKey *mapping.UnknownKeyError

	switch {
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, errPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errHistoryUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNotFound), errors.As(err, &unknownKey):
		return http.StatusNotFound
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		// Missing targets, failed pulls and failed launches included.
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError converts err into a status code and an error envelope.
func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	logger.Warn("Request failed", "status", status, "message", err.Error())
	respondJSON(w, logger, status, ErrorResponse{Message: err.Error()})
}
