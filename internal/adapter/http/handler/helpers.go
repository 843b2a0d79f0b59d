package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chainbooks/chainbooks/internal/adapter/http/dto"
	"github.com/chainbooks/chainbooks/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidWalletAddress),
		errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrUnknownMethod),
		errors.Is(err, domain.ErrUnknownFrequency):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateEvent),
		errors.Is(err, domain.ErrUnsortedInput),
		errors.Is(err, domain.ErrCheckpointGap):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
