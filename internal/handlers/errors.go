package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"trainingtracker/internal/service"
	"trainingtracker/internal/utils"
)

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondJSON(w, status, errorResponse{Error: userMsg})
}

type errorResponse struct {
	Error      string     `json:"error"`
	Field      string     `json:"field,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	RetryAfter *time.Time `json:"retry_after,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondWithServiceError maps engine errors onto HTTP statuses.
// Persistence failures were already logged by the service and get a generic message.
func respondWithServiceError(w http.ResponseWriter, err error) {
	var validationErr utils.ValidationError
	var ineligible *service.IneligibleError

	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
	case errors.As(err, &ineligible):
		respondJSON(w, http.StatusConflict, errorResponse{
			Error:      "Not eligible to start this quiz",
			Reason:     string(ineligible.Reason),
			RetryAfter: ineligible.RetryAfter,
		})
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, ErrForbidden, "", nil)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, ErrNotFound, "", nil)
	case errors.Is(err, service.ErrAttemptGraded), errors.Is(err, service.ErrAlreadySubmitted),
		errors.Is(err, service.ErrModuleInactive):
		respondWithError(w, http.StatusConflict, err.Error(), "", nil)
	case errors.Is(err, service.ErrPersistence):
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Unexpected error", err)
	}
}
