package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainingtracker/internal/service"
	"trainingtracker/internal/utils"
)

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "Teapot", "", nil)

	assert.Equal(t, 418, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "Teapot", decodeError(t, recorder).Error)
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := log.Default()
	originalOutput := logger.Writer()
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	recorder := httptest.NewRecorder()
	err := errors.New("boom")

	respondWithError(recorder, 500, "Internal server error", "", err)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "Internal server error") {
		t.Fatalf("expected log to include user message, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "boom") {
		t.Fatalf("expected log to include error, got %q", logOutput)
	}
}

func TestRespondWithServiceError(t *testing.T) {
	retryAfter := time.Date(2026, 4, 6, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body errorResponse)
	}{
		{
			name:   "validation",
			err:    utils.ValidationError{Field: "quiz_id", Message: "quiz_id must be positive"},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body errorResponse) {
				assert.Equal(t, "quiz_id", body.Field)
			},
		},
		{
			name:   "cooldown",
			err:    &service.IneligibleError{Reason: service.ReasonCooldown, RetryAfter: &retryAfter},
			status: http.StatusConflict,
			check: func(t *testing.T, body errorResponse) {
				assert.Equal(t, "cooldown", body.Reason)
				require.NotNil(t, body.RetryAfter)
				assert.True(t, retryAfter.Equal(*body.RetryAfter))
			},
		},
		{name: "forbidden", err: fmt.Errorf("attempt 3: %w", service.ErrForbidden), status: http.StatusForbidden},
		{name: "not found", err: service.ErrNotFound, status: http.StatusNotFound},
		{name: "graded", err: service.ErrAttemptGraded, status: http.StatusConflict},
		{name: "resubmitted", err: service.ErrAlreadySubmitted, status: http.StatusConflict},
		{name: "inactive module", err: fmt.Errorf("lesson 4: %w", service.ErrModuleInactive), status: http.StatusConflict},
		{
			name:   "quiz of inactive module",
			err:    &service.IneligibleError{Reason: service.ReasonModuleInactive},
			status: http.StatusConflict,
			check: func(t *testing.T, body errorResponse) {
				assert.Equal(t, "module_inactive", body.Reason)
			},
		},
		{
			name:   "persistence",
			err:    fmt.Errorf("create attempt: %w", service.ErrPersistence),
			status: http.StatusInternalServerError,
			check: func(t *testing.T, body errorResponse) {
				assert.Equal(t, ErrInternalServerError, body.Error)
			},
		},
		{name: "unexpected", err: errors.New("kaboom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondWithServiceError(recorder, tt.err)

			assert.Equal(t, tt.status, recorder.Code)
			body := decodeError(t, recorder)
			assert.NotEmpty(t, body.Error)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}
