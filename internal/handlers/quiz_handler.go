package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"trainingtracker/internal/models"
	"trainingtracker/internal/service"
	"trainingtracker/internal/utils"
)

// QuizHandler handles quiz attempt HTTP requests
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// submitAnswersRequest carries answers keyed by question ID. JSON object keys are strings.
type submitAnswersRequest struct {
	QuizID  int64            `json:"quiz_id"`
	Answers map[string]int64 `json:"answers"`
}

func (req submitAnswersRequest) answerMap() (map[int64]int64, error) {
	answers := make(map[int64]int64, len(req.Answers))
	for key, answerID := range req.Answers {
		questionID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, utils.ValidationError{Field: "answers", Message: "question ids must be numeric"}
		}
		answers[questionID] = answerID
	}
	return answers, nil
}

func (h *QuizHandler) identityAndID(w http.ResponseWriter, r *http.Request, field string) (models.Identity, int64, bool) {
	identity, ok := GetIdentityFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return identity, 0, false
	}

	id, err := utils.ParseID(field, r.PathValue("id"))
	if err != nil {
		respondWithServiceError(w, err)
		return identity, 0, false
	}
	return identity, id, true
}

// Eligibility reports whether the caller may start the quiz now
func (h *QuizHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	identity, quizID, ok := h.identityAndID(w, r, "quiz_id")
	if !ok {
		return
	}

	eligibility, err := h.quizService.CanStartAttempt(r.Context(), identity, quizID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, eligibility)
}

// StartAttempt opens a new attempt
func (h *QuizHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	identity, quizID, ok := h.identityAndID(w, r, "quiz_id")
	if !ok {
		return
	}

	attempt, err := h.quizService.StartAttempt(r.Context(), identity, quizID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, attempt)
}

// ListAttempts returns the caller's attempt history for a quiz
func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	identity, quizID, ok := h.identityAndID(w, r, "quiz_id")
	if !ok {
		return
	}

	attempts, err := h.quizService.ListAttempts(r.Context(), identity, quizID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

// SubmitAnswers records the caller's answers for an attempt
func (h *QuizHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	identity, attemptID, ok := h.identityAndID(w, r, "attempt_id")
	if !ok {
		return
	}

	var req submitAnswersRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	answers, err := req.answerMap()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	if err := h.quizService.SubmitAnswers(r.Context(), identity, attemptID, req.QuizID, answers); err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summary grades the attempt on first view and returns the breakdown
func (h *QuizHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity, attemptID, ok := h.identityAndID(w, r, "attempt_id")
	if !ok {
		return
	}

	summary, err := h.quizService.ViewSummaryAndGradeIfPending(r.Context(), identity, attemptID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
