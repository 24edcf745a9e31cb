package service

import (
	"context"
	"errors"
	"log"
	"time"

	"trainingtracker/internal/models"
	"trainingtracker/internal/repository"
	"trainingtracker/internal/utils"
)

// QuizService gates, records and grades quiz attempts
type QuizService struct {
	catalog  CatalogReader
	attempts *repository.AttemptRepository
	progress *ProgressService
	policy   *PolicyService
	now      func() time.Time
}

// NewQuizService creates a new quiz service
func NewQuizService(catalog CatalogReader, attempts *repository.AttemptRepository, progress *ProgressService, policy *PolicyService) *QuizService {
	return &QuizService{
		catalog:  catalog,
		attempts: attempts,
		progress: progress,
		policy:   policy,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *QuizService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *QuizService) timestamp() time.Time {
	return s.now().UTC()
}

func (s *QuizService) getQuiz(ctx context.Context, quizID int64) (*models.Quiz, error) {
	if err := utils.ValidateID("quiz_id", quizID); err != nil {
		return nil, err
	}
	quiz, err := s.catalog.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, persistenceError("get quiz", err)
	}
	if quiz == nil {
		return nil, ErrNotFound
	}
	return quiz, nil
}

// getOwnedAttempt loads an attempt and checks it belongs to the caller
func (s *QuizService) getOwnedAttempt(ctx context.Context, id models.Identity, attemptID int64) (*models.Attempt, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	if err := utils.ValidateID("attempt_id", attemptID); err != nil {
		return nil, err
	}

	attempt, err := s.attempts.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return nil, persistenceError("get attempt", err)
	}
	if attempt == nil {
		return nil, ErrNotFound
	}
	if attempt.UserID != id.UserID {
		return nil, ErrForbidden
	}
	return attempt, nil
}

// requireActiveModule turns an inactive module into a quiz denial
func (s *QuizService) requireActiveModule(ctx context.Context, moduleID int64) error {
	err := s.progress.requireActiveModule(ctx, moduleID)
	if errors.Is(err, ErrModuleInactive) {
		return &IneligibleError{Reason: ReasonModuleInactive}
	}
	return err
}

// requireUnlocked makes sure the learner has finished the module's lessons.
// Modules still short of quiz_available are re-evaluated first, which also
// unlocks modules without lessons.
func (s *QuizService) requireUnlocked(ctx context.Context, id models.Identity, moduleID int64) error {
	status, err := s.progress.moduleStatus(ctx, id.UserID, moduleID)
	if err != nil {
		return err
	}
	if status.QuizUnlocked() {
		return nil
	}

	if _, err := s.progress.ReevaluateAfterLessonCompletion(ctx, id, moduleID); err != nil {
		return err
	}

	status, err = s.progress.moduleStatus(ctx, id.UserID, moduleID)
	if err != nil {
		return err
	}
	if !status.QuizUnlocked() {
		return &IneligibleError{Reason: ReasonQuizLocked}
	}
	return nil
}

// StartAttempt opens a new attempt at the quiz if the learner is eligible
func (s *QuizService) StartAttempt(ctx context.Context, id models.Identity, quizID int64) (*models.Attempt, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if err := s.requireActiveModule(ctx, quiz.ModuleID); err != nil {
		return nil, err
	}
	if err := s.requireUnlocked(ctx, id, quiz.ModuleID); err != nil {
		return nil, err
	}

	latest, err := s.attempts.GetLatestAttempt(ctx, id.UserID, quizID)
	if err != nil {
		return nil, persistenceError("load latest attempt", err)
	}

	now := s.timestamp()
	if isStale(latest, s.policy.StaleAttemptAfter(), now) {
		log.Printf("Forfeiting attempt %d of user %d on quiz %d, open since %s",
			latest.ID, id.UserID, quizID, latest.StartedAt.Format(time.RFC3339))
		if _, _, err := s.grade(ctx, latest, quiz, latest.StartedAt); err != nil {
			return nil, err
		}
	}

	allowRetake, err := s.policy.AllowPassedRetake(ctx)
	if err != nil {
		return nil, err
	}

	// Judged again inside the insert transaction against the locked latest attempt
	attempt, err := s.attempts.CreateAttempt(ctx, id.UserID, quizID, now, func(latest *models.Attempt) error {
		return evaluateEligibility(latest, quiz, allowRetake, now).err()
	})
	var ineligible *IneligibleError
	switch {
	case errors.As(err, &ineligible):
		return nil, err
	case errors.Is(err, repository.ErrAttemptNumberConflict):
		log.Printf("User %d kept losing the race to start quiz %d", id.UserID, quizID)
		return nil, &IneligibleError{Reason: ReasonAttemptPending}
	case err != nil:
		return nil, persistenceError("create attempt", err)
	}

	if err := s.progress.markQuizInProgress(ctx, id.UserID, quiz.ModuleID); err != nil {
		return nil, err
	}

	return attempt, nil
}

// SubmitAnswers records the learner's chosen answer per question, keyed by question ID.
// Correctness is snapshotted now. Questions without an entry stay unanswered, but
// at least one question of the quiz must be answered.
func (s *QuizService) SubmitAnswers(ctx context.Context, id models.Identity, attemptID, quizID int64, answers map[int64]int64) error {
	attempt, err := s.getOwnedAttempt(ctx, id, attemptID)
	if err != nil {
		return err
	}
	if attempt.QuizID != quizID {
		return utils.ValidationError{Field: "quiz_id", Message: "attempt does not belong to this quiz"}
	}
	if attempt.Graded() {
		return ErrAttemptGraded
	}

	questions, err := s.catalog.GetQuestionsByQuizID(ctx, quizID)
	if err != nil {
		return persistenceError("load questions", err)
	}

	known := make(map[int64]bool, len(questions))
	submitted := make([]models.SubmittedAnswer, 0, len(answers))
	for _, question := range questions {
		known[question.ID] = true

		answerID, ok := answers[question.ID]
		if !ok {
			continue
		}

		answer, err := s.catalog.GetAnswerByID(ctx, answerID)
		if err != nil {
			return persistenceError("load answer", err)
		}

		isCorrect := false
		if answer == nil || answer.QuestionID != question.ID {
			log.Printf("Attempt %d: answer %d is not an option of question %d, recording as incorrect",
				attemptID, answerID, question.ID)
		} else {
			isCorrect = answer.IsCorrect
		}

		submitted = append(submitted, models.SubmittedAnswer{
			AttemptID:  attemptID,
			QuestionID: question.ID,
			AnswerID:   answerID,
			IsCorrect:  isCorrect,
		})
	}

	for questionID := range answers {
		if !known[questionID] {
			log.Printf("Attempt %d: ignoring answer for question %d outside quiz %d", attemptID, questionID, quizID)
		}
	}

	if len(submitted) == 0 {
		return utils.ValidationError{Field: "answers", Message: "at least one question of the quiz must be answered"}
	}

	err = s.attempts.RecordAnswers(ctx, attemptID, submitted)
	if errors.Is(err, repository.ErrDuplicateSubmission) {
		return ErrAlreadySubmitted
	}
	if err != nil {
		return persistenceError("record answers", err)
	}
	return nil
}

// ListAttempts returns the learner's attempts at a quiz, oldest first
func (s *QuizService) ListAttempts(ctx context.Context, id models.Identity, quizID int64) ([]models.Attempt, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	if _, err := s.getQuiz(ctx, quizID); err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListAttempts(ctx, id.UserID, quizID)
	if err != nil {
		return nil, persistenceError("list attempts", err)
	}
	return attempts, nil
}

// QuizStats aggregates graded attempts of a quiz across learners
func (s *QuizService) QuizStats(ctx context.Context, quizID int64) (*models.QuizStats, error) {
	if _, err := s.getQuiz(ctx, quizID); err != nil {
		return nil, err
	}

	stats, err := s.attempts.GetQuizStats(ctx, quizID)
	if err != nil {
		return nil, persistenceError("quiz stats", err)
	}
	return stats, nil
}
