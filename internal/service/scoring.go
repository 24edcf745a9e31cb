package service

import (
	"context"
	"log"
	"math"
	"time"

	"trainingtracker/internal/models"
	"trainingtracker/internal/utils"
)

// AttemptSummary is what a learner sees after finishing a quiz
type AttemptSummary struct {
	Attempt        models.Attempt          `json:"attempt"`
	Quiz           models.Quiz             `json:"quiz"`
	ModuleID       int64                   `json:"module_id"`
	CorrectCount   int                     `json:"correct_count"`
	TotalQuestions int                     `json:"total_questions"`
	Results        []models.QuestionResult `json:"results"`
	JustGraded     bool                    `json:"just_graded"`
}

// computeScore converts a correct count into a percentage rounded to two decimals.
// Unanswered questions count against the learner.
func computeScore(correct, total int, threshold float64) (float64, bool) {
	if total <= 0 {
		return 0, 0 >= threshold
	}
	if correct > total {
		correct = total
	}
	if correct < 0 {
		correct = 0
	}

	score := math.Round(float64(correct)/float64(total)*100*100) / 100
	return score, score >= threshold
}

// outcome scores an attempt's submitted answers against the quiz
func (s *QuizService) outcome(ctx context.Context, attemptID int64, quiz *models.Quiz) (float64, bool, error) {
	questions, err := s.catalog.GetQuestionsByQuizID(ctx, quiz.ID)
	if err != nil {
		return 0, false, persistenceError("load questions", err)
	}
	correct, err := s.attempts.CountCorrectAnswers(ctx, attemptID)
	if err != nil {
		return 0, false, persistenceError("count correct answers", err)
	}

	score, passed := computeScore(correct, len(questions), quiz.PassingThreshold)
	return score, passed, nil
}

// grade scores an ungraded attempt, stamps it with completedAt and applies the
// outcome to the module when the attempt is still the learner's latest. When another caller graded the attempt first, the
// stored result is returned and the bool is false.
func (s *QuizService) grade(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz, completedAt time.Time) (*models.Attempt, bool, error) {
	if attempt.Graded() {
		return attempt, false, nil
	}

	score, passed, err := s.outcome(ctx, attempt.ID, quiz)
	if err != nil {
		return nil, false, err
	}

	won, err := s.attempts.GradeAttempt(ctx, attempt.ID, score, passed, completedAt)
	if err != nil {
		return nil, false, persistenceError("grade attempt", err)
	}

	if won {
		if err := s.applyOutcomeIfLatest(ctx, attempt, quiz, passed); err != nil {
			return nil, false, err
		}
	}

	stored, err := s.attempts.GetAttemptByID(ctx, attempt.ID)
	if err != nil || stored == nil {
		return nil, false, persistenceError("reload attempt", err)
	}
	return stored, won, nil
}

// applyOutcomeIfLatest moves the module to passed or failed. A superseded attempt
// graded late leaves the module alone so it keeps reflecting the newest attempt.
func (s *QuizService) applyOutcomeIfLatest(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz, passed bool) error {
	latest, err := s.attempts.GetLatestAttempt(ctx, attempt.UserID, attempt.QuizID)
	if err != nil {
		return persistenceError("load latest attempt", err)
	}
	if latest != nil && latest.ID != attempt.ID {
		log.Printf("Attempt %d of user %d graded after attempt %d started, module %d left unchanged",
			attempt.ID, attempt.UserID, latest.ID, quiz.ModuleID)
		return nil
	}
	return s.progress.ApplyQuizOutcome(ctx, attempt.UserID, quiz.ModuleID, passed)
}

// GradeIfPending grades the attempt unless it already has a result.
// The bool reports whether this call did the grading.
func (s *QuizService) GradeIfPending(ctx context.Context, attemptID int64) (*models.Attempt, bool, error) {
	if err := utils.ValidateID("attempt_id", attemptID); err != nil {
		return nil, false, err
	}

	attempt, err := s.attempts.GetAttemptByID(ctx, attemptID)
	if err != nil {
		return nil, false, persistenceError("get attempt", err)
	}
	if attempt == nil {
		return nil, false, ErrNotFound
	}
	if attempt.Graded() {
		return attempt, false, nil
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, false, err
	}
	return s.grade(ctx, attempt, quiz, s.timestamp())
}

// ViewSummaryAndGradeIfPending grades the caller's attempt if it is still open
// and returns the per-question breakdown
func (s *QuizService) ViewSummaryAndGradeIfPending(ctx context.Context, id models.Identity, attemptID int64) (*AttemptSummary, error) {
	attempt, err := s.getOwnedAttempt(ctx, id, attemptID)
	if err != nil {
		return nil, err
	}

	quiz, err := s.getQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	attempt, justGraded, err := s.grade(ctx, attempt, quiz, s.timestamp())
	if err != nil {
		return nil, err
	}

	questions, err := s.catalog.GetQuestionsByQuizID(ctx, quiz.ID)
	if err != nil {
		return nil, persistenceError("load questions", err)
	}
	submitted, err := s.attempts.GetSubmittedAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, persistenceError("load submitted answers", err)
	}

	chosen := make(map[int64]models.SubmittedAnswer, len(submitted))
	for _, a := range submitted {
		chosen[a.QuestionID] = a
	}

	summary := &AttemptSummary{
		Attempt:        *attempt,
		Quiz:           *quiz,
		ModuleID:       quiz.ModuleID,
		TotalQuestions: len(questions),
		Results:        make([]models.QuestionResult, 0, len(questions)),
		JustGraded:     justGraded,
	}

	for _, question := range questions {
		result := models.QuestionResult{QuestionID: question.ID, QuestionText: question.Text}

		options, err := s.catalog.GetAnswersByQuestionID(ctx, question.ID)
		if err != nil {
			return nil, persistenceError("load answers", err)
		}
		for _, option := range options {
			if option.IsCorrect {
				result.CorrectAnswerText = option.Text
			}
		}

		if a, ok := chosen[question.ID]; ok {
			result.Answered = true
			result.ChosenAnswerID = a.AnswerID
			result.IsCorrect = a.IsCorrect
			for _, option := range options {
				if option.ID == a.AnswerID {
					result.ChosenAnswerText = option.Text
				}
			}
			if a.IsCorrect {
				summary.CorrectCount++
			}
		}

		summary.Results = append(summary.Results, result)
	}

	return summary, nil
}
