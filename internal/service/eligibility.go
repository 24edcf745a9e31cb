package service

import (
	"context"
	"errors"
	"time"

	"trainingtracker/internal/models"
)

// Eligibility is the answer of the quiz gate
type Eligibility struct {
	Eligible   bool         `json:"eligible"`
	Reason     DenialReason `json:"reason,omitempty"`
	RetryAfter *time.Time   `json:"retry_after,omitempty"`
}

func (e Eligibility) err() error {
	if e.Eligible {
		return nil
	}
	return &IneligibleError{Reason: e.Reason, RetryAfter: e.RetryAfter}
}

// evaluateEligibility decides whether a new attempt may start given the latest one
func evaluateEligibility(latest *models.Attempt, quiz *models.Quiz, allowPassedRetake bool, now time.Time) Eligibility {
	if latest == nil {
		return Eligibility{Eligible: true}
	}

	if !latest.Graded() {
		return Eligibility{Reason: ReasonAttemptPending}
	}

	if latest.Passed {
		if allowPassedRetake {
			return Eligibility{Eligible: true}
		}
		return Eligibility{Reason: ReasonAlreadyPassed}
	}

	if quiz.CooldownPeriodHours == 0 {
		return Eligibility{Eligible: true}
	}

	hoursElapsed := now.Sub(*latest.CompletedAt).Hours()
	if hoursElapsed >= float64(quiz.CooldownPeriodHours) {
		return Eligibility{Eligible: true}
	}

	retryAfter := latest.CompletedAt.Add(quiz.Cooldown())
	return Eligibility{Reason: ReasonCooldown, RetryAfter: &retryAfter}
}

// isStale reports whether an ungraded attempt has been open long enough to forfeit
func isStale(attempt *models.Attempt, staleAfter time.Duration, now time.Time) bool {
	if attempt == nil || attempt.Graded() || staleAfter <= 0 {
		return false
	}
	return now.Sub(attempt.StartedAt) >= staleAfter
}

// CanStartAttempt reports whether the learner may start a new attempt at the quiz.
// A stale ungraded attempt is judged as if it had been forfeited, without persisting anything.
func (s *QuizService) CanStartAttempt(ctx context.Context, id models.Identity, quizID int64) (*Eligibility, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	err = s.requireActiveModule(ctx, quiz.ModuleID)
	var inactive *IneligibleError
	if errors.As(err, &inactive) {
		return &Eligibility{Reason: inactive.Reason}, nil
	}
	if err != nil {
		return nil, err
	}

	latest, err := s.attempts.GetLatestAttempt(ctx, id.UserID, quizID)
	if err != nil {
		return nil, persistenceError("load latest attempt", err)
	}

	now := s.timestamp()
	if isStale(latest, s.policy.StaleAttemptAfter(), now) {
		score, passed, err := s.outcome(ctx, latest.ID, quiz)
		if err != nil {
			return nil, err
		}
		forfeited := *latest
		forfeited.Score, forfeited.Passed = score, passed
		forfeited.CompletedAt = &forfeited.StartedAt
		latest = &forfeited
	}

	allowRetake, err := s.policy.AllowPassedRetake(ctx)
	if err != nil {
		return nil, err
	}

	eligibility := evaluateEligibility(latest, quiz, allowRetake, now)
	return &eligibility, nil
}
