package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainingtracker/internal/models"
	"trainingtracker/internal/utils"
)

func TestStartAttemptRequiresCompletedLessons(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 2, 1, 50, 0)

	_, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	var ineligible *IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, ReasonQuizLocked, ineligible.Reason)

	e.completeAllLessons(t, e.learner, s)

	attempt, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.AttemptNumber)
	assert.Equal(t, 0.0, attempt.Score)
	assert.Nil(t, attempt.CompletedAt)
	assert.Equal(t, models.ModuleQuizInProgress, e.moduleStatus(t, e.learner, s.module.ID))
}

func TestStartAttemptDeniedWhilePending(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 0, 1, 50, 0)

	_, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)

	_, err = e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	var ineligible *IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, ReasonAttemptPending, ineligible.Reason)
}

func TestConcurrentStartsOpenOneAttempt(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 0, 2, 50, 0)

	const starters = 8
	var wg sync.WaitGroup
	attempts := make([]*models.Attempt, starters)
	errs := make([]error, starters)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempts[i], errs[i] = e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
		}(i)
	}
	wg.Wait()

	started := 0
	for i, err := range errs {
		if err == nil {
			started++
			assert.Equal(t, 1, attempts[i].AttemptNumber)
			continue
		}
		assert.NotErrorIs(t, err, ErrPersistence)
		var ineligible *IneligibleError
		if assert.ErrorAs(t, err, &ineligible) {
			assert.Equal(t, ReasonAttemptPending, ineligible.Reason)
		}
	}
	assert.Equal(t, 1, started)

	history, err := e.quizzes.ListAttempts(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only one ungraded attempt may exist")
	assert.Equal(t, models.ModuleQuizInProgress, e.moduleStatus(t, e.learner, s.module.ID))
}

func TestInactiveModuleRejectsTraining(t *testing.T) {
	ctx := context.Background()

	for _, lifecycle := range []models.ModuleLifecycle{models.ModuleInactive, models.ModuleArchived} {
		t.Run(string(lifecycle), func(t *testing.T) {
			e := newTestEngine(t, defaultPolicy())
			s := e.seedModule(t, 1, 1, 50, 0)
			_, err := e.db.ExecContext(ctx, `UPDATE modules SET status = ? WHERE id = ?`, lifecycle, s.module.ID)
			require.NoError(t, err)

			_, err = e.progress.RecordLessonView(ctx, e.learner, s.lessons[0].ID)
			assert.ErrorIs(t, err, ErrModuleInactive)

			_, _, err = e.progress.MarkLessonComplete(ctx, e.learner, s.lessons[0].ID)
			assert.ErrorIs(t, err, ErrModuleInactive)

			_, err = e.progress.CompleteLesson(ctx, e.learner, s.lessons[0].ID)
			assert.ErrorIs(t, err, ErrModuleInactive)

			_, err = e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
			var ineligible *IneligibleError
			require.ErrorAs(t, err, &ineligible)
			assert.Equal(t, ReasonModuleInactive, ineligible.Reason)

			eligibility, err := e.quizzes.CanStartAttempt(ctx, e.learner, s.quiz.ID)
			require.NoError(t, err)
			assert.False(t, eligibility.Eligible)
			assert.Equal(t, ReasonModuleInactive, eligibility.Reason)

			list, err := e.progress.ListProgress(ctx, e.learner)
			require.NoError(t, err)
			assert.Empty(t, list, "rejected activity must not start the module")
		})
	}
}

func TestAttemptNumbersAreSequential(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 0, 2, 100, 0)

	for i := 1; i <= 4; i++ {
		summary := e.takeQuiz(t, e.learner, s, s.answersWith(1))
		assert.Equal(t, i, summary.Attempt.AttemptNumber)
		assert.Equal(t, models.ModuleFailed, e.moduleStatus(t, e.learner, s.module.ID), "failed modules stay failed while retaking")
	}

	other := e.takeQuiz(t, e.colleague, s, s.answersWith(2))
	assert.Equal(t, 1, other.Attempt.AttemptNumber)

	history, err := e.quizzes.ListAttempts(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, attempt := range history {
		assert.Equal(t, i+1, attempt.AttemptNumber)
	}

	stats, err := e.quizzes.QuizStats(ctx, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.GradedAttempts)
	assert.Equal(t, 1, stats.PassedAttempts)
	assert.InDelta(t, 60.0, stats.AverageScore, 0.001)
	assert.InDelta(t, 20.0, stats.PassRatePercent, 0.001)
}

func TestPassedRetakePolicy(t *testing.T) {
	e := newTestEngine(t, Policy{AllowPassedRetake: false, StaleAttemptAfter: 24 * time.Hour})
	ctx := context.Background()
	s := e.seedModule(t, 0, 1, 50, 0)

	e.takeQuiz(t, e.learner, s, s.answersWith(1))

	eligibility, err := e.quizzes.CanStartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.False(t, eligibility.Eligible)
	assert.Equal(t, ReasonAlreadyPassed, eligibility.Reason)

	require.NoError(t, e.policy.SetAllowPassedRetake(ctx, true))

	eligibility, err = e.quizzes.CanStartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible)

	_, err = e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModulePassed, e.moduleStatus(t, e.learner, s.module.ID))
}

func TestStaleAttemptIsForfeited(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 0, 2, 100, 2)

	abandoned, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	require.NoError(t, e.quizzes.SubmitAnswers(ctx, e.learner, abandoned.ID, s.quiz.ID, s.answersWith(1)))

	e.clock.Advance(23 * time.Hour)
	eligibility, err := e.quizzes.CanStartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonAttemptPending, eligibility.Reason)

	e.clock.Advance(2 * time.Hour)
	eligibility, err = e.quizzes.CanStartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.True(t, eligibility.Eligible, "forfeit is stamped at start time so the cooldown has passed")

	// Checking eligibility does not grade
	stored, err := e.attempts.GetAttemptByID(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.False(t, stored.Graded())

	next, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.AttemptNumber)

	forfeited, err := e.attempts.GetAttemptByID(ctx, abandoned.ID)
	require.NoError(t, err)
	require.True(t, forfeited.Graded())
	assert.Equal(t, 50.0, forfeited.Score)
	assert.False(t, forfeited.Passed)
	assert.True(t, forfeited.StartedAt.Equal(*forfeited.CompletedAt))
	assert.Equal(t, models.ModuleFailed, e.moduleStatus(t, e.learner, s.module.ID))
}

func TestStaleRecoveryDisabled(t *testing.T) {
	e := newTestEngine(t, Policy{AllowPassedRetake: true})
	ctx := context.Background()
	s := e.seedModule(t, 0, 1, 50, 0)

	_, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)

	e.clock.Advance(30 * 24 * time.Hour)
	_, err = e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	assert.ErrorIs(t, err, ErrIneligible)
}

func TestSubmitAnswers(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 0, 3, 50, 0)
	other := e.seedModule(t, 0, 1, 50, 0)

	attempt, err := e.quizzes.StartAttempt(ctx, e.learner, s.quiz.ID)
	require.NoError(t, err)

	t.Run("someone else's attempt", func(t *testing.T) {
		err := e.quizzes.SubmitAnswers(ctx, e.colleague, attempt.ID, s.quiz.ID, s.answersWith(3))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown attempt", func(t *testing.T) {
		err := e.quizzes.SubmitAnswers(ctx, e.learner, 9999, s.quiz.ID, s.answersWith(3))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong quiz", func(t *testing.T) {
		err := e.quizzes.SubmitAnswers(ctx, e.learner, attempt.ID, other.quiz.ID, other.answersWith(1))
		var vErr utils.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("empty submission", func(t *testing.T) {
		tests := []struct {
			name    string
			answers map[int64]int64
		}{
			{name: "no answers", answers: map[int64]int64{}},
			{name: "only questions of another quiz", answers: other.answersWith(1)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := e.quizzes.SubmitAnswers(ctx, e.learner, attempt.ID, s.quiz.ID, tt.answers)
				var vErr utils.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "answers", vErr.Field)
			})
		}

		submitted, err := e.attempts.GetSubmittedAnswers(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Empty(t, submitted)
	})

	t.Run("foreign answer recorded as incorrect", func(t *testing.T) {
		answers := s.answersWith(3)
		answers[s.questions[2].ID] = other.correct[0]
		answers[other.questions[0].ID] = other.correct[0]
		require.NoError(t, e.quizzes.SubmitAnswers(ctx, e.learner, attempt.ID, s.quiz.ID, answers))

		submitted, err := e.attempts.GetSubmittedAnswers(ctx, attempt.ID)
		require.NoError(t, err)
		require.Len(t, submitted, 3, "answers for questions outside the quiz are dropped")
		for _, a := range submitted {
			assert.Equal(t, a.QuestionID != s.questions[2].ID, a.IsCorrect)
		}
	})

	t.Run("second submission", func(t *testing.T) {
		err := e.quizzes.SubmitAnswers(ctx, e.learner, attempt.ID, s.quiz.ID, s.answersWith(3))
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	})

	t.Run("graded attempt", func(t *testing.T) {
		summary, err := e.quizzes.ViewSummaryAndGradeIfPending(ctx, e.learner, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, 66.67, summary.Attempt.Score)
		assert.True(t, summary.Attempt.Passed)

		err = e.quizzes.SubmitAnswers(ctx, e.learner, attempt.ID, s.quiz.ID, s.answersWith(3))
		assert.ErrorIs(t, err, ErrAttemptGraded)
	})
}

func TestStartAttemptUnknownQuiz(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()

	_, err := e.quizzes.StartAttempt(ctx, e.learner, 12345)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.quizzes.CanStartAttempt(ctx, e.learner, 0)
	var vErr utils.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
