package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trainingtracker/internal/database"
	"trainingtracker/internal/models"
	"trainingtracker/internal/repository"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEngine struct {
	db        *database.DB
	clock     *testClock
	catalog   *CatalogService
	repo      *repository.CatalogRepository
	attempts  *repository.AttemptRepository
	progress  *ProgressService
	quizzes   *QuizService
	policy    *PolicyService
	learner   models.Identity
	colleague models.Identity
}

func newTestEngine(t *testing.T, policy Policy) *testEngine {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "engine.db")
	db, err := database.OpenWithDialect(database.NewPureSQLiteDialect(), database.DialectConfig{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), ""))

	clock := &testClock{now: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)}
	catalogRepo := repository.NewCatalogRepository(db)
	attempts := repository.NewAttemptRepository(db)

	e := &testEngine{
		db:        db,
		clock:     clock,
		catalog:   NewCatalogService(catalogRepo),
		repo:      catalogRepo,
		attempts:  attempts,
		policy:    NewPolicyService(repository.NewSettingsRepository(db), policy),
		learner:   models.Identity{UserID: 7},
		colleague: models.Identity{UserID: 8},
	}
	e.progress = NewProgressService(catalogRepo, repository.NewProgressRepository(db))
	e.progress.SetClock(clock.Now)
	e.quizzes = NewQuizService(catalogRepo, attempts, e.progress, e.policy)
	e.quizzes.SetClock(clock.Now)
	return e
}

func defaultPolicy() Policy {
	return Policy{AllowPassedRetake: true, StaleAttemptAfter: 24 * time.Hour}
}

type seededModule struct {
	module    models.Module
	lessons   []models.Lesson
	quiz      *models.Quiz
	questions []models.Question
	correct   []int64
	wrong     []int64
}

// seedModule creates a module with the given lessons and, when questions > 0, a quiz
func (e *testEngine) seedModule(t *testing.T, lessons, questions int, threshold float64, cooldownHours int) *seededModule {
	t.Helper()
	ctx := context.Background()

	s := &seededModule{module: models.Module{Title: "Workplace Safety"}}
	require.NoError(t, e.catalog.CreateModule(ctx, &s.module))

	for i := 0; i < lessons; i++ {
		lesson := models.Lesson{ModuleID: s.module.ID, Title: "Lesson", OrderInModule: i + 1}
		require.NoError(t, e.catalog.AddLesson(ctx, &lesson))
		s.lessons = append(s.lessons, lesson)
	}

	if questions == 0 {
		return s
	}

	s.quiz = &models.Quiz{
		ModuleID:            s.module.ID,
		Title:               "Workplace Safety Quiz",
		PassingThreshold:    threshold,
		CooldownPeriodHours: cooldownHours,
	}
	require.NoError(t, e.catalog.AddQuiz(ctx, s.quiz))

	for i := 0; i < questions; i++ {
		question := models.Question{QuizID: s.quiz.ID, Text: "Question", OrderInQuiz: i + 1}
		answers := []models.Answer{
			{Text: "right", IsCorrect: true},
			{Text: "wrong"},
		}
		require.NoError(t, e.catalog.AddQuestion(ctx, &question, answers))
		s.questions = append(s.questions, question)
		s.correct = append(s.correct, answers[0].ID)
		s.wrong = append(s.wrong, answers[1].ID)
	}

	return s
}

// answersWith picks the correct option for the first n questions and the wrong one for the rest
func (s *seededModule) answersWith(n int) map[int64]int64 {
	answers := make(map[int64]int64, len(s.questions))
	for i, q := range s.questions {
		if i < n {
			answers[q.ID] = s.correct[i]
		} else {
			answers[q.ID] = s.wrong[i]
		}
	}
	return answers
}

func (e *testEngine) completeAllLessons(t *testing.T, id models.Identity, s *seededModule) {
	t.Helper()
	for _, lesson := range s.lessons {
		_, err := e.progress.CompleteLesson(context.Background(), id, lesson.ID)
		require.NoError(t, err)
	}
}

func (e *testEngine) moduleStatus(t *testing.T, id models.Identity, moduleID int64) models.ModuleStatus {
	t.Helper()
	status, err := e.progress.moduleStatus(context.Background(), id.UserID, moduleID)
	require.NoError(t, err)
	return status
}

// takeQuiz starts an attempt, submits the answers and views the summary
func (e *testEngine) takeQuiz(t *testing.T, id models.Identity, s *seededModule, answers map[int64]int64) *AttemptSummary {
	t.Helper()
	ctx := context.Background()

	attempt, err := e.quizzes.StartAttempt(ctx, id, s.quiz.ID)
	require.NoError(t, err)
	require.NoError(t, e.quizzes.SubmitAnswers(ctx, id, attempt.ID, s.quiz.ID, answers))

	summary, err := e.quizzes.ViewSummaryAndGradeIfPending(ctx, id, attempt.ID)
	require.NoError(t, err)
	return summary
}
