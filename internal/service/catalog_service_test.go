package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainingtracker/internal/models"
	"trainingtracker/internal/utils"
)

func TestCatalogServiceValidation(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 1, 0, 70, 0)

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{
			name:  "blank module title",
			call:  func() error { return e.catalog.CreateModule(ctx, &models.Module{Title: "   "}) },
			field: "title",
		},
		{
			name: "unknown module status",
			call: func() error {
				return e.catalog.CreateModule(ctx, &models.Module{Title: "Ethics", Status: "draft"})
			},
			field: "status",
		},
		{
			name: "unknown content type",
			call: func() error {
				return e.catalog.AddLesson(ctx, &models.Lesson{ModuleID: s.module.ID, Title: "Intro", ContentType: "pdf"})
			},
			field: "content_type",
		},
		{
			name: "threshold above 100",
			call: func() error {
				return e.catalog.AddQuiz(ctx, &models.Quiz{ModuleID: s.module.ID, Title: "Quiz", PassingThreshold: 120})
			},
			field: "passing_threshold",
		},
		{
			name: "negative cooldown",
			call: func() error {
				return e.catalog.AddQuiz(ctx, &models.Quiz{ModuleID: s.module.ID, Title: "Quiz", PassingThreshold: 50, CooldownPeriodHours: -1})
			},
			field: "cooldown_period_hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var validationErr utils.ValidationError
			require.ErrorAs(t, tt.call(), &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestCatalogServiceDefaults(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()

	module := models.Module{Title: "  Anti-Bribery  "}
	require.NoError(t, e.catalog.CreateModule(ctx, &module))
	assert.Equal(t, "Anti-Bribery", module.Title)
	assert.Equal(t, models.ModuleActive, module.Status)

	lesson := models.Lesson{ModuleID: module.ID, Title: "Gifts", OrderInModule: 1}
	require.NoError(t, e.catalog.AddLesson(ctx, &lesson))
	assert.Equal(t, models.ContentText, lesson.ContentType)
	assert.NotZero(t, lesson.ID)
}

func TestAddQuizOnePerModule(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	s := e.seedModule(t, 1, 1, 70, 0)

	err := e.catalog.AddQuiz(context.Background(), &models.Quiz{ModuleID: s.module.ID, Title: "Second", PassingThreshold: 50})
	var validationErr utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "module_id", validationErr.Field)
}

func TestAddQuestionRequiresExactlyOneCorrect(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 1, 1, 70, 0)

	tests := []struct {
		name    string
		answers []models.Answer
	}{
		{name: "single option", answers: []models.Answer{{Text: "yes", IsCorrect: true}}},
		{name: "no correct option", answers: []models.Answer{{Text: "yes"}, {Text: "no"}}},
		{name: "two correct options", answers: []models.Answer{{Text: "yes", IsCorrect: true}, {Text: "also yes", IsCorrect: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := models.Question{QuizID: s.quiz.ID, Text: "Pick one"}
			err := e.catalog.AddQuestion(ctx, &question, tt.answers)
			assert.True(t, isValidationError(err), "got %v", err)
			assert.Zero(t, question.ID)
		})
	}

	questions, err := e.repo.GetQuestionsByQuizID(ctx, s.quiz.ID)
	require.NoError(t, err)
	assert.Len(t, questions, 1)
}

func TestSetCorrectAnswerThroughService(t *testing.T) {
	e := newTestEngine(t, defaultPolicy())
	ctx := context.Background()
	s := e.seedModule(t, 1, 2, 70, 0)

	require.NoError(t, e.catalog.SetCorrectAnswer(ctx, s.questions[0].ID, s.wrong[0]))
	answer, err := e.repo.GetAnswerByID(ctx, s.wrong[0])
	require.NoError(t, err)
	assert.True(t, answer.IsCorrect)

	// an option of another question
	err = e.catalog.SetCorrectAnswer(ctx, s.questions[0].ID, s.correct[1])
	var validationErr utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "answer_id", validationErr.Field)

	assert.True(t, isValidationError(e.catalog.SetCorrectAnswer(ctx, 0, s.correct[0])))
}

func isValidationError(err error) bool {
	var validationErr utils.ValidationError
	return errors.As(err, &validationErr)
}
