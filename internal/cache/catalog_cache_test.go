package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trainingtracker/internal/models"
)

type countingSource struct {
	calls   map[string]int
	modules map[int64]*models.Module
	lessons []models.Lesson
	answers map[int64]*models.Answer
}

func newCountingSource() *countingSource {
	return &countingSource{
		calls:   map[string]int{},
		modules: map[int64]*models.Module{1: {ID: 1, Title: "Data Protection", Status: models.ModuleActive}},
		lessons: []models.Lesson{
			{ID: 10, ModuleID: 1, Title: "Intro", ContentType: models.ContentText, OrderInModule: 1},
			{ID: 11, ModuleID: 1, Title: "Breaches", ContentType: models.ContentVideo, OrderInModule: 2},
		},
		answers: map[int64]*models.Answer{100: {ID: 100, QuestionID: 50, Text: "yes", IsCorrect: true}},
	}
}

func (s *countingSource) GetModuleByID(ctx context.Context, moduleID int64) (*models.Module, error) {
	s.calls["module"]++
	return s.modules[moduleID], nil
}

func (s *countingSource) GetLessonByID(ctx context.Context, lessonID int64) (*models.Lesson, error) {
	s.calls["lesson"]++
	for i := range s.lessons {
		if s.lessons[i].ID == lessonID {
			return &s.lessons[i], nil
		}
	}
	return nil, nil
}

func (s *countingSource) GetLessonsByModuleID(ctx context.Context, moduleID int64) ([]models.Lesson, error) {
	s.calls["lessons"]++
	return s.lessons, nil
}

func (s *countingSource) GetQuizByID(ctx context.Context, quizID int64) (*models.Quiz, error) {
	s.calls["quiz"]++
	return &models.Quiz{ID: quizID, ModuleID: 1, Title: "Quiz", PassingThreshold: 80, CooldownPeriodHours: 2}, nil
}

func (s *countingSource) GetQuizzesByModuleID(ctx context.Context, moduleID int64) ([]models.Quiz, error) {
	s.calls["quizzes"]++
	return nil, nil
}

func (s *countingSource) GetQuestionsByQuizID(ctx context.Context, quizID int64) ([]models.Question, error) {
	s.calls["questions"]++
	return []models.Question{{ID: 50, QuizID: quizID, Text: "Is this personal data?", Type: models.SingleChoice}}, nil
}

func (s *countingSource) GetAnswerByID(ctx context.Context, answerID int64) (*models.Answer, error) {
	s.calls["answer"]++
	return s.answers[answerID], nil
}

func (s *countingSource) GetAnswersByQuestionID(ctx context.Context, questionID int64) ([]models.Answer, error) {
	s.calls["answers"]++
	return []models.Answer{*s.answers[100]}, nil
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "catalog:module:3", moduleKey(3))
	assert.Equal(t, "catalog:lesson:4", lessonKey(4))
	assert.Equal(t, "catalog:module:3:lessons", moduleLessonsKey(3))
	assert.Equal(t, "catalog:quiz:5", quizKey(5))
	assert.Equal(t, "catalog:module:3:quizzes", moduleQuizzesKey(3))
	assert.Equal(t, "catalog:quiz:5:questions", quizQuestionsKey(5))
}

func TestUnreachableRedisFallsBackToSource(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	source := newCountingSource()
	c := NewCatalogCache(source, client, time.Minute)
	ctx := context.Background()

	module, err := c.GetModuleByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, module)
	assert.Equal(t, "Data Protection", module.Title)

	count, err := c.CountLessonsInModule(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = c.GetModuleByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls["module"])
}

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestCatalogCacheReadThrough(t *testing.T) {
	client := newTestClient(t)
	source := newCountingSource()
	c := NewCatalogCache(source, client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		module, err := c.GetModuleByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, models.ModuleActive, module.Status)

		lessons, err := c.GetLessonsByModuleID(ctx, 1)
		require.NoError(t, err)
		require.Len(t, lessons, 2)
		assert.Equal(t, models.ContentVideo, lessons[1].ContentType)

		quiz, err := c.GetQuizByID(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, 80.0, quiz.PassingThreshold)

		questions, err := c.GetQuestionsByQuizID(ctx, 9)
		require.NoError(t, err)
		require.Len(t, questions, 1)
	}

	assert.Equal(t, 1, source.calls["module"])
	assert.Equal(t, 1, source.calls["lessons"])
	assert.Equal(t, 1, source.calls["quiz"])
	assert.Equal(t, 1, source.calls["questions"])

	// Missing rows are not cached
	for i := 0; i < 2; i++ {
		missing, err := c.GetModuleByID(ctx, 2)
		require.NoError(t, err)
		assert.Nil(t, missing)
	}
	assert.Equal(t, 3, source.calls["module"])

	// Answers always come from the source
	for i := 0; i < 2; i++ {
		answer, err := c.GetAnswerByID(ctx, 100)
		require.NoError(t, err)
		assert.True(t, answer.IsCorrect)
	}
	assert.Equal(t, 2, source.calls["answer"])

	require.NoError(t, c.InvalidateModule(ctx, 1))
	_, err := c.GetModuleByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, source.calls["module"])
}
