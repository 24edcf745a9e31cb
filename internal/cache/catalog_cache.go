package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"trainingtracker/internal/models"
)

// Source is the uncached catalog the cache reads through to
type Source interface {
	GetModuleByID(ctx context.Context, moduleID int64) (*models.Module, error)
	GetLessonByID(ctx context.Context, lessonID int64) (*models.Lesson, error)
	GetLessonsByModuleID(ctx context.Context, moduleID int64) ([]models.Lesson, error)
	GetQuizByID(ctx context.Context, quizID int64) (*models.Quiz, error)
	GetQuizzesByModuleID(ctx context.Context, moduleID int64) ([]models.Quiz, error)
	GetQuestionsByQuizID(ctx context.Context, quizID int64) ([]models.Question, error)
	GetAnswerByID(ctx context.Context, answerID int64) (*models.Answer, error)
	GetAnswersByQuestionID(ctx context.Context, questionID int64) ([]models.Answer, error)
}

// CatalogCache is a read-through redis cache in front of the content catalog.
// Answers are always read from the source since their correctness is snapshotted on submission.
type CatalogCache struct {
	source Source
	client *redis.Client
	ttl    time.Duration
}

// NewCatalogCache wraps source with a redis cache whose entries live for ttl
func NewCatalogCache(source Source, client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{source: source, client: client, ttl: ttl}
}

// Connect parses a redis URL and checks the server answers
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func moduleKey(id int64) string        { return fmt.Sprintf("catalog:module:%d", id) }
func lessonKey(id int64) string        { return fmt.Sprintf("catalog:lesson:%d", id) }
func moduleLessonsKey(id int64) string { return fmt.Sprintf("catalog:module:%d:lessons", id) }
func quizKey(id int64) string          { return fmt.Sprintf("catalog:quiz:%d", id) }
func moduleQuizzesKey(id int64) string { return fmt.Sprintf("catalog:module:%d:quizzes", id) }
func quizQuestionsKey(id int64) string { return fmt.Sprintf("catalog:quiz:%d:questions", id) }

// readThrough returns the cached value under key, or loads it and caches it.
// Redis failures fall back to the source. Values rejected by keep are not cached.
func readThrough[T any](ctx context.Context, c *CatalogCache, key string, load func() (T, error), keep func(T) bool) (T, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached T
		if json.Unmarshal(val, &cached) == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("Catalog cache read %s failed: %v", key, err)
	}

	fresh, err := load()
	if err != nil {
		return fresh, err
	}

	if keep(fresh) {
		if data, err := json.Marshal(fresh); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				log.Printf("Catalog cache write %s failed: %v", key, err)
			}
		}
	}
	return fresh, nil
}

func notNil[T any](v *T) bool { return v != nil }

func always[T any](T) bool { return true }

func (c *CatalogCache) GetModuleByID(ctx context.Context, moduleID int64) (*models.Module, error) {
	return readThrough(ctx, c, moduleKey(moduleID), func() (*models.Module, error) {
		return c.source.GetModuleByID(ctx, moduleID)
	}, notNil[models.Module])
}

func (c *CatalogCache) GetLessonByID(ctx context.Context, lessonID int64) (*models.Lesson, error) {
	return readThrough(ctx, c, lessonKey(lessonID), func() (*models.Lesson, error) {
		return c.source.GetLessonByID(ctx, lessonID)
	}, notNil[models.Lesson])
}

func (c *CatalogCache) GetLessonsByModuleID(ctx context.Context, moduleID int64) ([]models.Lesson, error) {
	return readThrough(ctx, c, moduleLessonsKey(moduleID), func() ([]models.Lesson, error) {
		return c.source.GetLessonsByModuleID(ctx, moduleID)
	}, always[[]models.Lesson])
}

// CountLessonsInModule counts the cached lesson list so both agree
func (c *CatalogCache) CountLessonsInModule(ctx context.Context, moduleID int64) (int, error) {
	lessons, err := c.GetLessonsByModuleID(ctx, moduleID)
	if err != nil {
		return 0, err
	}
	return len(lessons), nil
}

func (c *CatalogCache) GetQuizByID(ctx context.Context, quizID int64) (*models.Quiz, error) {
	return readThrough(ctx, c, quizKey(quizID), func() (*models.Quiz, error) {
		return c.source.GetQuizByID(ctx, quizID)
	}, notNil[models.Quiz])
}

func (c *CatalogCache) GetQuizzesByModuleID(ctx context.Context, moduleID int64) ([]models.Quiz, error) {
	return readThrough(ctx, c, moduleQuizzesKey(moduleID), func() ([]models.Quiz, error) {
		return c.source.GetQuizzesByModuleID(ctx, moduleID)
	}, always[[]models.Quiz])
}

func (c *CatalogCache) GetQuestionsByQuizID(ctx context.Context, quizID int64) ([]models.Question, error) {
	return readThrough(ctx, c, quizQuestionsKey(quizID), func() ([]models.Question, error) {
		return c.source.GetQuestionsByQuizID(ctx, quizID)
	}, always[[]models.Question])
}

func (c *CatalogCache) GetAnswerByID(ctx context.Context, answerID int64) (*models.Answer, error) {
	return c.source.GetAnswerByID(ctx, answerID)
}

func (c *CatalogCache) GetAnswersByQuestionID(ctx context.Context, questionID int64) ([]models.Answer, error) {
	return c.source.GetAnswersByQuestionID(ctx, questionID)
}

// InvalidateModule drops the cached entries of a module and its lessons and quiz
func (c *CatalogCache) InvalidateModule(ctx context.Context, moduleID int64) error {
	keys := []string{moduleKey(moduleID), moduleLessonsKey(moduleID), moduleQuizzesKey(moduleID)}

	lessons, err := c.source.GetLessonsByModuleID(ctx, moduleID)
	if err != nil {
		return err
	}
	for _, lesson := range lessons {
		keys = append(keys, lessonKey(lesson.ID))
	}

	quizzes, err := c.source.GetQuizzesByModuleID(ctx, moduleID)
	if err != nil {
		return err
	}
	for _, quiz := range quizzes {
		keys = append(keys, quizKey(quiz.ID), quizQuestionsKey(quiz.ID))
	}

	return c.client.Del(ctx, keys...).Err()
}
