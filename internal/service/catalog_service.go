package service

import (
	"context"
	"errors"
	"strings"

	"trainingtracker/internal/models"
	"trainingtracker/internal/repository"
	"trainingtracker/internal/utils"
)

// CatalogReader is the read side of the content catalog used by the engine.
// Getters return nil (and no error) for missing rows.
type CatalogReader interface {
	GetModuleByID(ctx context.Context, moduleID int64) (*models.Module, error)
	GetLessonByID(ctx context.Context, lessonID int64) (*models.Lesson, error)
	GetLessonsByModuleID(ctx context.Context, moduleID int64) ([]models.Lesson, error)
	CountLessonsInModule(ctx context.Context, moduleID int64) (int, error)
	GetQuizByID(ctx context.Context, quizID int64) (*models.Quiz, error)
	GetQuizzesByModuleID(ctx context.Context, moduleID int64) ([]models.Quiz, error)
	GetQuestionsByQuizID(ctx context.Context, quizID int64) ([]models.Question, error)
	GetAnswerByID(ctx context.Context, answerID int64) (*models.Answer, error)
	GetAnswersByQuestionID(ctx context.Context, questionID int64) ([]models.Answer, error)
}

// CatalogService is the minimal authoring path for the content catalog
type CatalogService struct {
	repo *repository.CatalogRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo *repository.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// CreateModule validates and stores a module
func (s *CatalogService) CreateModule(ctx context.Context, module *models.Module) error {
	module.Title = strings.TrimSpace(module.Title)
	if err := utils.ValidateTitle(module.Title); err != nil {
		return err
	}
	if module.Status == "" {
		module.Status = models.ModuleActive
	}
	if !module.Status.Valid() {
		return utils.ValidationError{Field: "status", Message: "unknown module status"}
	}

	if err := s.repo.CreateModule(ctx, module); err != nil {
		return persistenceError("create module", err)
	}
	return nil
}

// AddLesson validates and stores a lesson
func (s *CatalogService) AddLesson(ctx context.Context, lesson *models.Lesson) error {
	lesson.Title = strings.TrimSpace(lesson.Title)
	if err := utils.ValidateTitle(lesson.Title); err != nil {
		return err
	}
	if err := utils.ValidateID("module_id", lesson.ModuleID); err != nil {
		return err
	}
	if lesson.ContentType == "" {
		lesson.ContentType = models.ContentText
	}
	if !lesson.ContentType.Valid() {
		return utils.ValidationError{Field: "content_type", Message: "unknown content type"}
	}

	if err := s.repo.CreateLesson(ctx, lesson); err != nil {
		return persistenceError("create lesson", err)
	}
	return nil
}

// AddQuiz validates and stores a module's quiz
func (s *CatalogService) AddQuiz(ctx context.Context, quiz *models.Quiz) error {
	quiz.Title = strings.TrimSpace(quiz.Title)
	if err := utils.ValidateTitle(quiz.Title); err != nil {
		return err
	}
	if err := utils.ValidateID("module_id", quiz.ModuleID); err != nil {
		return err
	}
	if err := utils.ValidatePassingThreshold(quiz.PassingThreshold); err != nil {
		return err
	}
	if err := utils.ValidateCooldown(quiz.CooldownPeriodHours); err != nil {
		return err
	}

	existing, err := s.repo.GetQuizzesByModuleID(ctx, quiz.ModuleID)
	if err != nil {
		return persistenceError("load module quiz", err)
	}
	if len(existing) > 0 {
		return utils.ValidationError{Field: "module_id", Message: "module already has a quiz"}
	}

	if err := s.repo.CreateQuiz(ctx, quiz); err != nil {
		return persistenceError("create quiz", err)
	}
	return nil
}

// AddQuestion stores a question together with its answer options.
// Exactly one option must be marked correct.
func (s *CatalogService) AddQuestion(ctx context.Context, question *models.Question, answers []models.Answer) error {
	if strings.TrimSpace(question.Text) == "" {
		return utils.ValidationError{Field: "text", Message: "question text is required"}
	}
	if err := utils.ValidateID("quiz_id", question.QuizID); err != nil {
		return err
	}

	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	if len(answers) < 2 || correct != 1 {
		return utils.ValidationError{Field: "answers", Message: "need at least two options with exactly one correct"}
	}

	if err := s.repo.CreateQuestionWithAnswers(ctx, question, answers); err != nil {
		return persistenceError("create question", err)
	}
	return nil
}

// SetCorrectAnswer makes answerID the single correct option of questionID
func (s *CatalogService) SetCorrectAnswer(ctx context.Context, questionID, answerID int64) error {
	if err := utils.ValidateID("question_id", questionID); err != nil {
		return err
	}
	if err := utils.ValidateID("answer_id", answerID); err != nil {
		return err
	}

	err := s.repo.SetCorrectAnswer(ctx, questionID, answerID)
	if errors.Is(err, repository.ErrAnswerNotInQuestion) {
		return utils.ValidationError{Field: "answer_id", Message: "answer does not belong to question"}
	}
	if err != nil {
		return persistenceError("set correct answer", err)
	}
	return nil
}
