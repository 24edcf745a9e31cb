package service

import (
	"context"
	"fmt"
	"time"

	"trainingtracker/internal/models"
	"trainingtracker/internal/repository"
	"trainingtracker/internal/utils"
)

// statuses that lesson reevaluation may overwrite
var preQuizStatuses = []models.ModuleStatus{
	models.ModuleNotStarted,
	models.ModuleInProgress,
	models.ModuleTrainingCompleted,
	models.ModuleQuizAvailable,
}

// LessonView is the result of viewing a lesson
type LessonView struct {
	Lesson           models.Lesson         `json:"lesson"`
	Progress         models.LessonProgress `json:"progress"`
	PreviousLessonID *int64                `json:"previous_lesson_id,omitempty"`
	NextLessonID     *int64                `json:"next_lesson_id,omitempty"`
}

// LessonCompletion is the result of completing a lesson and re-evaluating its module
type LessonCompletion struct {
	Progress         models.LessonProgress `json:"progress"`
	ModuleID         int64                 `json:"module_id"`
	ModuleStatus     models.ModuleStatus   `json:"module_status"`
	TrainingComplete bool                  `json:"training_complete"`
}

// ModuleProgressView is a learner's status in a module together with each lesson's status
type ModuleProgressView struct {
	Module  models.Module           `json:"module"`
	Status  models.ModuleStatus     `json:"status"`
	Record  *models.ModuleProgress  `json:"record,omitempty"`
	Lessons []LessonProgressSummary `json:"lessons"`
}

// LessonProgressSummary pairs a lesson with the learner's status in it
type LessonProgressSummary struct {
	LessonID    int64               `json:"lesson_id"`
	Title       string              `json:"title"`
	Status      models.LessonStatus `json:"status"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// ProgressService tracks lesson progress and coordinates module status
type ProgressService struct {
	catalog  CatalogReader
	progress *repository.ProgressRepository
	now      func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(catalog CatalogReader, progress *repository.ProgressRepository) *ProgressService {
	return &ProgressService{
		catalog:  catalog,
		progress: progress,
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *ProgressService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ProgressService) timestamp() time.Time {
	return s.now().UTC()
}

func (s *ProgressService) getLesson(ctx context.Context, lessonID int64) (*models.Lesson, error) {
	if err := utils.ValidateID("lesson_id", lessonID); err != nil {
		return nil, err
	}
	lesson, err := s.catalog.GetLessonByID(ctx, lessonID)
	if err != nil {
		return nil, persistenceError("get lesson", err)
	}
	if lesson == nil {
		return nil, ErrNotFound
	}
	return lesson, nil
}

// requireActiveModule rejects learner activity in modules that are inactive or archived
func (s *ProgressService) requireActiveModule(ctx context.Context, moduleID int64) error {
	module, err := s.catalog.GetModuleByID(ctx, moduleID)
	if err != nil {
		return persistenceError("get module", err)
	}
	if module == nil {
		return ErrNotFound
	}
	if module.Status != models.ModuleActive {
		return fmt.Errorf("module %d is %s: %w", moduleID, module.Status, ErrModuleInactive)
	}
	return nil
}

// RecordLessonView marks a lesson as viewed (never demoting a completed one)
// and starts its module for the learner
func (s *ProgressService) RecordLessonView(ctx context.Context, id models.Identity, lessonID int64) (*LessonView, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	lesson, err := s.getLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActiveModule(ctx, lesson.ModuleID); err != nil {
		return nil, err
	}

	if err := s.EnsureModuleStarted(ctx, id, lesson.ModuleID); err != nil {
		return nil, err
	}

	now := s.timestamp()
	if _, err := s.progress.InsertLessonProgressIfMissing(ctx, id.UserID, lessonID, models.LessonViewed, now); err != nil {
		return nil, persistenceError("record lesson view", err)
	}
	if _, err := s.progress.PromoteLessonStatus(ctx, id.UserID, lessonID, models.LessonNotViewed, models.LessonViewed, now); err != nil {
		return nil, persistenceError("record lesson view", err)
	}

	progress, err := s.progress.GetLessonProgress(ctx, id.UserID, lessonID)
	if err != nil || progress == nil {
		return nil, persistenceError("load lesson progress", err)
	}

	view := &LessonView{Lesson: *lesson, Progress: *progress}

	lessons, err := s.catalog.GetLessonsByModuleID(ctx, lesson.ModuleID)
	if err != nil {
		return nil, persistenceError("load module lessons", err)
	}
	for i := range lessons {
		if lessons[i].ID != lessonID {
			continue
		}
		if i > 0 {
			view.PreviousLessonID = &lessons[i-1].ID
		}
		if i+1 < len(lessons) {
			view.NextLessonID = &lessons[i+1].ID
		}
		break
	}

	return view, nil
}

// MarkLessonComplete sets a lesson to completed, creating the progress row if needed.
// Callers should follow with ReevaluateAfterLessonCompletion, or use CompleteLesson.
func (s *ProgressService) MarkLessonComplete(ctx context.Context, id models.Identity, lessonID int64) (*models.LessonProgress, *models.Lesson, error) {
	if err := validateIdentity(id); err != nil {
		return nil, nil, err
	}
	lesson, err := s.getLesson(ctx, lessonID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireActiveModule(ctx, lesson.ModuleID); err != nil {
		return nil, nil, err
	}

	if err := s.EnsureModuleStarted(ctx, id, lesson.ModuleID); err != nil {
		return nil, nil, err
	}

	now := s.timestamp()
	if _, err := s.progress.InsertLessonProgressIfMissing(ctx, id.UserID, lessonID, models.LessonViewed, now); err != nil {
		return nil, nil, persistenceError("mark lesson complete", err)
	}
	if _, err := s.progress.MarkLessonCompleted(ctx, id.UserID, lessonID, now); err != nil {
		return nil, nil, persistenceError("mark lesson complete", err)
	}

	progress, err := s.progress.GetLessonProgress(ctx, id.UserID, lessonID)
	if err != nil || progress == nil {
		return nil, nil, persistenceError("load lesson progress", err)
	}
	return progress, lesson, nil
}

// CompleteLesson marks a lesson complete and re-evaluates its module
func (s *ProgressService) CompleteLesson(ctx context.Context, id models.Identity, lessonID int64) (*LessonCompletion, error) {
	progress, lesson, err := s.MarkLessonComplete(ctx, id, lessonID)
	if err != nil {
		return nil, err
	}

	complete, err := s.ReevaluateAfterLessonCompletion(ctx, id, lesson.ModuleID)
	if err != nil {
		return nil, err
	}

	module, err := s.progress.GetModuleProgress(ctx, id.UserID, lesson.ModuleID)
	if err != nil || module == nil {
		return nil, persistenceError("load module progress", err)
	}

	return &LessonCompletion{
		Progress:         *progress,
		ModuleID:         lesson.ModuleID,
		ModuleStatus:     module.Status,
		TrainingComplete: complete,
	}, nil
}

// EnsureModuleStarted creates the module progress row and moves not_started to in_progress.
// More advanced statuses are left alone.
func (s *ProgressService) EnsureModuleStarted(ctx context.Context, id models.Identity, moduleID int64) error {
	now := s.timestamp()
	if _, err := s.progress.InsertModuleProgressIfMissing(ctx, id.UserID, moduleID, now); err != nil {
		return persistenceError("start module", err)
	}
	if _, err := s.progress.SetModuleStatus(ctx, id.UserID, moduleID, models.ModuleInProgress, now, models.ModuleNotStarted); err != nil {
		return persistenceError("start module", err)
	}
	return nil
}

// ReevaluateAfterLessonCompletion reports whether every lesson of the module is complete.
// When it is, the module becomes quiz_available if it has a quiz and training_completed
// otherwise. A module already holding a quiz attempt or outcome keeps its status.
func (s *ProgressService) ReevaluateAfterLessonCompletion(ctx context.Context, id models.Identity, moduleID int64) (bool, error) {
	total, err := s.catalog.CountLessonsInModule(ctx, moduleID)
	if err != nil {
		return false, persistenceError("count lessons", err)
	}
	completed, err := s.progress.CountCompletedLessonsInModule(ctx, id.UserID, moduleID)
	if err != nil {
		return false, persistenceError("count completed lessons", err)
	}

	if total > 0 && completed < total {
		return false, nil
	}

	quizzes, err := s.catalog.GetQuizzesByModuleID(ctx, moduleID)
	if err != nil {
		return false, persistenceError("load module quiz", err)
	}

	status := models.ModuleTrainingCompleted
	if len(quizzes) > 0 {
		status = models.ModuleQuizAvailable
	}

	now := s.timestamp()
	if _, err := s.progress.InsertModuleProgressIfMissing(ctx, id.UserID, moduleID, now); err != nil {
		return false, persistenceError("reevaluate module", err)
	}
	if _, err := s.progress.SetModuleStatus(ctx, id.UserID, moduleID, status, now, preQuizStatuses...); err != nil {
		return false, persistenceError("reevaluate module", err)
	}
	return true, nil
}

// ApplyQuizOutcome records a graded attempt's result on the module
func (s *ProgressService) ApplyQuizOutcome(ctx context.Context, userID, moduleID int64, passed bool) error {
	status := models.ModuleFailed
	if passed {
		status = models.ModulePassed
	}

	now := s.timestamp()
	if _, err := s.progress.InsertModuleProgressIfMissing(ctx, userID, moduleID, now); err != nil {
		return persistenceError("apply quiz outcome", err)
	}
	if _, err := s.progress.SetModuleStatus(ctx, userID, moduleID, status, now); err != nil {
		return persistenceError("apply quiz outcome", err)
	}
	return nil
}

// markQuizInProgress moves a module into quiz_in_progress unless it already holds an outcome
func (s *ProgressService) markQuizInProgress(ctx context.Context, userID, moduleID int64) error {
	from := append(preQuizStatuses[:len(preQuizStatuses):len(preQuizStatuses)], models.ModuleQuizInProgress)
	if _, err := s.progress.SetModuleStatus(ctx, userID, moduleID, models.ModuleQuizInProgress, s.timestamp(), from...); err != nil {
		return persistenceError("mark quiz in progress", err)
	}
	return nil
}

// moduleStatus returns the learner's status in a module, not_started when no row exists
func (s *ProgressService) moduleStatus(ctx context.Context, userID, moduleID int64) (models.ModuleStatus, error) {
	progress, err := s.progress.GetModuleProgress(ctx, userID, moduleID)
	if err != nil {
		return "", persistenceError("load module progress", err)
	}
	if progress == nil {
		return models.ModuleNotStarted, nil
	}
	return progress.Status, nil
}

// GetModuleProgress returns the learner's status in a module and in each of its lessons
func (s *ProgressService) GetModuleProgress(ctx context.Context, id models.Identity, moduleID int64) (*ModuleProgressView, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	if err := utils.ValidateID("module_id", moduleID); err != nil {
		return nil, err
	}

	module, err := s.catalog.GetModuleByID(ctx, moduleID)
	if err != nil {
		return nil, persistenceError("get module", err)
	}
	if module == nil {
		return nil, ErrNotFound
	}

	record, err := s.progress.GetModuleProgress(ctx, id.UserID, moduleID)
	if err != nil {
		return nil, persistenceError("load module progress", err)
	}

	lessons, err := s.catalog.GetLessonsByModuleID(ctx, moduleID)
	if err != nil {
		return nil, persistenceError("load module lessons", err)
	}
	rows, err := s.progress.GetLessonProgressForModule(ctx, id.UserID, moduleID)
	if err != nil {
		return nil, persistenceError("load lesson progress", err)
	}

	byLesson := make(map[int64]models.LessonProgress, len(rows))
	for _, row := range rows {
		byLesson[row.LessonID] = row
	}

	view := &ModuleProgressView{
		Module:  *module,
		Status:  models.ModuleNotStarted,
		Record:  record,
		Lessons: make([]LessonProgressSummary, 0, len(lessons)),
	}
	if record != nil {
		view.Status = record.Status
	}

	for _, lesson := range lessons {
		summary := LessonProgressSummary{LessonID: lesson.ID, Title: lesson.Title, Status: models.LessonNotViewed}
		if row, ok := byLesson[lesson.ID]; ok {
			summary.Status = row.Status
			summary.CompletedAt = row.CompletedAt
		}
		view.Lessons = append(view.Lessons, summary)
	}

	return view, nil
}

// ListProgress returns every module the learner has started
func (s *ProgressService) ListProgress(ctx context.Context, id models.Identity) ([]models.ModuleProgressWithTitle, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	list, err := s.progress.ListModuleProgressForUser(ctx, id.UserID)
	if err != nil {
		return nil, persistenceError("list module progress", err)
	}
	return list, nil
}
