package models

import "time"

// LessonStatus is a learner's progress through one lesson
type LessonStatus string

const (
	LessonNotViewed LessonStatus = "not_viewed"
	LessonViewed    LessonStatus = "viewed"
	LessonCompleted LessonStatus = "completed"
)

// Valid reports whether s is a known lesson status
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonNotViewed, LessonViewed, LessonCompleted:
		return true
	}
	return false
}

// ModuleStatus is a learner's progress through one module
type ModuleStatus string

const (
	ModuleNotStarted        ModuleStatus = "not_started"
	ModuleInProgress        ModuleStatus = "in_progress"
	ModuleTrainingCompleted ModuleStatus = "training_completed"
	ModuleQuizAvailable     ModuleStatus = "quiz_available"
	ModuleQuizInProgress    ModuleStatus = "quiz_in_progress"
	ModulePassed            ModuleStatus = "passed"
	ModuleFailed            ModuleStatus = "failed"
)

// Valid reports whether s is a known module status
func (s ModuleStatus) Valid() bool {
	switch s {
	case ModuleNotStarted, ModuleInProgress, ModuleTrainingCompleted, ModuleQuizAvailable,
		ModuleQuizInProgress, ModulePassed, ModuleFailed:
		return true
	}
	return false
}

// StampsCompletion reports whether entering s sets completion_date
func (s ModuleStatus) StampsCompletion() bool {
	return s == ModuleTrainingCompleted || s == ModulePassed || s == ModuleFailed
}

// QuizUnlocked reports whether the module's quiz may be attempted from s
func (s ModuleStatus) QuizUnlocked() bool {
	switch s {
	case ModuleQuizAvailable, ModuleQuizInProgress, ModulePassed, ModuleFailed:
		return true
	}
	return false
}

// LessonProgress is keyed by (user, lesson)
type LessonProgress struct {
	UserID      int64        `json:"user_id"`
	LessonID    int64        `json:"lesson_id"`
	Status      LessonStatus `json:"status"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ModuleProgress is keyed by (user, module)
type ModuleProgress struct {
	UserID         int64        `json:"user_id"`
	ModuleID       int64        `json:"module_id"`
	Status         ModuleStatus `json:"status"`
	CompletionDate *time.Time   `json:"completion_date,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ModuleProgressWithTitle joins a progress row with its module for overviews
type ModuleProgressWithTitle struct {
	ModuleProgress
	ModuleTitle  string          `json:"module_title"`
	ModuleStatus ModuleLifecycle `json:"module_lifecycle"`
	Deadline     *time.Time      `json:"deadline,omitempty"`
}
