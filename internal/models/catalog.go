package models

import "time"

// ModuleLifecycle is the authoring status of a module, independent of any learner's progress
type ModuleLifecycle string

const (
	ModuleActive   ModuleLifecycle = "active"
	ModuleInactive ModuleLifecycle = "inactive"
	ModuleArchived ModuleLifecycle = "archived"
)

// Valid reports whether l is a known lifecycle status
func (l ModuleLifecycle) Valid() bool {
	switch l {
	case ModuleActive, ModuleInactive, ModuleArchived:
		return true
	}
	return false
}

// ContentType describes how a lesson's payload is delivered
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
	ContentImage ContentType = "image"
	ContentURL   ContentType = "url"
)

// Valid reports whether c is a known content type
func (c ContentType) Valid() bool {
	switch c {
	case ContentText, ContentVideo, ContentImage, ContentURL:
		return true
	}
	return false
}

// QuestionType is the answering format of a question
type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
)

// Module is a unit of training containing lessons and at most one quiz
type Module struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      ModuleLifecycle `json:"status"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Lesson is a single content item within a module
type Lesson struct {
	ID            int64       `json:"id"`
	ModuleID      int64       `json:"module_id"`
	Title         string      `json:"title"`
	ContentType   ContentType `json:"content_type"`
	ContentText   string      `json:"content_text,omitempty"`
	ContentURL    string      `json:"content_url,omitempty"`
	OrderInModule int         `json:"order_in_module"`
}

// Quiz is the assessment attached to a module
type Quiz struct {
	ID                  int64   `json:"id"`
	ModuleID            int64   `json:"module_id"`
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	PassingThreshold    float64 `json:"passing_threshold"`
	CooldownPeriodHours int     `json:"cooldown_period_hours"`
}

// Cooldown returns the retake cooldown as a duration
func (q *Quiz) Cooldown() time.Duration {
	return time.Duration(q.CooldownPeriodHours) * time.Hour
}

// Question belongs to one quiz
type Question struct {
	ID          int64        `json:"id"`
	QuizID      int64        `json:"quiz_id"`
	Text        string       `json:"text"`
	Type        QuestionType `json:"type"`
	OrderInQuiz int          `json:"order_in_quiz"`
}

// Answer is one option of a question
type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"-"`
}
