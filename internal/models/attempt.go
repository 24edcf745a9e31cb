package models

import "time"

// Attempt is one scored (or pending) submission of a quiz by a user
type Attempt struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	QuizID        int64      `json:"quiz_id"`
	AttemptNumber int        `json:"attempt_number"`
	Score         float64    `json:"score"`
	Passed        bool       `json:"passed"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Graded reports whether the attempt has been scored
func (a *Attempt) Graded() bool {
	return a.CompletedAt != nil
}

// SubmittedAnswer snapshots a chosen answer and its correctness at submission time
type SubmittedAnswer struct {
	AttemptID  int64 `json:"attempt_id"`
	QuestionID int64 `json:"question_id"`
	AnswerID   int64 `json:"answer_id"`
	IsCorrect  bool  `json:"is_correct"`
}

// QuestionResult is one row of an attempt summary
type QuestionResult struct {
	QuestionID        int64  `json:"question_id"`
	QuestionText      string `json:"question_text"`
	Answered          bool   `json:"answered"`
	ChosenAnswerID    int64  `json:"chosen_answer_id,omitempty"`
	ChosenAnswerText  string `json:"chosen_answer_text,omitempty"`
	IsCorrect         bool   `json:"is_correct"`
	CorrectAnswerText string `json:"correct_answer_text,omitempty"`
}

// QuizStats aggregates graded attempts of a quiz
type QuizStats struct {
	QuizID          int64   `json:"quiz_id"`
	GradedAttempts  int     `json:"graded_attempts"`
	PassedAttempts  int     `json:"passed_attempts"`
	AverageScore    float64 `json:"average_score"`
	PassRatePercent float64 `json:"pass_rate_percent"`
}
