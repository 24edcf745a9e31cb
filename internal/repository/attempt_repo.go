package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trainingtracker/internal/database"
	"trainingtracker/internal/models"
)

const maxAttemptNumberRetries = 3

var (
	// ErrAttemptNumberConflict is returned when concurrent starts keep claiming the same attempt number
	ErrAttemptNumberConflict = errors.New("attempt number conflict")
	// ErrDuplicateSubmission is returned when answers were already recorded for an attempt
	ErrDuplicateSubmission = errors.New("answers already submitted for attempt")
)

// AttemptRepository handles quiz attempt and submitted answer database operations
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, user_id, quiz_id, attempt_number, score, passed, started_at, completed_at`

func scanAttempt(row interface{ Scan(...interface{}) error }) (*models.Attempt, error) {
	attempt := &models.Attempt{}
	var completedAt sql.NullTime

	err := row.Scan(
		&attempt.ID,
		&attempt.UserID,
		&attempt.QuizID,
		&attempt.AttemptNumber,
		&attempt.Score,
		&attempt.Passed,
		&attempt.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		attempt.CompletedAt = &completedAt.Time
	}
	return attempt, nil
}

// GetAttemptByID retrieves an attempt. Returns nil when it does not exist.
func (r *AttemptRepository) GetAttemptByID(ctx context.Context, attemptID int64) (*models.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_results WHERE id = ?`

	attempt, err := scanAttempt(r.db.QueryRowContext(ctx, query, attemptID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// GetLatestAttempt retrieves the user's highest-numbered attempt at a quiz. Returns nil when there is none.
func (r *AttemptRepository) GetLatestAttempt(ctx context.Context, userID, quizID int64) (*models.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM quiz_results
		WHERE user_id = ? AND quiz_id = ?
		ORDER BY attempt_number DESC
		LIMIT 1
	`

	attempt, err := scanAttempt(r.db.QueryRowContext(ctx, query, userID, quizID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest attempt: %w", err)
	}
	return attempt, nil
}

// ListAttempts retrieves all of a user's attempts at a quiz, oldest first
func (r *AttemptRepository) ListAttempts(ctx context.Context, userID, quizID int64) ([]models.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM quiz_results
		WHERE user_id = ? AND quiz_id = ?
		ORDER BY attempt_number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}

	return attempts, rows.Err()
}

// CreateAttempt inserts a new ungraded attempt numbered one past the user's highest.
// admit sees the latest attempt inside the transaction, read with a row lock where
// the engine supports one, and any error it returns aborts the insert unchanged.
// When a concurrent start wins the race the transaction is retried from the top,
// so admit always judges the current latest attempt.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, userID, quizID int64, startedAt time.Time, admit func(latest *models.Attempt) error) (*models.Attempt, error) {
	for try := 0; try < maxAttemptNumberRetries; try++ {
		var rejected error
		attempt, err := r.createAttempt(ctx, userID, quizID, startedAt, func(latest *models.Attempt) error {
			if admit == nil {
				return nil
			}
			rejected = admit(latest)
			return rejected
		})
		if err == nil {
			return attempt, nil
		}
		if rejected != nil {
			return nil, rejected
		}
		if !r.db.Dialect.IsRetryable(err) {
			return nil, fmt.Errorf("failed to create attempt: %w", err)
		}
	}
	return nil, ErrAttemptNumberConflict
}

func (r *AttemptRepository) createAttempt(ctx context.Context, userID, quizID int64, startedAt time.Time, admit func(latest *models.Attempt) error) (*models.Attempt, error) {
	attempt := &models.Attempt{
		UserID:    userID,
		QuizID:    quizID,
		StartedAt: startedAt,
	}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			SELECT ` + attemptColumns + `
			FROM quiz_results
			WHERE user_id = ? AND quiz_id = ?
			ORDER BY attempt_number DESC
			LIMIT 1` + r.db.Dialect.LockingRead()

		latest, err := scanAttempt(tx.QueryRowContext(ctx, query, userID, quizID))
		if err == sql.ErrNoRows {
			latest = nil
		} else if err != nil {
			return err
		}

		if err := admit(latest); err != nil {
			return err
		}

		attempt.AttemptNumber = 1
		if latest != nil {
			attempt.AttemptNumber = latest.AttemptNumber + 1
		}

		insert := `
			INSERT INTO quiz_results (user_id, quiz_id, attempt_number, score, passed, started_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		attempt.ID, err = tx.ExecReturningID(ctx, insert, userID, quizID, attempt.AttemptNumber, 0, false, startedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// RecordAnswers stores the submitted answers of an attempt in one transaction.
// Fails with ErrDuplicateSubmission if the attempt already has answers.
func (r *AttemptRepository) RecordAnswers(ctx context.Context, attemptID int64, answers []models.SubmittedAnswer) error {
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		var existing int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_question_answers WHERE quiz_result_id = ?`, attemptID,
		).Scan(&existing)
		if err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateSubmission
		}

		query := `
			INSERT INTO user_question_answers (quiz_result_id, question_id, answer_id, is_correct)
			VALUES (?, ?, ?, ?)
		`
		for _, answer := range answers {
			if _, err := tx.ExecContext(ctx, query, attemptID, answer.QuestionID, answer.AnswerID, answer.IsCorrect); err != nil {
				return err
			}
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateSubmission):
		return err
	case r.db.Dialect.IsUniqueViolation(err):
		return ErrDuplicateSubmission
	default:
		return fmt.Errorf("failed to record answers: %w", err)
	}
}

// GetSubmittedAnswers retrieves the recorded answers of an attempt
func (r *AttemptRepository) GetSubmittedAnswers(ctx context.Context, attemptID int64) ([]models.SubmittedAnswer, error) {
	query := `
		SELECT quiz_result_id, question_id, answer_id, is_correct
		FROM user_question_answers
		WHERE quiz_result_id = ?
		ORDER BY question_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submitted answers: %w", err)
	}
	defer rows.Close()

	var answers []models.SubmittedAnswer
	for rows.Next() {
		var a models.SubmittedAnswer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.AnswerID, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("failed to scan submitted answer: %w", err)
		}
		answers = append(answers, a)
	}

	return answers, rows.Err()
}

// CountCorrectAnswers counts the attempt's submitted answers snapshotted as correct
func (r *AttemptRepository) CountCorrectAnswers(ctx context.Context, attemptID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_question_answers WHERE quiz_result_id = ? AND is_correct = ?`,
		attemptID, true,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count correct answers: %w", err)
	}
	return count, nil
}

// GradeAttempt stores the outcome of an ungraded attempt.
// Reports false when the attempt had already been graded, in which case nothing changes.
func (r *AttemptRepository) GradeAttempt(ctx context.Context, attemptID int64, score float64, passed bool, completedAt time.Time) (bool, error) {
	query := `
		UPDATE quiz_results
		SET score = ?, passed = ?, completed_at = ?
		WHERE id = ? AND completed_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, score, passed, completedAt, attemptID)
	if err != nil {
		return false, fmt.Errorf("failed to grade attempt: %w", err)
	}
	return affected(result)
}

// GetQuizStats aggregates the graded attempts of a quiz across all users
func (r *AttemptRepository) GetQuizStats(ctx context.Context, quizID int64) (*models.QuizStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN passed = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(score), 0)
		FROM quiz_results
		WHERE quiz_id = ? AND completed_at IS NOT NULL
	`

	stats := &models.QuizStats{QuizID: quizID}
	err := r.db.QueryRowContext(ctx, query, true, quizID).Scan(
		&stats.GradedAttempts,
		&stats.PassedAttempts,
		&stats.AverageScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz stats: %w", err)
	}

	if stats.GradedAttempts > 0 {
		stats.PassRatePercent = float64(stats.PassedAttempts) / float64(stats.GradedAttempts) * 100
	}
	return stats, nil
}
